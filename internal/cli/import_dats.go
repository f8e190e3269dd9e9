package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/romkeeper/romkeeper/internal/catalog"
	"github.com/romkeeper/romkeeper/internal/progress"
)

var importDatsCmd = &cobra.Command{
	Use:   "import-dats <dat>...",
	Short: "Import or update DAT catalogs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, _ := cmd.Flags().GetBool("info")
		force, _ := cmd.Flags().GetBool("force")
		name, _ := cmd.Flags().GetString("name")
		extension, _ := cmd.Flags().GetString("extension")

		opts := catalog.Options{
			Info:            info,
			Force:           force,
			CustomName:      name,
			CustomExtension: extension,
		}
		for _, path := range args {
			report, err := catalog.ImportDat(db, path, opts, progress.NewBar(), os.Stdout)
			if err != nil {
				fmt.Println(errorStyle.Render("✗ ") + path + ": " + err.Error())
				continue
			}
			fmt.Printf("%s %s %s\n", successStyle.Render("✓"), report.SystemName,
				dimStyle.Render(fmt.Sprintf("(%s, %d games, %d roms)",
					report.Version, report.GameCount, report.RomCount)))
		}
		return nil
	},
}

func init() {
	importDatsCmd.Flags().BoolP("info", "i", false, "Show the DAT header without importing")
	importDatsCmd.Flags().BoolP("force", "f", false, "Import even when the DAT is not newer")
	importDatsCmd.Flags().StringP("name", "n", "", "Custom system name override")
	importDatsCmd.Flags().StringP("extension", "e", "", "Custom file extension for the system")
	rootCmd.AddCommand(importDatsCmd)
}
