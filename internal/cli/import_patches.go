package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/romkeeper/romkeeper/internal/importer"
	"github.com/romkeeper/romkeeper/internal/progress"
)

var importPatchesCmd = &cobra.Command{
	Use:   "import-patches <patch>...",
	Short: "Attach BPS/IPS/Xdelta patches to their roms",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		systemName, _ := cmd.Flags().GetString("system")
		return db.WithTransaction(func(tx *sql.Tx) error {
			system, err := selectSystem(tx, systemName)
			if err != nil {
				return err
			}
			imp, err := importer.New(tx, system, progress.Nop{}, os.Stdout, importer.DeterministicPrompter{})
			if err != nil {
				return err
			}
			for _, path := range args {
				if err := imp.ImportPatch(tx, path); err != nil {
					fmt.Println(errorStyle.Render("✗ ") + path + ": " + err.Error())
				}
			}
			return nil
		})
	},
}

func init() {
	importPatchesCmd.Flags().StringP("system", "s", "", "Target system name")
	rootCmd.AddCommand(importPatchesCmd)
}
