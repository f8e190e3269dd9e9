package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/romkeeper/romkeeper/internal/importer"
	"github.com/romkeeper/romkeeper/internal/progress"
)

var importRomsCmd = &cobra.Command{
	Use:   "import-roms <file>...",
	Short: "Identify and import candidate romfiles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		systemName, _ := cmd.Flags().GetString("system")
		trash, _ := cmd.Flags().GetBool("trash")
		keep, _ := cmd.Flags().GetBool("keep")
		yes, _ := cmd.Flags().GetBool("yes")
		no, _ := cmd.Flags().GetBool("no")

		opts := importer.Options{TrashUnmatched: trash, KeepSource: keep}
		var prompter importer.Prompter = consolePrompter{}
		switch {
		case yes:
			opts.Unattended = importer.YesToAll
			prompter = importer.DeterministicPrompter{}
		case no:
			opts.Unattended = importer.NoToAll
			prompter = importer.DeterministicPrompter{}
		}

		return db.WithTransaction(func(tx *sql.Tx) error {
			system, err := selectSystem(tx, systemName)
			if err != nil {
				return err
			}
			imp, err := importer.New(tx, system, progress.NewBar(), os.Stdout, prompter)
			if err != nil {
				return err
			}
			for _, path := range args {
				if err := imp.ImportPath(cmd.Context(), tx, path, opts); err != nil {
					fmt.Println(errorStyle.Render("✗ ") + path + ": " + err.Error())
				}
			}
			return nil
		})
	},
}

func init() {
	importRomsCmd.Flags().StringP("system", "s", "", "Target system name")
	importRomsCmd.Flags().BoolP("trash", "t", false, "Move unmatched files to Trash")
	importRomsCmd.Flags().BoolP("keep", "k", false, "Keep source files (copy instead of move)")
	importRomsCmd.Flags().BoolP("yes", "y", false, "Unattended: accept every prompt")
	importRomsCmd.Flags().BoolP("no", "n", false, "Unattended: decline every prompt")
	rootCmd.AddCommand(importRomsCmd)
}
