package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/romkeeper/romkeeper/internal/importer"
	"github.com/romkeeper/romkeeper/internal/progress"
)

var importIrdsCmd = &cobra.Command{
	Use:   "import-irds <ird>...",
	Short: "Import PS3 IRD descriptors and expand JB-folder games",
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
				if err := imp.ImportIrd(tx, path); err != nil {
					fmt.Println(errorStyle.Render("✗ ") + path + ": " + err.Error())
				}
			}
			return nil
		})
	},
}

func init() {
	importIrdsCmd.Flags().StringP("system", "s", "", "Target system name")
	rootCmd.AddCommand(importIrdsCmd)
}
