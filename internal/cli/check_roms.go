package cli

import (
	"database/sql"
	"os"

	"github.com/spf13/cobra"

	"github.com/romkeeper/romkeeper/internal/importer"
	"github.com/romkeeper/romkeeper/internal/progress"
)

var checkRomsCmd = &cobra.Command{
	Use:   "check-roms",
	Short: "Re-verify imported romfiles against the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		systemName, _ := cmd.Flags().GetString("system")
		return db.WithTransaction(func(tx *sql.Tx) error {
			system, err := selectSystem(tx, systemName)
			if err != nil {
				return err
			}
			imp, err := importer.New(tx, system, progress.NewBar(), os.Stdout, importer.DeterministicPrompter{})
			if err != nil {
				return err
			}
			return imp.CheckSystem(tx)
		})
	},
}

func init() {
	checkRomsCmd.Flags().StringP("system", "s", "", "Target system name")
	rootCmd.AddCommand(checkRomsCmd)
}
