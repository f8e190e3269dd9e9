package cli

import (
	"database/sql"
	"os"

	"github.com/spf13/cobra"

	"github.com/romkeeper/romkeeper/internal/catalog"
)

var purgeSystemsCmd = &cobra.Command{
	Use:   "purge-systems",
	Short: "Remove a system and everything under it",
	RunE: func(cmd *cobra.Command, args []string) error {
		systemName, _ := cmd.Flags().GetString("system")
		return db.WithTransaction(func(tx *sql.Tx) error {
			system, err := selectSystem(tx, systemName)
			if err != nil {
				return err
			}
			return catalog.PurgeSystem(tx, system, os.Stdout)
		})
	},
}

var purgeRomsCmd = &cobra.Command{
	Use:   "purge-roms",
	Short: "Drop stale romfile records and empty the trash",
	RunE: func(cmd *cobra.Command, args []string) error {
		trash, _ := cmd.Flags().GetBool("trash")
		return db.WithTransaction(func(tx *sql.Tx) error {
			if err := catalog.PurgeOrphans(tx, os.Stdout); err != nil {
				return err
			}
			if trash {
				return catalog.PurgeTrash(tx, os.Stdout)
			}
			return nil
		})
	},
}

func init() {
	purgeSystemsCmd.Flags().StringP("system", "s", "", "System to purge")
	purgeRomsCmd.Flags().BoolP("trash", "t", false, "Also delete trashed files")
	rootCmd.AddCommand(purgeSystemsCmd)
	rootCmd.AddCommand(purgeRomsCmd)
}
