package cli

import (
	"database/sql"
	"os"

	"github.com/spf13/cobra"

	"github.com/romkeeper/romkeeper/internal/converter"
)

var exportRomsCmd = &cobra.Command{
	Use:   "export-roms <directory>",
	Short: "Export romfiles to a directory, converting on the way",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		systemName, _ := cmd.Flags().GetString("system")
		formatName, _ := cmd.Flags().GetString("format")
		filter, _ := cmd.Flags().GetString("filter")

		target, err := converter.ParseTarget(formatName)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(args[0], 0o755); err != nil {
			return err
		}
		return db.WithTransaction(func(tx *sql.Tx) error {
			system, err := selectSystem(tx, systemName)
			if err != nil {
				return err
			}
			games, err := selectGames(tx, system.ID, filter)
			if err != nil {
				return err
			}
			conv, err := converter.New(cmd.Context(), tx, system, os.Stdout)
			if err != nil {
				return err
			}
			return conv.ConvertGames(cmd.Context(), tx, games, target, args[0])
		})
	},
}

func init() {
	exportRomsCmd.Flags().StringP("system", "s", "", "Target system name")
	exportRomsCmd.Flags().StringP("format", "f", "ORIGINAL", "Target format (ORIGINAL, 7Z, ZIP, CHD, CSO, ISO, NSZ, RVZ, WBFS, ZSO)")
	exportRomsCmd.Flags().StringP("filter", "g", "", "Game selection expression")
	rootCmd.AddCommand(exportRomsCmd)
}
