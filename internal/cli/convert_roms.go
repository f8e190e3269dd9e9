package cli

import (
	"database/sql"
	"os"

	"github.com/spf13/cobra"

	"github.com/romkeeper/romkeeper/internal/converter"
)

var convertRomsCmd = &cobra.Command{
	Use:   "convert-roms",
	Short: "Convert romfiles to another archival format in place",
	RunE: func(cmd *cobra.Command, args []string) error {
		systemName, _ := cmd.Flags().GetString("system")
		formatName, _ := cmd.Flags().GetString("format")
		filter, _ := cmd.Flags().GetString("filter")

		target, err := converter.ParseTarget(formatName)
		if err != nil {
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
			return conv.ConvertGames(cmd.Context(), tx, games, target, "")
		})
	},
}

func init() {
	convertRomsCmd.Flags().StringP("system", "s", "", "Target system name")
	convertRomsCmd.Flags().StringP("format", "f", "ORIGINAL", "Target format (ORIGINAL, 7Z, ZIP, CHD, CSO, ISO, NSZ, RVZ, WBFS, ZSO)")
	convertRomsCmd.Flags().StringP("filter", "g", "", "Game selection expression, e.g. 'name contains \"Disc\"'")
	rootCmd.AddCommand(convertRomsCmd)
}
