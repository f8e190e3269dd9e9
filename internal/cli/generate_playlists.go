package cli

import (
	"database/sql"
	"os"

	"github.com/spf13/cobra"

	"github.com/romkeeper/romkeeper/internal/playlist"
)

var generatePlaylistsCmd = &cobra.Command{
	Use:   "generate-playlists",
	Short: "Generate M3U playlists for multi-disc games",
	RunE: func(cmd *cobra.Command, args []string) error {
		systemName, _ := cmd.Flags().GetString("system")
		return db.WithTransaction(func(tx *sql.Tx) error {
			system, err := selectSystem(tx, systemName)
			if err != nil {
				return err
			}
			return playlist.Generate(tx, system, os.Stdout)
		})
	},
}

func init() {
	generatePlaylistsCmd.Flags().StringP("system", "s", "", "Target system name")
	rootCmd.AddCommand(generatePlaylistsCmd)
}
