package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/romkeeper/romkeeper/internal/database"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show per-system completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		systems, err := database.FindSystems(db)
		if err != nil {
			return err
		}
		for i := range systems {
			system := &systems[i]
			rows, err := database.FindRomfilesByPathPrefix(db, system.EffectiveName()+"/")
			if err != nil {
				return err
			}
			var bytes uint64
			for _, row := range rows {
				bytes += uint64(row.Size)
			}
			fmt.Printf("%s %s %s\n",
				successStyle.Render(system.EffectiveName()),
				fmt.Sprintf("%d/%d games", system.CompletedGames, system.TotalGames),
				dimStyle.Render(fmt.Sprintf("(%d files, %s)", len(rows), humanize.Bytes(bytes))))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
