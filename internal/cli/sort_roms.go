package cli

import (
	"database/sql"
	"os"

	"github.com/spf13/cobra"

	"github.com/romkeeper/romkeeper/internal/region"
	"github.com/romkeeper/romkeeper/internal/sorter"
)

var sortRomsCmd = &cobra.Command{
	Use:   "sort-roms",
	Short: "Sort games between the all-regions, 1G1R and trash subtrees",
	RunE: func(cmd *cobra.Command, args []string) error {
		systemName, _ := cmd.Flags().GetString("system")
		regionsAll, _ := cmd.Flags().GetStringSlice("regions")
		regionsOne, _ := cmd.Flags().GetStringSlice("1g1r")
		strict, _ := cmd.Flags().GetBool("strict")

		return db.WithTransaction(func(tx *sql.Tx) error {
			system, err := selectSystem(tx, systemName)
			if err != nil {
				return err
			}
			opts, err := sorter.LoadOptions(tx)
			if err != nil {
				return err
			}
			// flags override the stored preferences for this run
			if len(regionsAll) > 0 {
				opts.RegionsAll = region.NormalizeList(regionsAll)
			}
			if len(regionsOne) > 0 {
				opts.RegionsOne = region.NormalizeList(regionsOne)
			}
			if strict {
				opts.Strict = true
			}
			return sorter.Sort(tx, system, opts, os.Stdout)
		})
	},
}

func init() {
	sortRomsCmd.Flags().StringP("system", "s", "", "Target system name")
	sortRomsCmd.Flags().StringSliceP("regions", "r", nil, "Accepted regions for the all-regions tree")
	sortRomsCmd.Flags().StringSliceP("1g1r", "o", nil, "Ordered preferred regions for the 1G1R tree")
	sortRomsCmd.Flags().Bool("strict", false, "Trash survivors that are not the 1G1R pick")
	rootCmd.AddCommand(sortRomsCmd)
}
