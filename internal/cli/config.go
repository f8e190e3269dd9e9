package cli

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/romkeeper/romkeeper/internal/config"
	"github.com/romkeeper/romkeeper/internal/database"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		get, _ := cmd.Flags().GetString("get")
		set, _ := cmd.Flags().GetStringSlice("set")
		add, _ := cmd.Flags().GetStringSlice("add")
		remove, _ := cmd.Flags().GetStringSlice("remove")
		list, _ := cmd.Flags().GetBool("list")

		return db.WithTransaction(func(tx *sql.Tx) error {
			switch {
			case list:
				settings, err := database.FindSettings(tx)
				if err != nil {
					return err
				}
				for _, setting := range settings {
					value := ""
					if setting.Value != nil {
						value = *setting.Value
					}
					fmt.Printf("%s = %s\n", setting.Key, value)
				}
				return nil
			case get != "":
				value, err := config.GetString(tx, get)
				if err != nil {
					return err
				}
				fmt.Println(value)
				return nil
			case len(set) == 2:
				return config.Set(tx, set[0], set[1])
			case len(add) == 2:
				return config.AddToList(tx, add[0], add[1])
			case len(remove) == 2:
				return config.RemoveFromList(tx, remove[0], remove[1])
			}
			return cmd.Usage()
		})
	},
}

func init() {
	configCmd.Flags().BoolP("list", "l", false, "List all settings")
	configCmd.Flags().StringP("get", "g", "", "Print one setting")
	configCmd.Flags().StringSliceP("set", "s", nil, "Set KEY,VALUE")
	configCmd.Flags().StringSliceP("add", "a", nil, "Add VALUE to list KEY")
	configCmd.Flags().StringSliceP("remove", "r", nil, "Remove VALUE from list KEY")
	rootCmd.AddCommand(configCmd)
}
