package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pricewatch/internal/history"
	"github.com/sells-group/pricewatch/internal/model"
)

var historyTrend bool

var historyCmd = &cobra.Command{
	Use:   "history <item-id>",
	Short: "Show an item's price history or trend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		item, err := env.Store.GetItem(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if item == nil {
			item, err = env.Store.GetItemByExternalID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
		}
		if item == nil {
			return eris.Errorf("item %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if historyTrend {
			trend, ok := history.ComputeTrend(item.PriceHistory)
			if !ok {
				return eris.Errorf("item %s has too few data points for a trend", item.ID)
			}
			return enc.Encode(trend)
		}

		hist := item.PriceHistory
		if hist == nil {
			hist = []model.PriceHistoryEntry{}
		}
		return enc.Encode(hist)
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyTrend, "trend", false, "show the first-vs-last trend instead of raw entries")
	rootCmd.AddCommand(historyCmd)
}
