package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pricewatch/internal/model"
	"github.com/sells-group/pricewatch/internal/store"
)

var (
	checkCategory string
	checkItemID   string
	checkJSONOut  bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a price check cycle over the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		// Single-item mode.
		if checkItemID != "" {
			item, err := env.Store.GetItem(cmd.Context(), checkItemID)
			if err != nil {
				return err
			}
			if item == nil {
				return eris.Errorf("item %s not found", checkItemID)
			}
			updated, err := env.Checker.CheckOne(cmd.Context(), *item)
			if err != nil {
				return err
			}
			if checkJSONOut {
				return json.NewEncoder(os.Stdout).Encode(updated)
			}
			zap.L().Info("item checked",
				zap.String("item", updated.ID),
				zap.Float64("price", updated.CurrentPrice),
				zap.Bool("on_sale", updated.IsOnSale),
			)
			return nil
		}

		report, err := env.Checker.RunCycle(cmd.Context(), store.ItemFilter{
			Category: model.Category(checkCategory),
		})
		if err != nil {
			return err
		}
		if checkJSONOut {
			return json.NewEncoder(os.Stdout).Encode(report)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkCategory, "category", "", "limit the cycle to one category")
	checkCmd.Flags().StringVar(&checkItemID, "item", "", "check a single item by ID")
	checkCmd.Flags().BoolVar(&checkJSONOut, "json", false, "print the result as JSON")
	rootCmd.AddCommand(checkCmd)
}
