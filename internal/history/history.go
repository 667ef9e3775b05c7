// Package history folds resolved prices into a per-item, day-granular price
// history. Merging is idempotent: re-running a check on the same UTC
// calendar day replaces that day's entry instead of appending a duplicate.
package history

import (
	"sort"
	"time"

	"github.com/sells-group/pricewatch/internal/model"
)

// DayKey truncates t to its UTC calendar day.
func DayKey(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Merge folds rp into the item's history as of the given instant and returns
// the updated item. The input item is not mutated. After the merge the
// item's current/base/sale price fields are derived from the latest entry
// and LastPriceCheck is advanced.
func Merge(item model.CatalogItem, rp model.ResolvedPrice, asOf time.Time) model.CatalogItem {
	day := DayKey(asOf)
	entry := model.PriceHistoryEntry{
		Date:         day,
		CurrentPrice: rp.Price,
		BasePrice:    rp.BasePrice,
		IsOnSale:     rp.IsOnSale,
	}

	hist := make([]model.PriceHistoryEntry, len(item.PriceHistory))
	copy(hist, item.PriceHistory)

	replaced := false
	for i := range hist {
		if DayKey(hist[i].Date).Equal(day) {
			hist[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		hist = append(hist, entry)
		sort.SliceStable(hist, func(i, j int) bool {
			return hist[i].Date.Before(hist[j].Date)
		})
	}

	item.PriceHistory = hist
	latest := hist[len(hist)-1]
	item.CurrentPrice = latest.CurrentPrice
	item.BasePrice = latest.BasePrice
	item.IsOnSale = latest.IsOnSale
	if latest.IsOnSale {
		item.SalePrice = latest.CurrentPrice
	} else {
		item.SalePrice = latest.CurrentPrice
		item.BasePrice = latest.CurrentPrice
	}
	item.LastPriceCheck = asOf.UTC()
	item.UpdatedAt = asOf.UTC()
	return item
}

// Trend summarizes a history as the first-vs-last price movement. It is a
// pure read over the ordered history and never mutates it.
type Trend struct {
	First      float64 `json:"first"`
	Last       float64 `json:"last"`
	Delta      float64 `json:"delta"`
	DeltaPct   float64 `json:"delta_pct"`
	DataPoints int     `json:"data_points"`
}

// ComputeTrend returns the trend over the given history, or ok=false when
// fewer than two entries exist.
func ComputeTrend(hist []model.PriceHistoryEntry) (Trend, bool) {
	if len(hist) < 2 {
		return Trend{DataPoints: len(hist)}, false
	}
	first := hist[0].CurrentPrice
	last := hist[len(hist)-1].CurrentPrice
	t := Trend{
		First:      first,
		Last:       last,
		Delta:      last - first,
		DataPoints: len(hist),
	}
	if first > 0 {
		t.DeltaPct = (last - first) / first
	}
	return t, true
}
