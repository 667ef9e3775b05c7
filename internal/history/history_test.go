package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricewatch/internal/model"
)

func resolved(price, base float64, sale bool) model.ResolvedPrice {
	return model.ResolvedPrice{Price: price, BasePrice: base, IsOnSale: sale}
}

func TestMerge_AppendsNewDay(t *testing.T) {
	item := model.CatalogItem{ID: "i1"}
	asOf := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	out := Merge(item, resolved(499, 499, false), asOf)
	require.Len(t, out.PriceHistory, 1)
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), out.PriceHistory[0].Date)
	assert.Equal(t, 499.0, out.CurrentPrice)
	assert.Equal(t, asOf, out.LastPriceCheck)
	assert.Empty(t, item.PriceHistory, "input not mutated")
}

func TestMerge_SameDayIdempotent(t *testing.T) {
	item := model.CatalogItem{ID: "i1"}
	morning := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 8, 30, 20, 0, 0, 0, time.UTC)

	out := Merge(item, resolved(499, 499, false), morning)
	out = Merge(out, resolved(479, 549, true), evening)
	out = Merge(out, resolved(479, 549, true), evening)

	require.Len(t, out.PriceHistory, 1, "one entry per calendar day")
	assert.Equal(t, 479.0, out.PriceHistory[0].CurrentPrice)
	assert.True(t, out.PriceHistory[0].IsOnSale)
}

func TestMerge_TimezoneBoundary(t *testing.T) {
	// 20:00 EST Aug 30 is 01:00 UTC Aug 31: distinct UTC days.
	est := time.FixedZone("EST", -5*3600)
	item := model.CatalogItem{}

	out := Merge(item, resolved(100, 100, false), time.Date(2026, 8, 30, 10, 0, 0, 0, est))
	out = Merge(out, resolved(90, 90, false), time.Date(2026, 8, 30, 20, 0, 0, 0, est))

	require.Len(t, out.PriceHistory, 2)
	assert.Equal(t, "2026-08-30", out.PriceHistory[0].DayKey())
	assert.Equal(t, "2026-08-31", out.PriceHistory[1].DayKey())
}

func TestMerge_CurrentPriceTracksLatestEntry(t *testing.T) {
	item := model.CatalogItem{}
	d1 := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	out := Merge(item, resolved(520, 520, false), d1)
	out = Merge(out, resolved(499, 549, true), d3)
	// Backfilled earlier day must not move the derived current price.
	out = Merge(out, resolved(510, 510, false), d2)

	require.Len(t, out.PriceHistory, 3)
	assert.Equal(t, 499.0, out.CurrentPrice)
	assert.Equal(t, 499.0, out.LatestEntry().CurrentPrice)
	assert.True(t, out.IsOnSale)
	assert.Equal(t, 549.0, out.BasePrice)
	assert.Equal(t, 499.0, out.SalePrice)

	// Ascending order preserved.
	for i := 1; i < len(out.PriceHistory); i++ {
		assert.True(t, out.PriceHistory[i-1].Date.Before(out.PriceHistory[i].Date))
	}
}

func TestMerge_NotOnSaleCollapsesBasePrice(t *testing.T) {
	out := Merge(model.CatalogItem{}, resolved(845.98, 845.98, false), time.Now())
	assert.Equal(t, 845.98, out.CurrentPrice)
	assert.Equal(t, 845.98, out.BasePrice)
	assert.Equal(t, 845.98, out.SalePrice)
	assert.False(t, out.IsOnSale)
}

func TestComputeTrend(t *testing.T) {
	hist := []model.PriceHistoryEntry{
		{CurrentPrice: 500},
		{CurrentPrice: 480},
		{CurrentPrice: 450},
	}
	tr, ok := ComputeTrend(hist)
	require.True(t, ok)
	assert.Equal(t, -50.0, tr.Delta)
	assert.InDelta(t, -0.1, tr.DeltaPct, 0.0001)
	assert.Equal(t, 3, tr.DataPoints)
}

func TestComputeTrend_TooFewPoints(t *testing.T) {
	_, ok := ComputeTrend(nil)
	assert.False(t, ok)
	_, ok = ComputeTrend([]model.PriceHistoryEntry{{CurrentPrice: 1}})
	assert.False(t, ok)
}

func TestComputeTrend_DoesNotMutate(t *testing.T) {
	hist := []model.PriceHistoryEntry{{CurrentPrice: 500}, {CurrentPrice: 450}}
	orig := make([]model.PriceHistoryEntry, len(hist))
	copy(orig, hist)
	_, _ = ComputeTrend(hist)
	assert.Equal(t, orig, hist)
}
