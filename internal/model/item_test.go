package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBounds_Contains(t *testing.T) {
	b := Bounds{Min: 50, Max: 5000}
	assert.True(t, b.Contains(50))
	assert.True(t, b.Contains(5000))
	assert.True(t, b.Contains(845.98))
	assert.False(t, b.Contains(49.99))
	assert.False(t, b.Contains(5000.01))
}

func TestPriceHistoryEntry_DayKey(t *testing.T) {
	e := PriceHistoryEntry{Date: time.Date(2026, 3, 14, 23, 59, 0, 0, time.FixedZone("EST", -5*3600))}
	// 23:59 EST is already the next UTC day.
	assert.Equal(t, "2026-03-15", e.DayKey())
}

func TestCatalogItem_LatestEntry(t *testing.T) {
	item := &CatalogItem{}
	assert.Nil(t, item.LatestEntry())
	assert.False(t, item.HasPrice())

	item.PriceHistory = []PriceHistoryEntry{
		{Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), CurrentPrice: 499},
		{Date: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), CurrentPrice: 479},
	}
	last := item.LatestEntry()
	assert.Equal(t, 479.0, last.CurrentPrice)
	assert.True(t, item.HasPrice())
}

func TestTier_String(t *testing.T) {
	assert.Equal(t, "structured_field", TierStructuredField.String())
	assert.Equal(t, "free_text_pattern", TierFreeTextPattern.String())
	assert.Equal(t, "unknown", Tier(0).String())
}
