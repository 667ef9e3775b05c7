package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricewatch/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testItem() model.CatalogItem {
	return model.CatalogItem{
		ExternalID:     "B0CLTJHJ32",
		Name:           "MSI RTX 4070 SUPER Gaming X",
		NormalizedName: "msi rtx 4070 super gaming x",
		Category:       model.CategoryGPU,
		URL:            "https://example.com/p/B0CLTJHJ32",
	}
}

func TestSQLiteCreateAndGetItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateItem(ctx, testItem())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := s.GetItem(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "B0CLTJHJ32", got.ExternalID)
	assert.Equal(t, model.CategoryGPU, got.Category)
	assert.Empty(t, got.PriceHistory)
}

func TestSQLiteCreateItemUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateItem(ctx, testItem())
	require.NoError(t, err)

	dup := testItem()
	dup.Name = "MSI RTX 4070 SUPER (relisted)"
	second, err := s.CreateItem(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "conflicting external_id returns the existing row")

	items, err := s.ListItems(ctx, ItemFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSQLiteGetItemMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetItem(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.GetItemByExternalID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.GetItemByNormalizedName(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteGetItemByNormalizedName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateItem(ctx, testItem())
	require.NoError(t, err)

	got, err := s.GetItemByNormalizedName(ctx, "msi rtx 4070 super gaming x")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "B0CLTJHJ32", got.ExternalID)
}

func TestSQLiteListItemsByCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gpu := testItem()
	_, err := s.CreateItem(ctx, gpu)
	require.NoError(t, err)

	psu := model.CatalogItem{
		ExternalID:     "B0PSU850",
		Name:           "Corsair RM850x",
		NormalizedName: "corsair rm850x",
		Category:       model.CategoryPSU,
	}
	_, err = s.CreateItem(ctx, psu)
	require.NoError(t, err)

	items, err := s.ListItems(ctx, ItemFilter{Category: model.CategoryPSU})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "corsair rm850x", items[0].NormalizedName)
}

func TestSQLiteUpdateItemPrices(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateItem(ctx, testItem())
	require.NoError(t, err)

	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	created.CurrentPrice = 599.99
	created.BasePrice = 649.99
	created.SalePrice = 599.99
	created.IsOnSale = true
	created.LastPriceCheck = day
	created.PriceHistory = []model.PriceHistoryEntry{
		{Date: day, CurrentPrice: 599.99, BasePrice: 649.99, IsOnSale: true},
	}
	require.NoError(t, s.UpdateItemPrices(ctx, created))

	got, err := s.GetItem(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 599.99, got.CurrentPrice)
	assert.Equal(t, 649.99, got.BasePrice)
	assert.True(t, got.IsOnSale)
	require.Len(t, got.PriceHistory, 1)
	assert.Equal(t, "2026-08-30", got.PriceHistory[0].DayKey())
	assert.False(t, got.LastPriceCheck.IsZero())
}

func TestSQLiteUpdateItemPricesMissing(t *testing.T) {
	s := newTestStore(t)
	item := testItem()
	item.ID = "missing"
	err := s.UpdateItemPrices(context.Background(), &item)
	assert.Error(t, err)
}

func TestSQLiteCheckFailures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateItem(ctx, testItem())
	require.NoError(t, err)

	require.NoError(t, s.RecordCheckFailure(ctx, created.ID, "fetch timeout"))
	require.NoError(t, s.RecordCheckFailure(ctx, created.ID, "no price found"))

	failures, err := s.ListCheckFailures(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, created.ID, failures[0].ItemID)
	assert.Equal(t, "fetch timeout", failures[0].Reason)

	failures, err = s.ListCheckFailures(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, failures)
}
