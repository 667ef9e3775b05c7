// Package store persists the catalog: items, their day-granular price
// histories, and per-cycle check failures. It doubles as the identity
// registry; CreateItem is a transactional upsert on external ID so
// concurrent discovery workers cannot both insert the same product.
package store

import (
	"context"
	"time"

	"github.com/sells-group/pricewatch/internal/model"
)

// ItemFilter specifies criteria for listing catalog items.
type ItemFilter struct {
	Category model.Category `json:"category,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// CheckFailure records one item's failed check cycle for audit.
type CheckFailure struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the persistence interface for the price tracker.
type Store interface {
	// Catalog items. Lookup methods return (nil, nil) when absent.
	CreateItem(ctx context.Context, item model.CatalogItem) (*model.CatalogItem, error)
	GetItem(ctx context.Context, id string) (*model.CatalogItem, error)
	GetItemByExternalID(ctx context.Context, externalID string) (*model.CatalogItem, error)
	GetItemByNormalizedName(ctx context.Context, name string) (*model.CatalogItem, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]model.CatalogItem, error)

	// UpdateItemPrices persists the price fields, history and check
	// timestamp after a successful history merge.
	UpdateItemPrices(ctx context.Context, item *model.CatalogItem) error

	// Check-cycle failures.
	RecordCheckFailure(ctx context.Context, itemID, reason string) error
	ListCheckFailures(ctx context.Context, since time.Time) ([]CheckFailure, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
