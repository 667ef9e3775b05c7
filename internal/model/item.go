package model

import "time"

// Category identifies a catalog category with its own plausibility bounds.
type Category string

const (
	CategoryGPU     Category = "gpu"
	CategoryCPU     Category = "cpu"
	CategoryPSU     Category = "psu"
	CategoryRAM     Category = "ram"
	CategoryStorage Category = "storage"
	CategoryMonitor Category = "monitor"
)

// Bounds is the per-category plausible price range. Candidates outside the
// range are discarded at extraction time.
type Bounds struct {
	Min float64 `yaml:"min" mapstructure:"min"`
	Max float64 `yaml:"max" mapstructure:"max"`
}

// Contains reports whether v falls inside the bounds (inclusive).
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// PriceHistoryEntry is a day-granularity record of a resolved price.
// At most one entry exists per UTC calendar day per item.
type PriceHistoryEntry struct {
	Date         time.Time `json:"date"`
	CurrentPrice float64   `json:"current_price"`
	BasePrice    float64   `json:"base_price"`
	IsOnSale     bool      `json:"is_on_sale"`
}

// DayKey returns the UTC calendar-day key for the entry.
func (e PriceHistoryEntry) DayKey() string {
	return e.Date.UTC().Format("2006-01-02")
}

// CatalogItem is a tracked product with its price history.
type CatalogItem struct {
	ID             string              `json:"id"`
	ExternalID     string              `json:"external_id"`
	Name           string              `json:"name"`
	NormalizedName string              `json:"normalized_name"`
	Category       Category            `json:"category"`
	URL            string              `json:"url"`
	CurrentPrice   float64             `json:"current_price"`
	BasePrice      float64             `json:"base_price"`
	SalePrice      float64             `json:"sale_price"`
	IsOnSale       bool                `json:"is_on_sale"`
	PriceHistory   []PriceHistoryEntry `json:"price_history"`
	LastPriceCheck time.Time           `json:"last_price_check"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// LatestEntry returns the chronologically last history entry, or nil when the
// history is empty. History is kept in ascending date order.
func (i *CatalogItem) LatestEntry() *PriceHistoryEntry {
	if len(i.PriceHistory) == 0 {
		return nil
	}
	return &i.PriceHistory[len(i.PriceHistory)-1]
}

// HasPrice reports whether the item has ever resolved a price.
func (i *CatalogItem) HasPrice() bool {
	return len(i.PriceHistory) > 0
}
