// Package identity decides whether a discovered product already exists in
// the catalog. Matching is by exact external ID first, then by normalized
// name; anything else is new, subject to a per-run diversity cap on
// near-duplicate variants.
package identity

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/pricewatch/internal/model"
)

// ErrVariantCapped is returned when the diversity filter has already
// admitted the configured number of variants for a similarity key this run.
var ErrVariantCapped = eris.New("identity: variant cap reached for similarity key")

// Registry is the catalog surface the matcher needs. Create must be a
// transactional upsert on external ID so concurrent discovery workers cannot
// both insert the same item.
type Registry interface {
	GetItemByExternalID(ctx context.Context, externalID string) (*model.CatalogItem, error)
	GetItemByNormalizedName(ctx context.Context, name string) (*model.CatalogItem, error)
	CreateItem(ctx context.Context, item model.CatalogItem) (*model.CatalogItem, error)
}

// MatchResult is the outcome of one identity decision.
type MatchResult struct {
	Item    *model.CatalogItem
	Created bool
}

// Matcher matches discovered products against the catalog. One Matcher is
// scoped to a single discovery run; its variant counters reset with it.
type Matcher struct {
	reg       Registry
	maxPerKey int

	mu   sync.Mutex
	seen map[string]int
}

// NewMatcher creates a run-scoped Matcher. maxPerKey caps near-duplicate
// variants per similarity key; zero or negative disables the cap.
func NewMatcher(reg Registry, maxPerKey int) *Matcher {
	return &Matcher{reg: reg, maxPerKey: maxPerKey, seen: make(map[string]int)}
}

// MatchOrCreate returns the existing catalog item for the discovered
// product, or creates a new one. New items beyond the diversity cap return
// ErrVariantCapped.
func (m *Matcher) MatchOrCreate(ctx context.Context, externalID, rawName string, category model.Category, url string) (*MatchResult, error) {
	if externalID != "" {
		item, err := m.reg.GetItemByExternalID(ctx, externalID)
		if err != nil {
			return nil, eris.Wrap(err, "identity: lookup by external id")
		}
		if item != nil {
			return &MatchResult{Item: item}, nil
		}
	}

	normalized := NormalizeName(rawName)
	if normalized != "" {
		item, err := m.reg.GetItemByNormalizedName(ctx, normalized)
		if err != nil {
			return nil, eris.Wrap(err, "identity: lookup by normalized name")
		}
		if item != nil {
			return &MatchResult{Item: item}, nil
		}
	}

	key := SimilarityKey(category, normalized)
	if !m.admit(key) {
		zap.L().Debug("identity: variant cap hit",
			zap.String("key", key),
			zap.String("external_id", externalID),
		)
		return nil, eris.Wrapf(ErrVariantCapped, "key %s", key)
	}

	created, err := m.reg.CreateItem(ctx, model.CatalogItem{
		ExternalID:     externalID,
		Name:           strings.TrimSpace(rawName),
		NormalizedName: normalized,
		Category:       category,
		URL:            url,
	})
	if err != nil {
		return nil, eris.Wrap(err, "identity: create item")
	}
	return &MatchResult{Item: created, Created: true}, nil
}

func (m *Matcher) admit(key string) bool {
	if m.maxPerKey <= 0 {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[key] >= m.maxPerKey {
		return false
	}
	m.seen[key]++
	return true
}

// foldChain strips diacritics after compatibility decomposition, so "Ryzen™"
// and "Café" normalize predictably.
var foldChain = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName lowercases, strips non-alphanumerics and collapses
// whitespace, after unicode folding.
func NormalizeName(raw string) string {
	folded, _, err := transform.String(foldChain, raw)
	if err != nil {
		folded = raw
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
