// Package fetcher downloads product pages and parses them into the node
// tree the extractor consumes.
package fetcher

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricewatch/internal/pagetree"
)

// Sentinel fetch errors, checked with eris.Is by the check runner when
// recording failure reasons.
var (
	// ErrFetchTimeout means the page did not arrive within the deadline.
	ErrFetchTimeout = eris.New("fetch timeout")

	// ErrBlocked means the retailer served a bot wall or captcha page
	// instead of the product.
	ErrBlocked = eris.New("fetch blocked")

	// ErrFetchFailure covers every other download failure.
	ErrFetchFailure = eris.New("fetch failure")
)

// PageFetcher retrieves a product page and returns its parsed tree.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*pagetree.Tree, error)
}
