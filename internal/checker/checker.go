// Package checker runs price check cycles: fetch each item's page,
// resolve its price, merge the result into history, and persist.
package checker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/pricewatch/internal/fetcher"
	"github.com/sells-group/pricewatch/internal/history"
	"github.com/sells-group/pricewatch/internal/model"
	"github.com/sells-group/pricewatch/internal/resolve"
	"github.com/sells-group/pricewatch/internal/store"
)

// Options configures a check cycle.
type Options struct {
	// Concurrency is the number of items checked in parallel.
	Concurrency int

	// ItemTimeout bounds a single item's fetch and resolve.
	ItemTimeout time.Duration

	// RequestsPerSecond throttles checks across all workers. Zero
	// disables throttling.
	RequestsPerSecond float64
}

// Failure is one item's failed check within a cycle.
type Failure struct {
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// CycleReport summarizes one check cycle.
type CycleReport struct {
	Checked  int       `json:"checked"`
	Updated  int       `json:"updated"`
	Failed   int       `json:"failed"`
	Skipped  int       `json:"skipped"`
	Failures []Failure `json:"failures,omitempty"`
	Duration string    `json:"duration"`
}

// Checker coordinates fetch, resolve and persist for catalog items.
type Checker struct {
	store   store.Store
	fetch   fetcher.PageFetcher
	engine  *resolve.Engine
	bounds  map[model.Category]model.Bounds
	opts    Options
	limiter *rate.Limiter
}

// New creates a Checker. The bounds map supplies per-category price
// plausibility ranges for resolution.
func New(st store.Store, fetch fetcher.PageFetcher, engine *resolve.Engine, bounds map[model.Category]model.Bounds, opts Options) *Checker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 45 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Checker{store: st, fetch: fetch, engine: engine, bounds: bounds, opts: opts, limiter: limiter}
}

// CheckOne fetches and resolves a single item's price, merging the result
// into its history. A failed check records a failure row and leaves the
// stored price untouched.
func (c *Checker) CheckOne(ctx context.Context, item model.CatalogItem) (*model.CatalogItem, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ItemTimeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "checker: rate limiter wait")
		}
	}

	log := zap.L().With(zap.String("item", item.ID), zap.String("name", item.Name))

	tree, err := c.fetch.FetchPage(ctx, item.URL)
	if err != nil {
		c.recordFailure(ctx, item.ID, err)
		return nil, eris.Wrapf(err, "checker: fetch %s", item.ID)
	}

	rp, err := c.engine.Resolve(tree, c.boundsFor(item.Category))
	if err != nil {
		c.recordFailure(ctx, item.ID, err)
		return nil, eris.Wrapf(err, "checker: resolve %s", item.ID)
	}

	updated := history.Merge(item, *rp, rp.ResolvedAt)
	if err := c.store.UpdateItemPrices(ctx, &updated); err != nil {
		return nil, eris.Wrapf(err, "checker: persist %s", item.ID)
	}

	log.Info("price check complete",
		zap.Float64("price", rp.Price),
		zap.Float64("confidence", rp.Confidence),
		zap.Bool("on_sale", rp.IsOnSale),
	)
	return &updated, nil
}

// RunCycle checks every item matching the filter with a bounded worker
// pool. One item's failure never aborts the cycle.
func (c *Checker) RunCycle(ctx context.Context, filter store.ItemFilter) (*CycleReport, error) {
	items, err := c.store.ListItems(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "checker: list items")
	}

	start := time.Now()
	var updated, skipped atomic.Int64
	var mu sync.Mutex
	var failures []Failure

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for _, item := range items {
		item := item
		if item.URL == "" {
			skipped.Add(1)
			continue
		}
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			if _, err := c.CheckOne(gCtx, item); err != nil {
				mu.Lock()
				failures = append(failures, Failure{
					ItemID: item.ID,
					Name:   item.Name,
					Reason: failureReason(err),
				})
				mu.Unlock()
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "checker: cycle aborted")
	}

	report := &CycleReport{
		Checked:  len(items) - int(skipped.Load()),
		Updated:  int(updated.Load()),
		Failed:   len(failures),
		Skipped:  int(skipped.Load()),
		Failures: failures,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	zap.L().Info("check cycle complete",
		zap.Int("checked", report.Checked),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.String("duration", report.Duration),
	)
	return report, nil
}

// boundsFor returns the category's plausibility range, falling back to a
// permissive default for categories missing from the config.
func (c *Checker) boundsFor(cat model.Category) model.Bounds {
	if b, ok := c.bounds[cat]; ok {
		return b
	}
	return model.Bounds{Min: 1, Max: 100000}
}

// recordFailure writes the audit row on a detached context; the item's
// deadline may already have expired when the failure is recorded.
func (c *Checker) recordFailure(ctx context.Context, itemID string, cause error) {
	if err := c.store.RecordCheckFailure(context.WithoutCancel(ctx), itemID, failureReason(cause)); err != nil {
		zap.L().Warn("failed to record check failure",
			zap.String("item", itemID),
			zap.Error(err),
		)
	}
}

// failureReason collapses known failure modes into stable reason strings
// for the check_failures audit table.
func failureReason(err error) string {
	switch {
	case eris.Is(err, fetcher.ErrFetchTimeout):
		return "fetch timeout"
	case eris.Is(err, fetcher.ErrBlocked):
		return "fetch blocked"
	case eris.Is(err, fetcher.ErrFetchFailure):
		return "fetch failure"
	case eris.Is(err, resolve.ErrImplausiblePrice):
		return "implausible price"
	case eris.Is(err, resolve.ErrNoPriceFound):
		return "no price found"
	default:
		return err.Error()
	}
}
