package discovery

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pricewatch/internal/identity"
)

// Report summarizes one discovery run.
type Report struct {
	Found   int `json:"found"`
	Matched int `json:"matched"`
	Created int `json:"created"`
	Capped  int `json:"capped"`
	Failed  int `json:"failed"`
}

// Runner folds discovered products into the catalog. The matcher is
// run-scoped: its diversity counters cover exactly one Run.
type Runner struct {
	matcher     *identity.Matcher
	concurrency int
}

// NewRunner creates a discovery Runner.
func NewRunner(matcher *identity.Matcher, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Runner{matcher: matcher, concurrency: concurrency}
}

// Run matches every discovered product against the catalog, creating the
// genuinely new ones. Capped variants and per-product failures are counted
// but never abort the run.
func (r *Runner) Run(ctx context.Context, products []DiscoveredProduct) (*Report, error) {
	report := &Report{Found: len(products)}
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, p := range products {
		p := p
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			res, err := r.matcher.MatchOrCreate(gCtx, p.ExternalID, p.Name, p.Category, p.URL)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case eris.Is(err, identity.ErrVariantCapped):
				report.Capped++
			case err != nil:
				report.Failed++
				zap.L().Warn("discovery: match failed",
					zap.String("external_id", p.ExternalID),
					zap.String("name", p.Name),
					zap.Error(err),
				)
			case res.Created:
				report.Created++
			default:
				report.Matched++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "discovery: run aborted")
	}

	zap.L().Info("discovery run complete",
		zap.Int("found", report.Found),
		zap.Int("matched", report.Matched),
		zap.Int("created", report.Created),
		zap.Int("capped", report.Capped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
