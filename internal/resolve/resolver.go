// Package resolve turns extracted price candidates into a single trustworthy
// resolved price: validation, confidence scoring, consensus selection, and
// sale/list disambiguation.
package resolve

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricewatch/internal/extract"
	"github.com/sells-group/pricewatch/internal/model"
	"github.com/sells-group/pricewatch/internal/pagetree"
)

var (
	// ErrNoPriceFound means no valid candidate survived validation. Callers
	// must retain the previously known price.
	ErrNoPriceFound = eris.New("resolve: no price found")
	// ErrImplausiblePrice means candidates existed but all fell outside the
	// category plausibility bounds. Handled identically to ErrNoPriceFound.
	ErrImplausiblePrice = eris.New("resolve: all candidates implausible")
)

// Engine runs the full per-page resolution: extract, validate, score,
// select, disambiguate. One Engine is safe for concurrent use across items;
// it holds no per-resolution state.
type Engine struct {
	extractor *extract.Extractor
	weights   Weights
}

// NewEngine builds an Engine from extraction config and scoring weights.
func NewEngine(cfg extract.Config, w Weights) *Engine {
	return &Engine{extractor: extract.New(cfg), weights: w}
}

// Resolution is the full outcome of a resolve, including the scored
// candidates for audit.
type Resolution struct {
	Price      model.ResolvedPrice
	Candidates []model.ScoredCandidate
}

// Resolve resolves the current price for one page.
func (e *Engine) Resolve(tree *pagetree.Tree, bounds model.Bounds) (*model.ResolvedPrice, error) {
	res, err := e.ResolveDetailed(tree, bounds)
	if err != nil {
		return nil, err
	}
	return &res.Price, nil
}

// ResolveDetailed is Resolve plus the scored candidate set.
func (e *Engine) ResolveDetailed(tree *pagetree.Tree, bounds model.Bounds) (*Resolution, error) {
	ext := e.extractor.Extract(tree, bounds)
	if len(ext.Candidates) == 0 {
		if ext.OutOfBounds > 0 {
			return nil, eris.Wrapf(ErrImplausiblePrice, "%d candidate(s) outside bounds [%.2f, %.2f]",
				ext.OutOfBounds, bounds.Min, bounds.Max)
		}
		return nil, ErrNoPriceFound
	}

	scored := ValidateAll(ext.Candidates)
	ScoreAll(scored, e.weights)

	winner, ambiguous := pickWinner(scored, e.weights)
	if winner == nil {
		return nil, eris.Wrap(ErrNoPriceFound, "no valid current-price candidate")
	}

	rp := model.ResolvedPrice{
		Price:      winner.Value,
		Confidence: winner.Confidence,
		SourceTier: winner.SourceTier,
		ResolvedAt: time.Now().UTC(),
	}
	disambiguate(&rp, scored, tree)

	if ambiguous {
		zap.L().Warn("resolve: ambiguous tie resolved by structural tier",
			zap.Float64("price", rp.Price),
			zap.String("tier", rp.SourceTier.String()),
			zap.Float64("confidence", rp.Confidence),
		)
	}

	return &Resolution{Price: rp, Candidates: scored}, nil
}

// pickWinner selects the highest-scoring valid current-price candidate,
// applying the anomaly tie-break: when the top two scores are close but the
// prices diverge sharply, the structurally higher tier wins regardless of
// raw score.
func pickWinner(cands []model.ScoredCandidate, w Weights) (winner *model.ScoredCandidate, ambiguous bool) {
	var current []*model.ScoredCandidate
	for i := range cands {
		if cands[i].Valid && !cands[i].ListPrice {
			current = append(current, &cands[i])
		}
	}
	if len(current) == 0 {
		return nil, false
	}

	sort.SliceStable(current, func(i, j int) bool {
		return current[i].Confidence > current[j].Confidence
	})

	top := current[0]
	if len(current) == 1 {
		return top, false
	}

	second := current[1]
	if top.Confidence-second.Confidence < w.TieBreakDelta && relDiff(top.Value, second.Value) > w.AnomalyRelDiff {
		if second.SourceTier < top.SourceTier {
			return second, true
		}
		return top, true
	}
	return top, false
}

// relDiff is the price difference relative to the smaller value.
func relDiff(a, b float64) float64 {
	lo := math.Min(a, b)
	if lo <= 0 {
		return 0
	}
	return math.Abs(a-b) / lo
}

var typicalPriceRe = regexp.MustCompile(`(?i)typical price:?\s*\$([0-9][0-9,]*(?:\.[0-9]{2})?)`)

// disambiguate separates current vs list price and computes the discount,
// with a plausibility guard: discounts outside (0, 0.9) are treated as
// extraction noise and the sale flag is dropped.
func disambiguate(rp *model.ResolvedPrice, cands []model.ScoredCandidate, tree *pagetree.Tree) {
	base, ok := bestListPrice(cands, rp.Price)
	if !ok {
		base, ok = typicalPriceFallback(tree, rp.Price)
	}

	rp.IsOnSale = false
	rp.BasePrice = rp.Price
	rp.DiscountPercent = 0
	if !ok {
		return
	}

	discount := (base - rp.Price) / base
	if discount <= 0 || discount >= 0.9 {
		return
	}

	rp.IsOnSale = true
	rp.BasePrice = base
	rp.DiscountPercent = discount
}

// bestListPrice returns the most confident valid list-price candidate whose
// value exceeds the resolved current price.
func bestListPrice(cands []model.ScoredCandidate, current float64) (float64, bool) {
	var best *model.ScoredCandidate
	for i := range cands {
		c := &cands[i]
		if !c.Valid || !c.ListPrice || c.Value <= current {
			continue
		}
		if best == nil || c.Confidence > best.Confidence ||
			(c.Confidence == best.Confidence && c.Value > best.Value) {
			best = c
		}
	}
	if best == nil {
		return 0, false
	}
	return best.Value, true
}

// typicalPriceFallback scans the free text for an explicit "Typical price:
// $X" label when no list candidate was structurally tagged.
func typicalPriceFallback(tree *pagetree.Tree, current float64) (float64, bool) {
	m := typicalPriceRe.FindStringSubmatch(tree.AllText())
	if len(m) < 2 {
		return 0, false
	}
	raw := strings.ReplaceAll(m[1], ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= current {
		return 0, false
	}
	return v, true
}
