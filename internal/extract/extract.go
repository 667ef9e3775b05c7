// Package extract scans a page-content tree for price candidates using
// ranked strategies. Tiers run most-structurally-trustworthy first; every
// candidate is bounds-checked at emission so downstream stages never see
// implausible values.
package extract

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/pricewatch/internal/model"
	"github.com/sells-group/pricewatch/internal/pagetree"
)

// Mode selects how many tiers run.
type Mode string

const (
	// ModeShortCircuit stops after the first tier that yields candidates.
	ModeShortCircuit Mode = "short_circuit"
	// ModeEnsemble runs all tiers and lets scoring arbitrate.
	ModeEnsemble Mode = "ensemble"
)

// Config controls extraction behavior.
type Config struct {
	Mode Mode `yaml:"mode" mapstructure:"mode"`
}

// Result carries the emitted candidates plus counts the resolver needs to
// distinguish "nothing on the page" from "everything implausible".
type Result struct {
	Candidates []model.PriceCandidate
	// OutOfBounds counts raw matches discarded by the bounds filter.
	OutOfBounds int
	// TiersRun lists the tiers that executed, in order.
	TiersRun []model.Tier
}

// Extractor runs the tiered candidate extraction strategies.
type Extractor struct {
	cfg Config
}

// New creates an Extractor. An empty mode defaults to short-circuit, matching
// single-page check cycles where the first trustworthy tier is enough.
func New(cfg Config) *Extractor {
	if cfg.Mode == "" {
		cfg.Mode = ModeShortCircuit
	}
	return &Extractor{cfg: cfg}
}

type tierFn struct {
	tier model.Tier
	run  func(*pagetree.Tree, model.Bounds, *Result)
}

// Extract runs the strategy tiers against the tree.
func (e *Extractor) Extract(tree *pagetree.Tree, bounds model.Bounds) Result {
	res := Result{}
	tiers := []tierFn{
		{model.TierStructuredField, e.structuredFields},
		{model.TierCorePriceDisplay, e.corePriceDisplay},
		{model.TierBuyBox, e.buyBox},
		{model.TierHiddenAccessibleText, e.hiddenAccessible},
		{model.TierWholeFractionPair, e.wholeFractionPairs},
		{model.TierFreeTextPattern, e.freeTextPatterns},
	}

	for _, t := range tiers {
		before := len(res.Candidates)
		t.run(tree, bounds, &res)
		res.TiersRun = append(res.TiersRun, t.tier)
		if e.cfg.Mode == ModeShortCircuit && len(res.Candidates) > before {
			break
		}
	}

	zap.L().Debug("extract: tiers complete",
		zap.Int("candidates", len(res.Candidates)),
		zap.Int("out_of_bounds", res.OutOfBounds),
		zap.Int("tiers_run", len(res.TiersRun)),
	)
	return res
}

// emit applies the bounds filter. Values outside bounds never become
// candidates.
func emit(res *Result, bounds model.Bounds, c model.PriceCandidate) {
	if !bounds.Contains(c.Value) {
		res.OutOfBounds++
		return
	}
	res.Candidates = append(res.Candidates, c)
}

// structuredDataPricePaths are checked in order against each JSON-LD block.
var structuredDataPricePaths = []string{
	"offers.price",
	"offers.lowPrice",
	"offers.0.price",
	"price",
}

// structuredFields is tier 1: explicit price form fields and embedded
// structured-data blocks.
func (e *Extractor) structuredFields(tree *pagetree.Tree, bounds model.Bounds, res *Result) {
	for _, f := range tree.Fields {
		v, ok := parsePrice(f.Value)
		if !ok {
			continue
		}
		emit(res, bounds, model.PriceCandidate{
			Value:      v,
			RawText:    f.Value,
			SourceTier: model.TierStructuredField,
			Provenance: model.Provenance{
				NodePath:  f.Path,
				Attribute: f.Attribute,
				PosY:      f.PosY,
			},
		})
	}

	for _, b := range tree.Blocks {
		if !gjson.Valid(b.JSON) {
			continue
		}
		parsed := gjson.Parse(b.JSON)
		for _, path := range structuredDataPricePaths {
			val := parsed.Get(path)
			if !val.Exists() {
				continue
			}
			v, ok := parsePrice(val.String())
			if !ok {
				continue
			}
			emit(res, bounds, model.PriceCandidate{
				Value:      v,
				RawText:    val.String(),
				SourceTier: model.TierStructuredField,
				Provenance: model.Provenance{
					NodePath:  b.Path,
					Attribute: path,
				},
			})
			break
		}
	}
}

// corePriceDisplay is tier 2: nodes inside the page's primary price region.
func (e *Extractor) corePriceDisplay(tree *pagetree.Tree, bounds model.Bounds, res *Result) {
	e.emitRegionNodes(tree.InRegion(pagetree.RegionPriceDisplay), model.TierCorePriceDisplay, bounds, res)
}

// buyBox is tier 3: nodes inside the purchase-action region.
func (e *Extractor) buyBox(tree *pagetree.Tree, bounds model.Bounds, res *Result) {
	e.emitRegionNodes(tree.InRegion(pagetree.RegionBuyBox), model.TierBuyBox, bounds, res)
}

func (e *Extractor) emitRegionNodes(nodes []pagetree.TextNode, tier model.Tier, bounds model.Bounds, res *Result) {
	for _, n := range nodes {
		raw, v, ok := firstPrice(n.Text)
		if !ok {
			continue
		}
		emit(res, bounds, model.PriceCandidate{
			Value:         v,
			RawText:       raw,
			SourceTier:    tier,
			Provenance:    provenanceOf(n),
			Strikethrough: n.Struck,
		})
	}
}

// hiddenAccessible is tier 4: visually-hidden but screen-reader-visible
// price text anywhere in the document.
func (e *Extractor) hiddenAccessible(tree *pagetree.Tree, bounds model.Bounds, res *Result) {
	for _, n := range tree.HiddenNodes() {
		raw, v, ok := firstPrice(n.Text)
		if !ok {
			continue
		}
		emit(res, bounds, model.PriceCandidate{
			Value:         v,
			RawText:       raw,
			SourceTier:    model.TierHiddenAccessibleText,
			Provenance:    provenanceOf(n),
			Strikethrough: n.Struck,
		})
	}
}

// wholeFractionPairs is tier 5: sibling integer+cents markup reconstruction.
func (e *Extractor) wholeFractionPairs(tree *pagetree.Tree, bounds model.Bounds, res *Result) {
	for _, p := range tree.Pairs {
		frac := p.Fraction
		if frac == "" {
			frac = "00"
		}
		raw := p.Whole + "." + frac
		v, ok := parsePrice(raw)
		if !ok {
			continue
		}
		emit(res, bounds, model.PriceCandidate{
			Value:      v,
			RawText:    raw,
			SourceTier: model.TierWholeFractionPair,
			Provenance: model.Provenance{
				NodePath:     p.Path,
				AncestorText: p.AncestorText,
				PosY:         p.PosY,
			},
			Strikethrough: p.Struck,
		})
	}
}

// freeTextPatterns is tier 6: currency-formatted substrings in arbitrary
// text, with surrounding context captured for scoring.
func (e *Extractor) freeTextPatterns(tree *pagetree.Tree, bounds model.Bounds, res *Result) {
	for _, n := range tree.Nodes {
		for _, m := range allPrices(n.Text) {
			emit(res, bounds, model.PriceCandidate{
				Value:         m.value,
				RawText:       m.raw,
				SourceTier:    model.TierFreeTextPattern,
				Provenance:    provenanceOf(n),
				Strikethrough: n.Struck,
			})
		}
	}
}

func provenanceOf(n pagetree.TextNode) model.Provenance {
	return model.Provenance{
		NodePath:     n.Path,
		AncestorText: n.AncestorText + " " + n.Text,
		NearbyText:   n.NearbyText,
		PosY:         n.PosY,
	}
}

// parsePrice parses a bare or currency-formatted amount.
func parsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "USD")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
