package resolve

import (
	"math"
	"regexp"
	"strings"

	"github.com/sells-group/pricewatch/internal/model"
)

// Weights holds the confidence-scoring feature weights. The shipped defaults
// came out of tuning against a labeled page set; they are configuration, not
// constants, so they can be retuned without a code change.
type Weights struct {
	// Base is the starting score for any valid in-bounds candidate.
	Base float64 `yaml:"base" mapstructure:"base"`
	// Tier weights, most trustworthy first.
	Tier1 float64 `yaml:"tier1" mapstructure:"tier1"`
	Tier2 float64 `yaml:"tier2" mapstructure:"tier2"`
	Tier3 float64 `yaml:"tier3" mapstructure:"tier3"`
	Tier4 float64 `yaml:"tier4" mapstructure:"tier4"`
	Tier5 float64 `yaml:"tier5" mapstructure:"tier5"`
	Tier6 float64 `yaml:"tier6" mapstructure:"tier6"`
	// ExactCents rewards raw text with an explicit two-decimal cents part.
	ExactCents float64 `yaml:"exact_cents" mapstructure:"exact_cents"`
	// Consensus rewards agreement (within a cent) across distinct tiers.
	Consensus float64 `yaml:"consensus" mapstructure:"consensus"`
	// TopPosition rewards nodes rendered in the top part of the viewport.
	TopPosition       float64 `yaml:"top_position" mapstructure:"top_position"`
	TopPositionCutoff float64 `yaml:"top_position_cutoff" mapstructure:"top_position_cutoff"`
	// PositiveContext / ListContext / BorderlineTerm are context adjustments.
	PositiveContext float64 `yaml:"positive_context" mapstructure:"positive_context"`
	ListContext     float64 `yaml:"list_context" mapstructure:"list_context"`
	BorderlineTerm  float64 `yaml:"borderline_term" mapstructure:"borderline_term"`
	// TieBreakDelta is the top-two score gap below which the anomaly check
	// runs; AnomalyRelDiff is the relative price difference that triggers
	// the structural tie-break.
	TieBreakDelta  float64 `yaml:"tie_break_delta" mapstructure:"tie_break_delta"`
	AnomalyRelDiff float64 `yaml:"anomaly_rel_diff" mapstructure:"anomaly_rel_diff"`
}

// DefaultWeights returns the shipped scoring defaults.
func DefaultWeights() Weights {
	return Weights{
		Base:              50,
		Tier1:             40,
		Tier2:             30,
		Tier3:             22,
		Tier4:             10,
		Tier5:             8,
		Tier6:             4,
		ExactCents:        10,
		Consensus:         15,
		TopPosition:       8,
		TopPositionCutoff: 0.4,
		PositiveContext:   15,
		ListContext:       -25,
		BorderlineTerm:    -10,
		TieBreakDelta:     10,
		AnomalyRelDiff:    0.5,
	}
}

// TierWeight returns the weight for an extraction tier.
func (w Weights) TierWeight(t model.Tier) float64 {
	switch t {
	case model.TierStructuredField:
		return w.Tier1
	case model.TierCorePriceDisplay:
		return w.Tier2
	case model.TierBuyBox:
		return w.Tier3
	case model.TierHiddenAccessibleText:
		return w.Tier4
	case model.TierWholeFractionPair:
		return w.Tier5
	case model.TierFreeTextPattern:
		return w.Tier6
	default:
		return 0
	}
}

var exactCentsRe = regexp.MustCompile(`\.[0-9]{2}\b`)

// ScoreAll assigns a confidence score to every valid candidate. Invalid
// candidates keep confidence zero.
func ScoreAll(cands []model.ScoredCandidate, w Weights) {
	for i := range cands {
		if !cands[i].Valid {
			continue
		}
		scoreOne(&cands[i], cands, w)
	}
}

func scoreOne(c *model.ScoredCandidate, all []model.ScoredCandidate, w Weights) {
	b := map[string]float64{}
	b["base"] = w.Base
	b["tier"] = w.TierWeight(c.SourceTier)

	if exactCentsRe.MatchString(c.RawText) {
		b["exact_cents"] = w.ExactCents
	}
	if hasConsensus(c, all) {
		b["consensus"] = w.Consensus
	}
	if c.Provenance.PosY <= w.TopPositionCutoff {
		b["top_position"] = w.TopPosition
	}

	ancestor := strings.ToLower(c.Provenance.AncestorText)
	if _, ok := matchTerm(positiveMatchers, ancestor); ok {
		b["positive_context"] = w.PositiveContext
	}
	if _, ok := matchTerm(listMatchers, ancestor); ok {
		b["list_context"] = w.ListContext
	}
	// A fee term in the wider surroundings that wasn't close enough to
	// reject outright still softens the score.
	nearby := strings.ToLower(c.Provenance.NearbyText)
	if _, inAncestor := matchTerm(disqualifyMatchers, ancestor); !inAncestor {
		if _, ok := matchTerm(disqualifyMatchers, nearby); ok {
			b["borderline_term"] = w.BorderlineTerm
		}
	}

	var total float64
	for _, v := range b {
		total += v
	}
	c.Confidence = math.Min(100, math.Max(0, total))
	c.Breakdown = b
}

// hasConsensus reports whether another valid candidate from a different tier
// agrees with c within one cent.
func hasConsensus(c *model.ScoredCandidate, all []model.ScoredCandidate) bool {
	for i := range all {
		o := &all[i]
		if o == c || !o.Valid || o.SourceTier == c.SourceTier {
			continue
		}
		if math.Abs(o.Value-c.Value) <= 0.01 {
			return true
		}
	}
	return false
}
