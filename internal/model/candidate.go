package model

import "time"

// Tier is the priority rank of an extraction strategy. Lower numbers are more
// structurally trustworthy.
type Tier int

const (
	TierStructuredField Tier = iota + 1
	TierCorePriceDisplay
	TierBuyBox
	TierHiddenAccessibleText
	TierWholeFractionPair
	TierFreeTextPattern
)

func (t Tier) String() string {
	switch t {
	case TierStructuredField:
		return "structured_field"
	case TierCorePriceDisplay:
		return "core_price_display"
	case TierBuyBox:
		return "buy_box"
	case TierHiddenAccessibleText:
		return "hidden_accessible_text"
	case TierWholeFractionPair:
		return "whole_fraction_pair"
	case TierFreeTextPattern:
		return "free_text_pattern"
	default:
		return "unknown"
	}
}

// Provenance records where in the page a candidate came from.
type Provenance struct {
	// NodePath is a best-effort CSS-like path to the source node.
	NodePath string `json:"node_path,omitempty"`
	// AncestorText is the text of the nearest enclosing levels (up to three),
	// used for disqualification and context scoring.
	AncestorText string `json:"ancestor_text,omitempty"`
	// NearbyText is wider surrounding text. Terms found only here soften the
	// score instead of rejecting the candidate outright.
	NearbyText string `json:"nearby_text,omitempty"`
	// Attribute names the element attribute the value was read from, if any.
	Attribute string `json:"attribute,omitempty"`
	// PosY is the approximate vertical render position as a fraction of the
	// document (0 = top, 1 = bottom).
	PosY float64 `json:"pos_y"`
}

// PriceCandidate is an extracted price value with its provenance, prior to
// validation and scoring.
type PriceCandidate struct {
	Value         float64    `json:"value"`
	RawText       string     `json:"raw_text"`
	SourceTier    Tier       `json:"source_tier"`
	Provenance    Provenance `json:"provenance"`
	Strikethrough bool       `json:"strikethrough"`
}

// ScoredCandidate is a candidate after validation and confidence scoring.
type ScoredCandidate struct {
	PriceCandidate
	// Confidence is the final score, clamped to [0, 100].
	Confidence float64 `json:"confidence"`
	// Breakdown maps feature names to their score contribution, for audit.
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
	Valid     bool               `json:"valid"`
	// RejectionReason is set when Valid is false.
	RejectionReason string `json:"rejection_reason,omitempty"`
	// ListPrice marks strikethrough/"was"/"msrp" candidates. These never
	// resolve as the current price but feed sale detection.
	ListPrice bool `json:"list_price"`
}

// ResolvedPrice is the final chosen price for one check cycle. It is never
// persisted directly; only its reduction into a history entry is.
type ResolvedPrice struct {
	Price           float64   `json:"price"`
	Confidence      float64   `json:"confidence"`
	SourceTier      Tier      `json:"source_tier"`
	IsOnSale        bool      `json:"is_on_sale"`
	BasePrice       float64   `json:"base_price"`
	DiscountPercent float64   `json:"discount_percent"`
	ResolvedAt      time.Time `json:"resolved_at"`
}
