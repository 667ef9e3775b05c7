// Package pagetree models a rendered product page as a flat tree of
// ancestor-aware text nodes, ready for tiered price extraction. It is the
// boundary between page retrieval (browser, HTTP, fixtures) and the
// resolution engine: anything that can produce a Tree can be priced.
package pagetree

import "strings"

// Region classifies where on the page a node sits.
type Region string

const (
	RegionNone         Region = ""
	RegionPriceDisplay Region = "price_display"
	RegionBuyBox       Region = "buy_box"
)

// TextNode is one text-bearing element with enough surrounding context to
// validate and score a price candidate without re-walking the DOM.
type TextNode struct {
	Text string
	// Path is a best-effort CSS-like locator for audit logs.
	Path string
	// AncestorText is the own-text of up to three enclosing levels.
	AncestorText string
	// NearbyText is the wider container text, truncated. Disqualifying terms
	// found only here soften a score instead of rejecting the candidate.
	NearbyText string
	Attrs      map[string]string
	// PosY approximates the vertical render position as a fraction of the
	// document (0 = top).
	PosY float64
	// Hidden marks visually-hidden but screen-reader-visible text.
	Hidden bool
	// Struck marks strikethrough / list-price styling on the node or an
	// enclosing element.
	Struck bool
	Region Region
}

// PricePair is a sibling pair forming an integer part and a cents part
// (the split-price markup pattern).
type PricePair struct {
	Whole        string
	Fraction     string
	Path         string
	AncestorText string
	PosY         float64
	Struck       bool
}

// StructuredBlock is an embedded structured-data script (JSON-LD) kept
// verbatim for the structured-field extraction tier.
type StructuredBlock struct {
	JSON string
	Path string
}

// PriceField is an explicit numeric price-bearing form field or data
// attribute.
type PriceField struct {
	Name      string
	Value     string
	Path      string
	Attribute string
	PosY      float64
}

// Tree is the page-content tree consumed by the resolution engine.
type Tree struct {
	Nodes  []TextNode
	Pairs  []PricePair
	Blocks []StructuredBlock
	Fields []PriceField
}

// InRegion returns the text nodes inside the given region.
func (t *Tree) InRegion(r Region) []TextNode {
	var out []TextNode
	for _, n := range t.Nodes {
		if n.Region == r {
			out = append(out, n)
		}
	}
	return out
}

// HiddenNodes returns visually-hidden accessible-text nodes anywhere in the
// document.
func (t *Tree) HiddenNodes() []TextNode {
	var out []TextNode
	for _, n := range t.Nodes {
		if n.Hidden {
			out = append(out, n)
		}
	}
	return out
}

// AllText concatenates every text node, in document order. Used for
// free-text pattern scans.
func (t *Tree) AllText() string {
	var b strings.Builder
	for _, n := range t.Nodes {
		b.WriteString(n.Text)
		b.WriteString("\n")
	}
	return b.String()
}
