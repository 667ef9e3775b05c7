package pagetree

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// Marker substrings checked against lowercased id+class strings. They cover
// the markup conventions of the large storefronts plus the generic
// Shopify/WooCommerce patterns.
var (
	priceRegionMarkers = []string{
		"coreprice", "core-price", "priceblock", "price-box", "price_box",
		"product-price", "price_inside", "apexpricetodisplay", "price-display",
	}
	buyBoxMarkers = []string{
		"buybox", "buy-box", "addtocart", "add-to-cart", "buy-now", "buynow",
		"purchase-panel", "purchase-options",
	}
	hiddenMarkers = []string{
		"a-offscreen", "sr-only", "visually-hidden", "visuallyhidden",
		"screen-reader", "offscreen",
	}
	struckMarkers = []string{
		"a-text-price", "strike", "line-through", "was-price", "price-was",
		"list-price", "compare-at-price",
	}
	priceDataAttrs = []string{
		"data-price", "data-asin-price", "data-product-price", "data-deal-price",
	}
)

const (
	nearbyTextLimit   = 400
	ancestorTextDepth = 3
)

// ParseHTML builds a Tree from raw product-page HTML. Script, style and
// noscript content is skipped; JSON-LD blocks are collected verbatim for the
// structured-field tier.
func ParseHTML(r io.Reader) (*Tree, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "pagetree: parse html")
	}

	tree := &Tree{}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw != "" {
			tree.Blocks = append(tree.Blocks, StructuredBlock{JSON: raw, Path: nodePath(s)})
		}
	})

	body := doc.Find("body *")
	total := body.Length()
	if total == 0 {
		total = 1
	}

	body.Each(func(i int, s *goquery.Selection) {
		posY := float64(i) / float64(total)
		tag := goquery.NodeName(s)
		switch tag {
		case "script", "style", "noscript", "template":
			return
		}

		collectPriceFields(tree, s, tag, posY)

		if cls := attrLower(s, "class"); strings.Contains(cls, "whole") {
			collectPair(tree, s, posY)
		}

		text := collapseSpace(ownText(s))
		if text == "" {
			return
		}

		tree.Nodes = append(tree.Nodes, TextNode{
			Text:         text,
			Path:         nodePath(s),
			AncestorText: ancestorText(s),
			NearbyText:   nearbyText(s),
			Attrs:        attrMap(s),
			PosY:         posY,
			Hidden:       isHidden(s),
			Struck:       isStruck(s),
			Region:       regionOf(s),
		})
	})

	return tree, nil
}

// collectPriceFields records explicit numeric price-bearing fields: form
// inputs named after price, and data-* price attributes.
func collectPriceFields(tree *Tree, s *goquery.Selection, tag string, posY float64) {
	if tag == "input" {
		name := attrLower(s, "name")
		if name == "" {
			name = attrLower(s, "id")
		}
		val, _ := s.Attr("value")
		if strings.Contains(name, "price") && strings.TrimSpace(val) != "" {
			tree.Fields = append(tree.Fields, PriceField{
				Name:      name,
				Value:     strings.TrimSpace(val),
				Path:      nodePath(s),
				Attribute: "value",
				PosY:      posY,
			})
		}
	}

	for _, attr := range priceDataAttrs {
		if val, ok := s.Attr(attr); ok && strings.TrimSpace(val) != "" {
			tree.Fields = append(tree.Fields, PriceField{
				Name:      attr,
				Value:     strings.TrimSpace(val),
				Path:      nodePath(s),
				Attribute: attr,
				PosY:      posY,
			})
		}
	}
}

// collectPair reconstructs the split whole/fraction markup into a PricePair
// when a sibling fraction element exists.
func collectPair(tree *Tree, whole *goquery.Selection, posY float64) {
	parent := whole.Parent()
	frac := parent.Children().FilterFunction(func(_ int, c *goquery.Selection) bool {
		return strings.Contains(attrLower(c, "class"), "fraction")
	})
	if frac.Length() == 0 {
		return
	}

	w := digitsOnly(whole.Text())
	f := digitsOnly(frac.First().Text())
	if w == "" {
		return
	}

	tree.Pairs = append(tree.Pairs, PricePair{
		Whole:        w,
		Fraction:     f,
		Path:         nodePath(parent),
		AncestorText: ancestorText(parent),
		PosY:         posY,
		Struck:       isStruck(parent),
	})
}

// ownText returns the direct text of the node, excluding child elements.
func ownText(s *goquery.Selection) string {
	if len(s.Nodes) == 0 {
		return ""
	}
	var b strings.Builder
	for c := s.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// ancestorText joins the own-text of up to three enclosing levels.
func ancestorText(s *goquery.Selection) string {
	var parts []string
	p := s.Parent()
	for depth := 0; depth < ancestorTextDepth && p.Length() > 0; depth++ {
		if goquery.NodeName(p) == "body" {
			break
		}
		if t := collapseSpace(ownText(p)); t != "" {
			parts = append(parts, t)
		}
		// Labels usually sit on the ancestor, not in its own text.
		for _, attr := range []string{"id", "class", "aria-label"} {
			if v := attrLower(p, attr); v != "" {
				parts = append(parts, v)
			}
		}
		p = p.Parent()
	}
	return strings.Join(parts, " ")
}

// nearbyText returns the wider container text (two levels up), truncated.
func nearbyText(s *goquery.Selection) string {
	container := s.Parent().Parent()
	if container.Length() == 0 {
		container = s.Parent()
	}
	t := collapseSpace(container.Text())
	if len(t) > nearbyTextLimit {
		t = t[:nearbyTextLimit]
	}
	return t
}

func isHidden(s *goquery.Selection) bool {
	cls := attrLower(s, "class")
	for _, m := range hiddenMarkers {
		if strings.Contains(cls, m) {
			return true
		}
	}
	style := attrLower(s, "style")
	return strings.Contains(style, "clip:") || strings.Contains(style, "clip-path:")
}

// isStruck checks the node and up to three ancestors for strikethrough or
// list-price styling.
func isStruck(s *goquery.Selection) bool {
	cur := s
	for depth := 0; depth <= ancestorTextDepth && cur.Length() > 0; depth++ {
		switch goquery.NodeName(cur) {
		case "del", "s", "strike":
			return true
		}
		cls := attrLower(cur, "class")
		for _, m := range struckMarkers {
			if strings.Contains(cls, m) {
				return true
			}
		}
		if strings.Contains(attrLower(cur, "style"), "line-through") {
			return true
		}
		cur = cur.Parent()
	}
	return false
}

// regionOf climbs from the node toward body and returns the region of the
// nearest marked ancestor.
func regionOf(s *goquery.Selection) Region {
	cur := s
	for cur.Length() > 0 && goquery.NodeName(cur) != "body" {
		idCls := attrLower(cur, "id") + " " + attrLower(cur, "class")
		for _, m := range priceRegionMarkers {
			if strings.Contains(idCls, m) {
				return RegionPriceDisplay
			}
		}
		for _, m := range buyBoxMarkers {
			if strings.Contains(idCls, m) {
				return RegionBuyBox
			}
		}
		cur = cur.Parent()
	}
	return RegionNone
}

// nodePath builds a short CSS-like locator from up to three levels.
func nodePath(s *goquery.Selection) string {
	var parts []string
	cur := s
	for depth := 0; depth < ancestorTextDepth && cur.Length() > 0; depth++ {
		tag := goquery.NodeName(cur)
		if tag == "body" || tag == "html" {
			break
		}
		seg := tag
		if id, ok := cur.Attr("id"); ok && id != "" {
			seg += "#" + id
		} else if cls := attrLower(cur, "class"); cls != "" {
			if first := strings.Fields(cls); len(first) > 0 {
				seg += "." + first[0]
			}
		}
		parts = append([]string{seg}, parts...)
		cur = cur.Parent()
	}
	return strings.Join(parts, " > ")
}

func attrLower(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.ToLower(v)
}

func attrMap(s *goquery.Selection) map[string]string {
	if len(s.Nodes) == 0 || len(s.Nodes[0].Attr) == 0 {
		return nil
	}
	m := make(map[string]string, len(s.Nodes[0].Attr))
	for _, a := range s.Nodes[0].Attr {
		m[a.Key] = a.Val
	}
	return m
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
