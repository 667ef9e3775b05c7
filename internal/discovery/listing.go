// Package discovery scans retailer listing pages for products and folds
// them into the catalog through identity matching.
package discovery

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pricewatch/internal/model"
)

// DiscoveredProduct is one product row scraped from a listing page.
type DiscoveredProduct struct {
	ExternalID string
	Name       string
	URL        string
	Category   model.Category
}

// Listing-card selectors, tried in order. Retailer grids tag each result
// with a stable product identifier.
var cardSelectors = []string{
	"[data-asin]",
	"[data-product-id]",
	".product-card",
	".search-result-item",
}

// ParseListing extracts product rows from a category listing page. Rows
// without a name are skipped; relative links are resolved against baseURL.
func ParseListing(r io.Reader, category model.Category, baseURL string) ([]DiscoveredProduct, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: parse listing")
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: parse base url %s", baseURL)
	}

	var products []DiscoveredProduct
	seen := make(map[string]bool)

	for _, sel := range cardSelectors {
		doc.Find(sel).Each(func(_ int, card *goquery.Selection) {
			p := parseCard(card, category, base)
			if p == nil {
				return
			}
			key := p.ExternalID
			if key == "" {
				key = p.Name
			}
			if seen[key] {
				return
			}
			seen[key] = true
			products = append(products, *p)
		})
		if len(products) > 0 {
			break
		}
	}
	return products, nil
}

func parseCard(card *goquery.Selection, category model.Category, base *url.URL) *DiscoveredProduct {
	extID, _ := card.Attr("data-asin")
	if extID == "" {
		extID, _ = card.Attr("data-product-id")
	}

	name := firstText(card, "h2", "h3", ".product-title", "[data-name]")
	if name == "" {
		if title, ok := card.Find("a[title]").First().Attr("title"); ok {
			name = title
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	var link string
	if href, ok := card.Find("a[href]").First().Attr("href"); ok {
		if u, err := url.Parse(href); err == nil {
			link = base.ResolveReference(u).String()
		}
	}

	return &DiscoveredProduct{
		ExternalID: strings.TrimSpace(extID),
		Name:       name,
		URL:        link,
		Category:   category,
	}
}

func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}
