package resolve

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/pricewatch/internal/model"
)

// disqualifyingTerms mark a candidate's enclosing context as a non-price
// amount (fees, add-ons). Any match rejects the candidate outright.
var disqualifyingTerms = []string{
	"shipping", "delivery fee", "tax", "import fee", "handling",
	"deposit", "warranty", "protection plan",
}

// listContextTerms tag a candidate as a list/"was" price. These candidates
// are kept for sale detection, never resolved as the current price.
var listContextTerms = []string{
	"list price", "msrp", "typical price", "was", "rrp", "compare at",
}

// positiveContextTerms boost candidates sitting next to a current-price
// label.
var positiveContextTerms = []string{
	"our price", "current price", "special offer", "your price", "deal price",
}

// termMatcher matches a term with word boundaries so that short terms like
// "was" and "tax" don't fire inside unrelated words.
type termMatcher struct {
	term string
	re   *regexp.Regexp
}

func newMatchers(terms []string) []termMatcher {
	out := make([]termMatcher, 0, len(terms))
	for _, t := range terms {
		out = append(out, termMatcher{
			term: t,
			re:   regexp.MustCompile(`\b` + regexp.QuoteMeta(t) + `\b`),
		})
	}
	return out
}

var (
	disqualifyMatchers = newMatchers(disqualifyingTerms)
	listMatchers       = newMatchers(listContextTerms)
	positiveMatchers   = newMatchers(positiveContextTerms)
)

func matchTerm(matchers []termMatcher, text string) (string, bool) {
	for _, m := range matchers {
		if m.re.MatchString(text) {
			return m.term, true
		}
	}
	return "", false
}

// Validate inspects the candidate's enclosing context (up to three ancestor
// levels, captured at extraction time) for disqualifying terms, and tags
// strikethrough/list candidates for the disambiguator.
func Validate(c model.PriceCandidate) model.ScoredCandidate {
	sc := model.ScoredCandidate{PriceCandidate: c, Valid: true}

	ancestor := strings.ToLower(c.Provenance.AncestorText)
	if term, ok := matchTerm(disqualifyMatchers, ancestor); ok {
		sc.Valid = false
		sc.RejectionReason = fmt.Sprintf("ancestor context contains %q", term)
		return sc
	}

	if c.Strikethrough {
		sc.ListPrice = true
	} else if _, ok := matchTerm(listMatchers, ancestor); ok {
		sc.ListPrice = true
	}
	return sc
}

// ValidateAll validates every candidate, preserving order.
func ValidateAll(cands []model.PriceCandidate) []model.ScoredCandidate {
	out := make([]model.ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, Validate(c))
	}
	return out
}
