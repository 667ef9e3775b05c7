package extract

import "regexp"

// priceRe matches currency-formatted amounts like $1,234.56, $845 or
// $ 599.99. Locale coverage beyond this format is out of scope.
var priceRe = regexp.MustCompile(`\$\s?([0-9][0-9,]{0,9})(\.[0-9]{2})?`)

type priceMatch struct {
	raw   string
	value float64
}

// firstPrice returns the first currency-formatted amount in s.
func firstPrice(s string) (string, float64, bool) {
	m := priceRe.FindString(s)
	if m == "" {
		return "", 0, false
	}
	v, ok := parsePrice(m)
	if !ok {
		return "", 0, false
	}
	return m, v, true
}

// allPrices returns every currency-formatted amount in s, in order.
func allPrices(s string) []priceMatch {
	var out []priceMatch
	for _, m := range priceRe.FindAllString(s, -1) {
		if v, ok := parsePrice(m); ok {
			out = append(out, priceMatch{raw: m, value: v})
		}
	}
	return out
}
