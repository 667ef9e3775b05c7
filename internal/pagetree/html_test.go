package pagetree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProductHTML = `<!DOCTYPE html>
<html><head>
<script type="application/ld+json">
{"@type":"Product","name":"RTX 4070 Super","offers":{"price":"599.99","priceCurrency":"USD"}}
</script>
</head><body>
<div id="corePriceDisplay_desktop">
  <span class="a-price">
    <span class="a-offscreen">$599.99</span>
    <span class="a-price-whole">599</span>
    <span class="a-price-fraction">99</span>
  </span>
  <span class="a-price a-text-price"><span class="a-offscreen">$649.99</span></span>
</div>
<div id="buybox">
  <span class="buy-price">$599.99</span>
  <input type="hidden" name="displayed-price" value="599.99">
</div>
<div class="shipping-info">
  <span>Shipping cost: $12.99</span>
</div>
<p>List Price: <del>$649.99</del> you save $50</p>
</body></html>`

func TestParseHTML_Regions(t *testing.T) {
	tree, err := ParseHTML(strings.NewReader(sampleProductHTML))
	require.NoError(t, err)

	core := tree.InRegion(RegionPriceDisplay)
	require.NotEmpty(t, core)
	var coreTexts []string
	for _, n := range core {
		coreTexts = append(coreTexts, n.Text)
	}
	assert.Contains(t, coreTexts, "$599.99")

	box := tree.InRegion(RegionBuyBox)
	require.NotEmpty(t, box)
	assert.Equal(t, "$599.99", box[0].Text)
}

func TestParseHTML_HiddenAndStruck(t *testing.T) {
	tree, err := ParseHTML(strings.NewReader(sampleProductHTML))
	require.NoError(t, err)

	hidden := tree.HiddenNodes()
	require.Len(t, hidden, 2)

	// The list-price offscreen node inherits struck styling from a-text-price.
	var struckHidden int
	for _, n := range hidden {
		if n.Struck {
			struckHidden++
			assert.Equal(t, "$649.99", n.Text)
		}
	}
	assert.Equal(t, 1, struckHidden)
}

func TestParseHTML_Pairs(t *testing.T) {
	tree, err := ParseHTML(strings.NewReader(sampleProductHTML))
	require.NoError(t, err)

	require.Len(t, tree.Pairs, 1)
	assert.Equal(t, "599", tree.Pairs[0].Whole)
	assert.Equal(t, "99", tree.Pairs[0].Fraction)
	assert.False(t, tree.Pairs[0].Struck)
}

func TestParseHTML_StructuredBlocksAndFields(t *testing.T) {
	tree, err := ParseHTML(strings.NewReader(sampleProductHTML))
	require.NoError(t, err)

	require.Len(t, tree.Blocks, 1)
	assert.Contains(t, tree.Blocks[0].JSON, `"price":"599.99"`)

	require.Len(t, tree.Fields, 1)
	assert.Equal(t, "displayed-price", tree.Fields[0].Name)
	assert.Equal(t, "599.99", tree.Fields[0].Value)
}

func TestParseHTML_AncestorTextCarriesContext(t *testing.T) {
	tree, err := ParseHTML(strings.NewReader(sampleProductHTML))
	require.NoError(t, err)

	var shipping *TextNode
	for i, n := range tree.Nodes {
		if strings.Contains(n.Text, "Shipping cost") {
			shipping = &tree.Nodes[i]
			break
		}
	}
	require.NotNil(t, shipping)
	assert.Contains(t, shipping.AncestorText, "shipping-info")
}

func TestParseHTML_DelIsStruck(t *testing.T) {
	tree, err := ParseHTML(strings.NewReader(sampleProductHTML))
	require.NoError(t, err)

	var found bool
	for _, n := range tree.Nodes {
		if n.Text == "$649.99" && n.Struck && n.Region == RegionNone {
			found = true
			assert.Contains(t, strings.ToLower(n.AncestorText), "list price")
		}
	}
	assert.True(t, found, "del-wrapped list price should be struck")
}

func TestParseHTML_PosYOrdering(t *testing.T) {
	tree, err := ParseHTML(strings.NewReader(sampleProductHTML))
	require.NoError(t, err)

	var first, last float64 = 2, -1
	for _, n := range tree.Nodes {
		if n.PosY < first {
			first = n.PosY
		}
		if n.PosY > last {
			last = n.PosY
		}
	}
	assert.Less(t, first, last)
	assert.GreaterOrEqual(t, first, 0.0)
	assert.Less(t, last, 1.0)
}

func TestParseHTML_Empty(t *testing.T) {
	tree, err := ParseHTML(strings.NewReader("<html><body></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, tree.Nodes)
	assert.Empty(t, tree.AllText())
}
