package resolve

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricewatch/internal/extract"
	"github.com/sells-group/pricewatch/internal/model"
	"github.com/sells-group/pricewatch/internal/pagetree"
)

var gpuBounds = model.Bounds{Min: 50, Max: 5000}

func ensembleEngine() *Engine {
	return NewEngine(extract.Config{Mode: extract.ModeEnsemble}, DefaultWeights())
}

// Scenario: a lone structured-field candidate resolves at high confidence
// with no sale classification.
func TestResolve_LoneStructuredField(t *testing.T) {
	tree := &pagetree.Tree{
		Fields: []pagetree.PriceField{
			{Name: "displayed-price", Value: "845.98", Attribute: "value"},
		},
	}

	rp, err := ensembleEngine().Resolve(tree, gpuBounds)
	require.NoError(t, err)
	assert.Equal(t, 845.98, rp.Price)
	assert.GreaterOrEqual(t, rp.Confidence, 90.0)
	assert.Equal(t, model.TierStructuredField, rp.SourceTier)
	assert.False(t, rp.IsOnSale)
	assert.Equal(t, 845.98, rp.BasePrice)
	assert.False(t, rp.ResolvedAt.IsZero())
}

// Scenario: a hidden accessible-text current price next to a free-text
// "list price, was" candidate resolves as a sale.
func TestResolve_SaleFromListContext(t *testing.T) {
	tree := &pagetree.Tree{
		Nodes: []pagetree.TextNode{
			{Text: "$279.99", Hidden: true, AncestorText: "our price", PosY: 0.15},
			{Text: "List price: was $439.99", AncestorText: "pricing module", PosY: 0.2},
		},
	}

	rp, err := ensembleEngine().Resolve(tree, gpuBounds)
	require.NoError(t, err)
	assert.Equal(t, 279.99, rp.Price)
	assert.True(t, rp.IsOnSale)
	assert.Equal(t, 439.99, rp.BasePrice)
	assert.InDelta(t, 0.3636, rp.DiscountPercent, 0.0005)
}

// Scenario: two agreeing current-price candidates plus a struck list pair;
// the consensus bonus applies and the struck value becomes the base price.
func TestResolve_ConsensusWithStruckListPair(t *testing.T) {
	tree := &pagetree.Tree{
		Nodes: []pagetree.TextNode{
			{Text: "$499.00", Region: pagetree.RegionPriceDisplay, PosY: 0.1},
			{Text: "$499.00", Hidden: true, PosY: 0.1},
		},
		Pairs: []pagetree.PricePair{
			{Whole: "549", Fraction: "00", Struck: true, PosY: 0.12},
		},
	}

	res, err := ensembleEngine().ResolveDetailed(tree, gpuBounds)
	require.NoError(t, err)
	rp := res.Price
	assert.Equal(t, 499.0, rp.Price)
	assert.Equal(t, model.TierCorePriceDisplay, rp.SourceTier)
	assert.True(t, rp.IsOnSale)
	assert.Equal(t, 549.0, rp.BasePrice)

	var winnerBreakdown map[string]float64
	for _, c := range res.Candidates {
		if c.Value == 499.0 && c.SourceTier == model.TierCorePriceDisplay {
			winnerBreakdown = c.Breakdown
		}
	}
	require.NotNil(t, winnerBreakdown)
	assert.Contains(t, winnerBreakdown, "consensus")
}

// Scenario: the only candidate sits in a shipping context; resolution fails
// rather than returning the tainted value.
func TestResolve_ShippingOnlyFails(t *testing.T) {
	tree := &pagetree.Tree{
		Nodes: []pagetree.TextNode{
			{Text: "Shipping cost: $89.99", AncestorText: "shipping-info"},
		},
	}

	_, err := ensembleEngine().Resolve(tree, gpuBounds)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoPriceFound))
}

// Scenario: near-tied scores with wildly divergent prices; the structurally
// higher tier wins per the anomaly rule.
func TestResolve_AnomalyTieBreakPrefersHigherTier(t *testing.T) {
	tree := &pagetree.Tree{
		Nodes: []pagetree.TextNode{
			{Text: "$845", Hidden: true, AncestorText: "our price", PosY: 0.1},
			{Text: "$1,368.00", Region: pagetree.RegionPriceDisplay, PosY: 0.1},
		},
	}

	rp, err := ensembleEngine().Resolve(tree, gpuBounds)
	require.NoError(t, err)
	assert.Equal(t, 1368.0, rp.Price)
	assert.Equal(t, model.TierCorePriceDisplay, rp.SourceTier)
}

func TestResolve_EmptyTree(t *testing.T) {
	_, err := ensembleEngine().Resolve(&pagetree.Tree{}, gpuBounds)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoPriceFound))
}

func TestResolve_AllOutOfBoundsIsImplausible(t *testing.T) {
	tree := &pagetree.Tree{
		Nodes: []pagetree.TextNode{
			{Text: "$12.99", Region: pagetree.RegionPriceDisplay},
		},
	}

	_, err := ensembleEngine().Resolve(tree, gpuBounds)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrImplausiblePrice))
	assert.False(t, eris.Is(err, ErrNoPriceFound))
}

func TestResolve_BoundsInvariant(t *testing.T) {
	tree := &pagetree.Tree{
		Nodes: []pagetree.TextNode{
			{Text: "$4,999.99", Region: pagetree.RegionPriceDisplay, PosY: 0.1},
			{Text: "$9,999.99", Region: pagetree.RegionPriceDisplay, PosY: 0.1},
		},
	}

	rp, err := ensembleEngine().Resolve(tree, gpuBounds)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rp.Price, gpuBounds.Min)
	assert.LessOrEqual(t, rp.Price, gpuBounds.Max)
}

func TestResolve_TypicalPriceFallback(t *testing.T) {
	tree := &pagetree.Tree{
		Nodes: []pagetree.TextNode{
			{Text: "$299.99", Region: pagetree.RegionPriceDisplay, PosY: 0.1},
			{Text: "Typical price: $379.99", PosY: 0.6},
		},
	}

	rp, err := ensembleEngine().Resolve(tree, gpuBounds)
	require.NoError(t, err)
	assert.Equal(t, 299.99, rp.Price)
	assert.True(t, rp.IsOnSale)
	assert.Equal(t, 379.99, rp.BasePrice)
}

func TestDisambiguate_DiscountGuard(t *testing.T) {
	// A struck $9,999 against a $99 current price implies a 99% discount:
	// extraction noise, not a sale.
	rp := model.ResolvedPrice{Price: 99}
	cands := []model.ScoredCandidate{
		{
			PriceCandidate: model.PriceCandidate{Value: 9999, Strikethrough: true},
			Valid:          true,
			ListPrice:      true,
		},
	}
	disambiguate(&rp, cands, &pagetree.Tree{})
	assert.False(t, rp.IsOnSale)
	assert.Equal(t, 99.0, rp.BasePrice)
	assert.Zero(t, rp.DiscountPercent)
}

func TestDisambiguate_ListBelowCurrentIgnored(t *testing.T) {
	rp := model.ResolvedPrice{Price: 500}
	cands := []model.ScoredCandidate{
		{
			PriceCandidate: model.PriceCandidate{Value: 450, Strikethrough: true},
			Valid:          true,
			ListPrice:      true,
		},
	}
	disambiguate(&rp, cands, &pagetree.Tree{})
	assert.False(t, rp.IsOnSale)
	assert.Equal(t, 500.0, rp.BasePrice)
}

func TestSaleInvariant(t *testing.T) {
	tree := &pagetree.Tree{
		Nodes: []pagetree.TextNode{
			{Text: "$279.99", Hidden: true, AncestorText: "our price", PosY: 0.15},
			{Text: "List price: was $439.99", PosY: 0.2},
		},
	}

	rp, err := ensembleEngine().Resolve(tree, gpuBounds)
	require.NoError(t, err)
	require.True(t, rp.IsOnSale)
	assert.Greater(t, rp.BasePrice, rp.Price)
	assert.Greater(t, rp.DiscountPercent, 0.0)
	assert.Less(t, rp.DiscountPercent, 0.9)
}
