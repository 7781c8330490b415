package service

import (
	"context"
	"errors"
	"testing"

	"pricing-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// untaxed is priced 1000 INR with no tax so comparisons stay readable
func untaxed() models.Product {
	p := notebook()
	p.TaxRate = d("0")
	return p
}

func percentOff(value string) HypotheticalPromotion {
	return HypotheticalPromotion{
		Name:          "Try " + value + "%",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: d(value),
	}
}

func TestSimulatePromotionLeavesCatalogAndCacheUntouched(t *testing.T) {
	f := newPricingFixture()
	sim := NewSimulationService(f.pricing)
	ctx := context.Background()
	id := f.catalog.addProduct(untaxed())

	res, err := sim.SimulatePromotion(ctx, &SimulationRequest{
		ProductID: id,
		Quantity:  1,
		Promotion: percentOff("10"),
	})
	require.NoError(t, err)

	assert.Equal(t, "1000.00", res.Current.FinalPrice.StringFixed(2))
	assert.Equal(t, "900.00", res.Simulated.FinalPrice.StringFixed(2))
	assert.Equal(t, "100.00", res.Comparison.PriceDifference.StringFixed(2))
	assert.Equal(t, "100.00", res.Comparison.DiscountDifference.StringFixed(2))
	assert.Equal(t, "10.00", res.Comparison.SavingsPercentage.StringFixed(2))
	assert.True(t, res.Comparison.IsBetter)
	require.Len(t, res.Simulated.AppliedPromotions, 1)
	assert.Equal(t, 999, res.Simulated.AppliedPromotions[0].Priority)

	assert.Equal(t, 0, f.catalog.promotionCount())
	assert.Equal(t, 1, f.cache.Len())

	after, err := f.pricing.ComputePrice(ctx, &PriceRequest{ProductID: id, Quantity: 1})
	require.NoError(t, err)
	assert.True(t, after.Cached)
	assert.Equal(t, "1000.00", after.FinalPrice.StringFixed(2))
}

func TestSimulatePromotionAppliesDefaults(t *testing.T) {
	f := newPricingFixture()
	sim := NewSimulationService(f.pricing)
	id := f.catalog.addProduct(untaxed())

	res, err := sim.SimulatePromotion(context.Background(), &SimulationRequest{
		ProductID: id,
		Quantity:  1,
		Promotion: HypotheticalPromotion{DiscountValue: d("5")},
	})
	require.NoError(t, err)

	require.Len(t, res.Simulated.AppliedPromotions, 1)
	assert.Equal(t, DefaultTestPromotionName, res.Simulated.AppliedPromotions[0].Name)
	assert.Equal(t, "950.00", res.Simulated.FinalPrice.StringFixed(2))
}

func TestSimulatePromotionValidatesHypothetical(t *testing.T) {
	f := newPricingFixture()
	sim := NewSimulationService(f.pricing)
	id := f.catalog.addProduct(untaxed())

	_, err := sim.SimulatePromotion(context.Background(), &SimulationRequest{
		ProductID: id,
		Quantity:  1,
		Promotion: HypotheticalPromotion{DiscountType: models.DiscountBOGO},
	})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors, 2)
}

func TestSimulatePromotionUnknownProduct(t *testing.T) {
	f := newPricingFixture()
	sim := NewSimulationService(f.pricing)

	_, err := sim.SimulatePromotion(context.Background(), &SimulationRequest{
		ProductID: 77,
		Quantity:  1,
		Promotion: percentOff("10"),
	})
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestSimulateMultiplePicksGreatestSaving(t *testing.T) {
	f := newPricingFixture()
	sim := NewSimulationService(f.pricing)
	id := f.catalog.addProduct(untaxed())

	flat := HypotheticalPromotion{
		Name:          "Fifty Off Each",
		DiscountType:  models.DiscountFlat,
		DiscountValue: d("50"),
	}

	res, err := sim.SimulateMultiple(context.Background(), &MultiSimulationRequest{
		ProductID:  id,
		Quantity:   2,
		Promotions: []HypotheticalPromotion{percentOff("5"), percentOff("20"), flat},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TestedPromotions)
	assert.Equal(t, "2000.00", res.BaselinePrice.StringFixed(2))
	require.Len(t, res.Results, 3)
	for i, opt := range res.Results {
		assert.Equal(t, i+1, opt.OptionNumber)
	}
	assert.Equal(t, "100.00", res.Results[0].Savings.StringFixed(2))
	assert.Equal(t, "400.00", res.Results[1].Savings.StringFixed(2))
	assert.Equal(t, "100.00", res.Results[2].Savings.StringFixed(2))

	require.NotNil(t, res.BestOption)
	assert.Equal(t, 2, res.BestOption.OptionNumber)
	assert.Equal(t, "Option 2 saves INR 400.00 (20.00%)", res.Recommendation)
	assert.Equal(t, 0, f.catalog.promotionCount())
}

func TestSimulateMultipleNoBetterOption(t *testing.T) {
	f := newPricingFixture()
	sim := NewSimulationService(f.pricing)
	id := f.catalog.addProduct(untaxed())

	existing := twentyPercentOff(id)
	existing.Name = "Standing Thirty"
	existing.DiscountValue = d("30")
	f.catalog.addPromotion(existing)

	res, err := sim.SimulateMultiple(context.Background(), &MultiSimulationRequest{
		ProductID:  id,
		Quantity:   1,
		Promotions: []HypotheticalPromotion{percentOff("10"), percentOff("25")},
	})
	require.NoError(t, err)

	assert.Nil(t, res.BestOption)
	assert.Equal(t, "No better option found", res.Recommendation)
	for _, opt := range res.Results {
		assert.True(t, opt.Savings.IsZero())
	}
}

func TestSimulateMultipleReportsInvalidOptions(t *testing.T) {
	f := newPricingFixture()
	sim := NewSimulationService(f.pricing)
	id := f.catalog.addProduct(untaxed())

	_, err := sim.SimulateMultiple(context.Background(), &MultiSimulationRequest{
		ProductID:  id,
		Quantity:   1,
		Promotions: []HypotheticalPromotion{percentOff("10"), percentOff("120")},
	})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"option 2: percentage discount cannot exceed 100%"}, verr.Errors)
}

func TestCompareScenariosPicksLowestUnitPrice(t *testing.T) {
	f := newPricingFixture()
	sim := NewSimulationService(f.pricing)
	product := untaxed()
	product.BasePrice = d("100")
	id := f.catalog.addProduct(product)

	bulk := models.Promotion{
		Name:          "Bulk Ten",
		DiscountType:  models.DiscountFlat,
		DiscountValue: d("10"),
		MinQuantity:   intPtr(5),
		IsActive:      true,
		ProductID:     &id,
	}
	f.catalog.addPromotion(bulk)

	res, err := sim.CompareScenarios(context.Background(), &ScenarioRequest{
		ProductID: id,
		Scenarios: []Scenario{
			{Description: "Single"},
			{Description: "Bulk", Quantity: 5},
			{Quantity: 3},
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Results, 3)
	assert.Equal(t, 1, res.Results[0].Quantity)
	assert.Equal(t, "100.00", res.Results[0].PricePerUnit.StringFixed(2))
	assert.Equal(t, "90.00", res.Results[1].PricePerUnit.StringFixed(2))
	assert.Equal(t, "Scenario 3", res.Results[2].Description)

	require.NotNil(t, res.BestValueScenario)
	assert.Equal(t, 2, res.BestValueScenario.ScenarioNumber)
	assert.Equal(t, "Best value: Bulk at INR 90.00 per unit", res.Recommendation)
}
