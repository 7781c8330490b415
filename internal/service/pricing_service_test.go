package service

import (
	"context"
	"testing"
	"time"

	"pricing-engine/internal/cache"
	"pricing-engine/internal/models"
	"pricing-engine/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pricingFixture struct {
	catalog *fakeCatalog
	cache   *cache.MemoryCache
	pricing *PricingService
}

func newPricingFixture() *pricingFixture {
	catalog := newFakeCatalog()
	priceCache := cache.NewMemoryCache()
	return &pricingFixture{
		catalog: catalog,
		cache:   priceCache,
		pricing: NewPricingService(catalog, catalog, priceCache, money.DefaultExchangeRates(), PricingOptions{
			Clock: fixedClock,
		}),
	}
}

// notebook is priced 1000 INR with 18% exclusive tax
func notebook() models.Product {
	return models.Product{
		SKU:       "NB-1",
		Title:     "Notebook",
		BasePrice: d("1000"),
		Currency:  "INR",
		TaxRate:   d("18"),
	}
}

func twentyPercentOff(productID int64) models.Promotion {
	return models.Promotion{
		Name:          "Twenty Off",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: d("20"),
		IsActive:      true,
		ProductID:     &productID,
	}
}

func TestComputePriceAppliesDiscountThenTax(t *testing.T) {
	f := newPricingFixture()
	id := f.catalog.addProduct(notebook())
	f.catalog.addPromotion(twentyPercentOff(id))

	result, err := f.pricing.ComputePrice(context.Background(), &PriceRequest{ProductID: id, Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, "1000.00", result.OriginalPrice.StringFixed(2))
	assert.Equal(t, "200.00", result.DiscountAmount.StringFixed(2))
	assert.Equal(t, "800.00", result.PriceAfterDiscount.StringFixed(2))
	assert.Equal(t, "144.00", result.TaxAmount.StringFixed(2))
	assert.Equal(t, "944.00", result.FinalPrice.StringFixed(2))
	assert.Equal(t, "INR", result.Currency)
	assert.Equal(t, "half_up", result.RoundingStrategy)
	assert.False(t, result.Cached)
	require.Len(t, result.AppliedPromotions, 1)
	assert.Equal(t, "Twenty Off", result.AppliedPromotions[0].Name)
}

func TestComputePriceServesSecondCallFromCache(t *testing.T) {
	f := newPricingFixture()
	id := f.catalog.addProduct(notebook())
	f.catalog.addPromotion(twentyPercentOff(id))
	req := &PriceRequest{ProductID: id, Quantity: 2}

	first, err := f.pricing.ComputePrice(context.Background(), req)
	require.NoError(t, err)
	second, err := f.pricing.ComputePrice(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, f.catalog.candidateCalls)
	assert.Equal(t, first.FinalPrice.StringFixed(2), second.FinalPrice.StringFixed(2))
	assert.Equal(t, first.DiscountAmount.StringFixed(2), second.DiscountAmount.StringFixed(2))
	assert.Equal(t, first.Explanation, second.Explanation)
}

func TestComputePriceCacheKeyCoversParameters(t *testing.T) {
	f := newPricingFixture()
	id := f.catalog.addProduct(notebook())

	_, err := f.pricing.ComputePrice(context.Background(), &PriceRequest{ProductID: id, Quantity: 1})
	require.NoError(t, err)

	usd, err := f.pricing.ComputePrice(context.Background(), &PriceRequest{ProductID: id, Quantity: 1, TargetCurrency: strPtr("USD")})
	require.NoError(t, err)
	assert.False(t, usd.Cached)

	rounded, err := f.pricing.ComputePrice(context.Background(), &PriceRequest{ProductID: id, Quantity: 1, RoundingStrategy: "down"})
	require.NoError(t, err)
	assert.False(t, rounded.Cached)

	assert.Equal(t, 3, f.cache.Len())
}

func TestComputePriceConvertsEveryAmount(t *testing.T) {
	f := newPricingFixture()
	id := f.catalog.addProduct(notebook())
	f.catalog.addPromotion(twentyPercentOff(id))

	result, err := f.pricing.ComputePrice(context.Background(), &PriceRequest{
		ProductID:      id,
		Quantity:       1,
		TargetCurrency: strPtr("USD"),
	})
	require.NoError(t, err)

	assert.Equal(t, "USD", result.Currency)
	assert.Equal(t, "12.00", result.OriginalPrice.StringFixed(2))
	assert.Equal(t, "2.40", result.DiscountAmount.StringFixed(2))
	assert.Equal(t, "9.60", result.PriceAfterDiscount.StringFixed(2))
	assert.Equal(t, "1.73", result.TaxAmount.StringFixed(2))
	assert.Equal(t, "11.33", result.FinalPrice.StringFixed(2))
	require.Len(t, result.AppliedPromotions, 1)
	assert.Equal(t, "2.40", result.AppliedPromotions[0].DiscountAmount.StringFixed(2))
	assert.Contains(t, result.Explanation, "Converted from INR to USD")
}

func TestComputePriceIncludeTaxOverride(t *testing.T) {
	f := newPricingFixture()
	id := f.catalog.addProduct(notebook())
	f.catalog.addPromotion(twentyPercentOff(id))

	result, err := f.pricing.ComputePrice(context.Background(), &PriceRequest{
		ProductID:  id,
		Quantity:   1,
		IncludeTax: boolPtr(true),
	})
	require.NoError(t, err)

	assert.True(t, result.TaxInclusive)
	assert.Equal(t, "122.03", result.TaxAmount.StringFixed(2))
	assert.Equal(t, "800.00", result.FinalPrice.StringFixed(2))
}

func TestComputePriceRoundingStrategy(t *testing.T) {
	f := newPricingFixture()
	product := notebook()
	product.BasePrice = d("99.995")
	product.TaxRate = d("0")
	id := f.catalog.addProduct(product)

	up, err := f.pricing.ComputePrice(context.Background(), &PriceRequest{ProductID: id, Quantity: 1})
	require.NoError(t, err)
	down, err := f.pricing.ComputePrice(context.Background(), &PriceRequest{ProductID: id, Quantity: 1, RoundingStrategy: "down"})
	require.NoError(t, err)

	assert.Equal(t, "100.00", up.OriginalPrice.StringFixed(2))
	assert.Equal(t, "99.99", down.OriginalPrice.StringFixed(2))
	assert.Equal(t, "down", down.RoundingStrategy)
}

func TestComputePriceErrors(t *testing.T) {
	f := newPricingFixture()
	id := f.catalog.addProduct(notebook())

	_, err := f.pricing.ComputePrice(context.Background(), &PriceRequest{ProductID: 9999, Quantity: 1})
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	_, err = f.pricing.ComputePrice(context.Background(), &PriceRequest{ProductID: id, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.pricing.ComputePrice(context.Background(), &PriceRequest{ProductID: id, Quantity: 1, TargetCurrency: strPtr("XYZ")})
	assert.ErrorIs(t, err, money.ErrUnsupportedCurrency)

	assert.Equal(t, 0, f.cache.Len())
}

func TestComputePriceUsesInjectedClock(t *testing.T) {
	f := newPricingFixture()
	id := f.catalog.addProduct(notebook())

	expired := twentyPercentOff(id)
	expired.StartDate = testNow.Add(-48 * time.Hour)
	expired.EndDate = testNow.Add(-time.Hour)
	f.catalog.addPromotion(expired)

	result, err := f.pricing.ComputePrice(context.Background(), &PriceRequest{ProductID: id, Quantity: 1})
	require.NoError(t, err)

	assert.Empty(t, result.AppliedPromotions)
	assert.Equal(t, "0.00", result.DiscountAmount.StringFixed(2))
	assert.Contains(t, result.Explanation[0], "expired")
}

func TestComputePriceIgnoresUndecodableCacheEntry(t *testing.T) {
	f := newPricingFixture()
	id := f.catalog.addProduct(notebook())
	req := &PriceRequest{ProductID: id, Quantity: 1}

	key := cache.Key(cache.KeyParams{ProductID: id, Quantity: 1, RoundingStrategy: "half_up"})
	f.cache.Set(context.Background(), key, []byte("not json"), time.Minute)

	result, err := f.pricing.ComputePrice(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, "1180.00", result.FinalPrice.StringFixed(2))
}
