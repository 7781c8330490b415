package service

import (
	"context"
	"errors"
	"testing"

	"pricing-engine/internal/models"
	"pricing-engine/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProductService(f *pricingFixture, pub CatalogPublisher) *ProductService {
	return NewProductService(f.catalog, f.cache, money.DefaultExchangeRates(), pub)
}

func TestCreateProductDefaultsCurrency(t *testing.T) {
	f := newPricingFixture()
	products := newProductService(f, nil)

	price := d("250")
	p, err := products.CreateProduct(context.Background(), &ProductInput{
		SKU:       strPtr("PEN-1"),
		Title:     strPtr("Pen"),
		BasePrice: &price,
	})
	require.NoError(t, err)

	assert.NotZero(t, p.ID)
	assert.Equal(t, "INR", p.Currency)
}

func TestCreateProductRejectsInvalid(t *testing.T) {
	f := newPricingFixture()
	products := newProductService(f, nil)

	price := d("-1")
	rate := d("120")
	_, err := products.CreateProduct(context.Background(), &ProductInput{
		BasePrice: &price,
		TaxRate:   &rate,
		Currency:  strPtr("xyz"),
	})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{
		"sku is required",
		"title is required",
		"base_price cannot be negative",
		"tax_rate must be between 0 and 100",
		`unsupported currency "XYZ"`,
	}, verr.Errors)
}

func TestUpdateProductInvalidatesCachedPrices(t *testing.T) {
	f := newPricingFixture()
	pub := &recordingPublisher{}
	products := newProductService(f, pub)
	ctx := context.Background()
	id := f.catalog.addProduct(untaxed())

	_, err := f.pricing.ComputePrice(ctx, &PriceRequest{ProductID: id, Quantity: 1})
	require.NoError(t, err)

	updated, err := products.UpdateProduct(ctx, id, []byte(`{"base_price": 1200}`))
	require.NoError(t, err)
	assert.Equal(t, "Notebook", updated.Title)

	res, err := f.pricing.ComputePrice(ctx, &PriceRequest{ProductID: id, Quantity: 1})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "1200.00", res.FinalPrice.StringFixed(2))

	require.Len(t, pub.events, 1)
	assert.Equal(t, models.ChangeProductUpdated, pub.events[0].Change)
}

func TestUpdateProductNullClearsDiscountCap(t *testing.T) {
	f := newPricingFixture()
	products := newProductService(f, nil)
	ctx := context.Background()

	capped := untaxed()
	capped.MaxDiscountCap = decimal.NewNullDecimal(d("300"))
	id := f.catalog.addProduct(capped)

	half := twentyPercentOff(id)
	half.DiscountValue = d("50")
	f.catalog.addPromotion(half)

	res, err := f.pricing.ComputePrice(ctx, &PriceRequest{ProductID: id, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "300.00", res.DiscountAmount.StringFixed(2))

	updated, err := products.UpdateProduct(ctx, id, []byte(`{"max_discount_cap": null}`))
	require.NoError(t, err)
	assert.False(t, updated.MaxDiscountCap.Valid)
	assert.Equal(t, "Notebook", updated.Title)
	assert.Equal(t, id, updated.ID)

	stored, err := products.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.False(t, stored.MaxDiscountCap.Valid)

	res, err = f.pricing.ComputePrice(ctx, &PriceRequest{ProductID: id, Quantity: 1})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "500.00", res.DiscountAmount.StringFixed(2))
	assert.Equal(t, "500.00", res.FinalPrice.StringFixed(2))
}

func TestUpdateProductMergePatchSetsAndRejects(t *testing.T) {
	f := newPricingFixture()
	products := newProductService(f, nil)
	ctx := context.Background()
	id := f.catalog.addProduct(untaxed())

	updated, err := products.UpdateProduct(ctx, id, []byte(`{"max_discount_cap": "150", "category": "Books", "currency": "usd"}`))
	require.NoError(t, err)
	assert.True(t, updated.MaxDiscountCap.Valid)
	assert.Equal(t, "150", updated.MaxDiscountCap.Decimal.String())
	assert.Equal(t, "Books", *updated.Category)
	assert.Equal(t, "USD", updated.Currency)

	updated, err = products.UpdateProduct(ctx, id, []byte(`{"category": null}`))
	require.NoError(t, err)
	assert.Nil(t, updated.Category)
	assert.True(t, updated.MaxDiscountCap.Valid)

	for _, body := range []string{`[1]`, `not json`, `{"stock": "many"}`} {
		_, err = products.UpdateProduct(ctx, id, []byte(body))
		assert.ErrorIs(t, err, ErrInvalidPatch, body)
	}

	_, err = products.UpdateProduct(ctx, id, []byte(`{"title": null}`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"title is required"}, verr.Errors)
}

func TestDeleteProduct(t *testing.T) {
	f := newPricingFixture()
	products := newProductService(f, nil)
	ctx := context.Background()
	id := f.catalog.addProduct(untaxed())

	_, err := f.pricing.ComputePrice(ctx, &PriceRequest{ProductID: id, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, products.DeleteProduct(ctx, id))
	assert.Equal(t, 0, f.cache.Len())

	_, err = products.GetProduct(ctx, id)
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestRecordPriceComputedIsIdempotent(t *testing.T) {
	f := newPricingFixture()
	audit := NewAuditService(f.catalog)
	ctx := context.Background()

	id := f.catalog.addProduct(notebook())
	f.catalog.addPromotion(twentyPercentOff(id))
	result, err := f.pricing.ComputePrice(ctx, &PriceRequest{ProductID: id, Quantity: 1})
	require.NoError(t, err)

	event := &models.PriceComputedEvent{
		BaseEvent: models.BaseEvent{EventID: uuid.New().String(), EventType: models.EventTypePriceComputed},
		Result:    *result,
		Request:   models.RequestMeta{RequestID: "req-1", ClientIP: "10.0.0.1"},
	}
	require.NoError(t, audit.RecordPriceComputed(ctx, event))
	require.NoError(t, audit.RecordPriceComputed(ctx, event))

	logs, err := audit.ListLogs(ctx, models.AuditFilter{ProductID: &id})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "req-1", logs[0].RequestID)
	assert.Len(t, logs[0].AppliedPromotions, 1)

	stats, err := audit.Stats(ctx, models.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalCalculations)
	assert.Equal(t, "944.00", stats.TotalRevenue.StringFixed(2))
	assert.Equal(t, "200.00", stats.AvgDiscount.StringFixed(2))
	assert.Equal(t, 1, stats.UniqueProducts)
}
