package service

import (
	"context"
	"fmt"
	"strings"

	"pricing-engine/internal/cache"
	"pricing-engine/internal/models"
	"pricing-engine/internal/money"
	"pricing-engine/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProductStore is the storage the product write path needs
type ProductStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

// ProductInput carries the fields of a new product. Nil fields keep their
// defaults.
type ProductInput struct {
	SKU            *string          `json:"sku"`
	Title          *string          `json:"title"`
	BasePrice      *decimal.Decimal `json:"base_price"`
	Currency       *string          `json:"currency"`
	TaxRate        *decimal.Decimal `json:"tax_rate"`
	TaxInclusive   *bool            `json:"tax_inclusive"`
	MaxDiscountCap *decimal.Decimal `json:"max_discount_cap"`
	Category       *string          `json:"category"`
	Stock          *int             `json:"stock"`
}

// ApplyTo copies the set fields of in onto p
func (in *ProductInput) ApplyTo(p *models.Product) {
	if in.SKU != nil {
		p.SKU = *in.SKU
	}
	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.BasePrice != nil {
		p.BasePrice = *in.BasePrice
	}
	if in.Currency != nil {
		p.Currency = strings.ToUpper(*in.Currency)
	}
	if in.TaxRate != nil {
		p.TaxRate = *in.TaxRate
	}
	if in.TaxInclusive != nil {
		p.TaxInclusive = *in.TaxInclusive
	}
	if in.MaxDiscountCap != nil {
		p.MaxDiscountCap = decimal.NewNullDecimal(*in.MaxDiscountCap)
	}
	if in.Category != nil {
		p.Category = in.Category
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
}

// ProductService manages the product catalog
type ProductService struct {
	store     ProductStore
	cache     cache.PriceCache
	rates     *money.ExchangeRates
	publisher CatalogPublisher
	logger    *zap.Logger
}

// NewProductService creates a new product service. publisher may be nil.
func NewProductService(store ProductStore, priceCache cache.PriceCache, rates *money.ExchangeRates, publisher CatalogPublisher) *ProductService {
	return &ProductService{
		store:     store,
		cache:     priceCache,
		rates:     rates,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// GetProduct retrieves a product by ID
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.store.GetProductByID(ctx, id)
}

// ListProducts retrieves all products
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.store.ListProducts(ctx)
}

// CreateProduct validates and stores a new product. Currency defaults to
// the base currency of the rate table.
func (s *ProductService) CreateProduct(ctx context.Context, in *ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	p := &models.Product{Currency: s.rates.Base()}
	in.ApplyTo(p)

	if err := s.validate(p); err != nil {
		return nil, err
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.Int64("product_id", p.ID), zap.String("sku", p.SKU))
	return p, nil
}

// UpdateProduct applies a JSON merge patch to the stored product. A null
// member clears the field, so {"max_discount_cap": null} removes the cap.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, patch []byte) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateProduct", attribute.Int64("product_id", id))
	defer span.End()

	existing, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p, err := mergePatch(existing, patch)
	if err != nil {
		return nil, err
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = existing.UpdatedAt
	p.Currency = strings.ToUpper(p.Currency)

	if err := s.validate(p); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.logger.Info("Product updated", zap.Int64("product_id", id))
	invalidateAndPublish(ctx, s.cache, s.publisher, s.logger, &models.CatalogChangedEvent{
		Change:     models.ChangeProductUpdated,
		ProductIDs: []int64{id},
	})
	return p, nil
}

// DeleteProduct removes a product along with its cached prices
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "ProductService.DeleteProduct", attribute.Int64("product_id", id))
	defer span.End()

	if err := s.store.DeleteProduct(ctx, id); err != nil {
		util.RecordError(span, err)
		return err
	}

	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	invalidateAndPublish(ctx, s.cache, s.publisher, s.logger, &models.CatalogChangedEvent{
		Change:     models.ChangeProductDeleted,
		ProductIDs: []int64{id},
	})
	return nil
}

func (s *ProductService) validate(p *models.Product) error {
	errs := []string{}

	if strings.TrimSpace(p.SKU) == "" {
		errs = append(errs, "sku is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		errs = append(errs, "title is required")
	}
	if p.BasePrice.IsNegative() {
		errs = append(errs, "base_price cannot be negative")
	}
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(hundred) {
		errs = append(errs, "tax_rate must be between 0 and 100")
	}
	if !s.rates.Supports(p.Currency) {
		errs = append(errs, fmt.Sprintf("unsupported currency %q", p.Currency))
	}
	if p.MaxDiscountCap.Valid && p.MaxDiscountCap.Decimal.IsNegative() {
		errs = append(errs, "max_discount_cap cannot be negative")
	}
	if p.Stock < 0 {
		errs = append(errs, "stock cannot be negative")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs, Warnings: []string{}}
	}
	return nil
}
