package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pricing-engine/internal/cache"
	"pricing-engine/internal/engine"
	"pricing-engine/internal/models"
	"pricing-engine/internal/money"
	"pricing-engine/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrInvalidQuantity is returned for quantities below 1
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// ProductReader looks up products by id
type ProductReader interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
}

// PromotionReader lists the promotions that may apply to a product
type PromotionReader interface {
	ListEligibleCandidates(ctx context.Context, productID int64, category *string) ([]models.Promotion, error)
}

// PricingOptions tune a PricingService
type PricingOptions struct {
	CacheTTL        time.Duration
	DefaultRounding string
	// Clock returns the evaluation instant; time.Now when nil
	Clock func() time.Time
}

// PricingService computes prices with discounts, tax and currency conversion
type PricingService struct {
	products        ProductReader
	promotions      PromotionReader
	cache           cache.PriceCache
	rates           *money.ExchangeRates
	ttl             time.Duration
	defaultRounding money.RoundingStrategy
	now             func() time.Time
	logger          *zap.Logger
}

// NewPricingService creates a new pricing service
func NewPricingService(
	products ProductReader,
	promotions PromotionReader,
	priceCache cache.PriceCache,
	rates *money.ExchangeRates,
	opts PricingOptions,
) *PricingService {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &PricingService{
		products:        products,
		promotions:      promotions,
		cache:           priceCache,
		rates:           rates,
		ttl:             ttl,
		defaultRounding: money.ParseRoundingStrategy(opts.DefaultRounding),
		now:             clock,
		logger:          util.GetLogger(),
	}
}

// PriceRequest represents a request to price a product
type PriceRequest struct {
	ProductID        int64   `json:"product_id" binding:"required"`
	Quantity         int     `json:"quantity" binding:"required,min=1"`
	TargetCurrency   *string `json:"target_currency,omitempty"`
	IncludeTax       *bool   `json:"include_tax,omitempty"`
	RoundingStrategy string  `json:"rounding_strategy,omitempty"`
}

// ComputePrice prices a product, serving and populating the cache
func (s *PricingService) ComputePrice(ctx context.Context, req *PriceRequest) (*models.PricingResult, error) {
	ctx, span := util.StartSpan(ctx, "PricingService.ComputePrice",
		attribute.Int64("product_id", req.ProductID),
		attribute.Int("quantity", req.Quantity))
	defer span.End()

	start := time.Now()
	defer func() {
		util.PriceComputeLatency.Observe(time.Since(start).Seconds())
	}()

	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, req.Quantity)
	}

	strategy := s.strategyFor(req.RoundingStrategy)
	key := cache.Key(cache.KeyParams{
		ProductID:        req.ProductID,
		Quantity:         req.Quantity,
		TargetCurrency:   req.TargetCurrency,
		IncludeTax:       req.IncludeTax,
		RoundingStrategy: string(strategy),
	})

	if cached, ok := s.cachedResult(ctx, key); ok {
		util.CacheHitsTotal.Inc()
		util.PriceComputationsTotal.WithLabelValues("cache_hit").Inc()
		span.SetAttributes(attribute.Bool("cached", true))
		return cached, nil
	}
	util.CacheMissesTotal.Inc()

	result, err := s.evaluate(ctx, req, strategy, nil)
	if err != nil {
		util.RecordError(span, err)
		util.PriceComputationsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}

	s.storeResult(ctx, key, result)
	util.PriceComputationsTotal.WithLabelValues("computed").Inc()
	return result, nil
}

// evaluate runs a full uncached computation. extra promotions are
// evaluated alongside the persisted ones without being stored.
func (s *PricingService) evaluate(
	ctx context.Context,
	req *PriceRequest,
	strategy money.RoundingStrategy,
	extra []models.Promotion,
) (*models.PricingResult, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, req.Quantity)
	}

	product, err := s.products.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.promotions.ListEligibleCandidates(ctx, product.ID, product.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to load promotions: %w", err)
	}

	outcome := engine.Evaluate(engine.Input{
		Product:    product,
		Quantity:   req.Quantity,
		Promotions: candidates,
		Extra:      extra,
		Now:        s.now(),
	})

	taxInclusive := product.TaxInclusive
	if req.IncludeTax != nil {
		taxInclusive = *req.IncludeTax
	}
	tax := money.CalculateTax(outcome.PriceAfterDiscount, product.TaxRate, taxInclusive)

	currency := product.Currency
	if req.TargetCurrency != nil && *req.TargetCurrency != "" {
		currency = *req.TargetCurrency
	}

	conv := &displayConverter{rates: s.rates, from: product.Currency, to: currency, strategy: strategy}
	result := &models.PricingResult{
		ProductID:          product.ID,
		Quantity:           req.Quantity,
		OriginalPrice:      conv.amount(outcome.BasePrice),
		PriceAfterDiscount: conv.amount(outcome.PriceAfterDiscount),
		DiscountAmount:     conv.amount(outcome.TotalDiscount),
		TaxAmount:          conv.amount(tax.Tax),
		TaxRate:            product.TaxRate,
		TaxInclusive:       taxInclusive,
		FinalPrice:         conv.amount(tax.Total),
		Currency:           currency,
		RoundingStrategy:   string(strategy),
		AppliedPromotions:  make([]models.AppliedPromotion, 0, len(outcome.Applied)),
		Explanation:        outcome.Explanation,
	}
	for _, applied := range outcome.Applied {
		applied.DiscountAmount = conv.amount(applied.DiscountAmount)
		result.AppliedPromotions = append(result.AppliedPromotions, applied)
	}
	if conv.err != nil {
		return nil, conv.err
	}

	result.Explanation = append(result.Explanation, taxLine(product.TaxRate, taxInclusive, tax))
	if currency != product.Currency {
		result.Explanation = append(result.Explanation,
			fmt.Sprintf("Converted from %s to %s", product.Currency, currency))
	}

	return result, nil
}

func (s *PricingService) strategyFor(name string) money.RoundingStrategy {
	if name == "" {
		return s.defaultRounding
	}
	return money.ParseRoundingStrategy(name)
}

// cachedResult decodes a cache hit; undecodable entries count as misses
func (s *PricingService) cachedResult(ctx context.Context, key string) (*models.PricingResult, bool) {
	raw, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}

	var result models.PricingResult
	if err := json.Unmarshal(raw, &result); err != nil {
		s.logger.Warn("Discarding undecodable cached price", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	result.Cached = true
	return &result, true
}

func (s *PricingService) storeResult(ctx context.Context, key string, result *models.PricingResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("Failed to encode price for cache", zap.Int64("product_id", result.ProductID), zap.Error(err))
		return
	}

	if !s.cache.Set(ctx, key, raw, s.ttl) {
		s.logger.Debug("Price not cached", zap.Int64("product_id", result.ProductID))
	}
}

// displayConverter converts amounts to the target currency and applies
// display rounding. The first conversion error sticks.
type displayConverter struct {
	rates    *money.ExchangeRates
	from     string
	to       string
	strategy money.RoundingStrategy
	err      error
}

func (c *displayConverter) amount(v decimal.Decimal) decimal.Decimal {
	if c.err != nil {
		return decimal.Zero
	}
	converted, err := c.rates.Convert(v, c.from, c.to)
	if err != nil {
		c.err = err
		return decimal.Zero
	}
	return money.RoundPrice(converted, c.strategy)
}

func taxLine(rate decimal.Decimal, inclusive bool, tax money.TaxBreakdown) string {
	mode := "exclusive"
	if inclusive {
		mode = "inclusive"
	}
	return fmt.Sprintf("Tax: %s%% %s, tax amount %s", rate.String(), mode, tax.Tax.StringFixed(2))
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, models.ErrProductNotFound):
		return "not_found"
	case errors.Is(err, money.ErrUnsupportedCurrency):
		return "unsupported_currency"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	default:
		return "error"
	}
}
