package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pricing-engine/internal/models"
	"pricing-engine/internal/money"
	"pricing-engine/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Defaults applied to hypothetical promotions
const (
	DefaultTestPromotionName     = "Test Promotion"
	DefaultTestPromotionPriority = 999
	defaultTestWindow            = 7 * 24 * time.Hour
	maxConcurrentSimulations     = 8
)

// HypotheticalPromotion describes a promotion to try without storing it
type HypotheticalPromotion struct {
	Name            string              `json:"name"`
	DiscountType    models.DiscountType `json:"discount_type"`
	DiscountValue   decimal.Decimal     `json:"discount_value"`
	BuyQuantity     *int                `json:"buy_quantity,omitempty"`
	GetQuantity     *int                `json:"get_quantity,omitempty"`
	MinQuantity     *int                `json:"min_quantity,omitempty"`
	MinAmount       decimal.NullDecimal `json:"min_amount"`
	Priority        *int                `json:"priority,omitempty"`
	StackingEnabled *bool               `json:"stacking_enabled,omitempty"`
}

// promotion materialises h as an unsaved promotion scoped to productID,
// active from a day before now for a week
func (h HypotheticalPromotion) promotion(productID int64, now time.Time) models.Promotion {
	p := models.Promotion{
		Name:          h.Name,
		DiscountType:  h.DiscountType,
		DiscountValue: h.DiscountValue,
		BuyQuantity:   h.BuyQuantity,
		GetQuantity:   h.GetQuantity,
		MinQuantity:   h.MinQuantity,
		MinAmount:     h.MinAmount,
		Priority:      DefaultTestPromotionPriority,
		StartDate:     now.Add(-24 * time.Hour),
		EndDate:       now.Add(defaultTestWindow),
		IsActive:      true,
		ProductID:     &productID,
	}
	if p.Name == "" {
		p.Name = DefaultTestPromotionName
	}
	if p.DiscountType == "" {
		p.DiscountType = models.DiscountPercentage
	}
	if h.Priority != nil {
		p.Priority = *h.Priority
	}
	if h.StackingEnabled != nil {
		p.StackingEnabled = *h.StackingEnabled
	}
	return p
}

// SimulationRequest asks how one hypothetical promotion would change a price
type SimulationRequest struct {
	ProductID      int64                 `json:"product_id" binding:"required"`
	Quantity       int                   `json:"quantity" binding:"required,min=1"`
	Promotion      HypotheticalPromotion `json:"test_promotion"`
	TargetCurrency *string               `json:"target_currency,omitempty"`
	IncludeTax     *bool                 `json:"include_tax,omitempty"`
}

// Comparison contrasts a simulated price with the current one
type Comparison struct {
	PriceDifference    decimal.Decimal `json:"price_difference"`
	DiscountDifference decimal.Decimal `json:"discount_difference"`
	SavingsPercentage  decimal.Decimal `json:"savings_percentage"`
	IsBetter           bool            `json:"is_better"`
}

// SimulationResult is the outcome of SimulatePromotion
type SimulationResult struct {
	ProductID  int64                 `json:"product_id"`
	Quantity   int                   `json:"quantity"`
	Promotion  HypotheticalPromotion `json:"test_promotion"`
	Current    *models.PricingResult `json:"current_price"`
	Simulated  *models.PricingResult `json:"simulated_price"`
	Comparison Comparison            `json:"comparison"`
}

// MultiSimulationRequest asks how each of several promotions would
// change a price
type MultiSimulationRequest struct {
	ProductID      int64                   `json:"product_id" binding:"required"`
	Quantity       int                     `json:"quantity" binding:"required,min=1"`
	Promotions     []HypotheticalPromotion `json:"test_promotions" binding:"required,min=1"`
	TargetCurrency *string                 `json:"target_currency,omitempty"`
	IncludeTax     *bool                   `json:"include_tax,omitempty"`
}

// SimulationOption is one candidate of a multi-promotion simulation
type SimulationOption struct {
	OptionNumber      int                   `json:"option_number"`
	Promotion         HypotheticalPromotion `json:"promotion"`
	FinalPrice        decimal.Decimal       `json:"final_price"`
	DiscountAmount    decimal.Decimal       `json:"discount_amount"`
	Savings           decimal.Decimal       `json:"savings"`
	SavingsPercentage decimal.Decimal       `json:"savings_percentage"`
}

// MultiSimulationResult is the outcome of SimulateMultiple
type MultiSimulationResult struct {
	ProductID        int64              `json:"product_id"`
	Quantity         int                `json:"quantity"`
	Currency         string             `json:"currency"`
	BaselinePrice    decimal.Decimal    `json:"baseline_price"`
	BaselineDiscount decimal.Decimal    `json:"baseline_discount"`
	TestedPromotions int                `json:"tested_promotions"`
	Results          []SimulationOption `json:"results"`
	BestOption       *SimulationOption  `json:"best_option"`
	Recommendation   string             `json:"recommendation"`
}

// Scenario is one pricing variant of a product
type Scenario struct {
	Description    string  `json:"description"`
	Quantity       int     `json:"quantity"`
	TargetCurrency *string `json:"currency,omitempty"`
	IncludeTax     *bool   `json:"include_tax,omitempty"`
}

// ScenarioRequest asks to price a product under several scenarios
type ScenarioRequest struct {
	ProductID int64      `json:"product_id" binding:"required"`
	Scenarios []Scenario `json:"scenarios" binding:"required,min=1"`
}

// ScenarioResult is the price of one scenario
type ScenarioResult struct {
	ScenarioNumber    int                       `json:"scenario_number"`
	Description       string                    `json:"description"`
	Quantity          int                       `json:"quantity"`
	Currency          string                    `json:"currency"`
	FinalPrice        decimal.Decimal           `json:"final_price"`
	PricePerUnit      decimal.Decimal           `json:"price_per_unit"`
	DiscountAmount    decimal.Decimal           `json:"discount_amount"`
	AppliedPromotions []models.AppliedPromotion `json:"applied_promotions"`
}

// ScenarioComparison is the outcome of CompareScenarios
type ScenarioComparison struct {
	ProductID         int64            `json:"product_id"`
	ScenariosTested   int              `json:"scenarios_tested"`
	Results           []ScenarioResult `json:"results"`
	BestValueScenario *ScenarioResult  `json:"best_value_scenario"`
	Recommendation    string           `json:"recommendation"`
}

// SimulationService answers what-if questions on top of the pricing
// service. Hypothetical promotions are never persisted and their prices
// are never cached.
type SimulationService struct {
	pricing *PricingService
	logger  *zap.Logger
}

// NewSimulationService creates a new simulation service
func NewSimulationService(pricing *PricingService) *SimulationService {
	return &SimulationService{
		pricing: pricing,
		logger:  util.GetLogger(),
	}
}

// SimulatePromotion prices the product with and without the hypothetical
// promotion
func (s *SimulationService) SimulatePromotion(ctx context.Context, req *SimulationRequest) (*SimulationResult, error) {
	ctx, span := util.StartSpan(ctx, "SimulationService.SimulatePromotion",
		attribute.Int64("product_id", req.ProductID))
	defer span.End()

	promo, err := s.hypothetical(req.Promotion, req.ProductID)
	if err != nil {
		return nil, err
	}

	priceReq := &PriceRequest{
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		TargetCurrency: req.TargetCurrency,
		IncludeTax:     req.IncludeTax,
	}

	current, err := s.pricing.ComputePrice(ctx, priceReq)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	simulated, err := s.pricing.evaluate(ctx, priceReq, s.pricing.defaultRounding, []models.Promotion{promo})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.SimulationsTotal.WithLabelValues("single").Inc()
	s.logger.Debug("Simulated promotion",
		zap.Int64("product_id", req.ProductID),
		zap.String("promotion", promo.Name),
		zap.String("current", current.FinalPrice.StringFixed(2)),
		zap.String("simulated", simulated.FinalPrice.StringFixed(2)))

	return &SimulationResult{
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		Promotion:  req.Promotion,
		Current:    current,
		Simulated:  simulated,
		Comparison: compare(current, simulated),
	}, nil
}

// SimulateMultiple prices the product once per hypothetical promotion and
// picks the one saving the most
func (s *SimulationService) SimulateMultiple(ctx context.Context, req *MultiSimulationRequest) (*MultiSimulationResult, error) {
	ctx, span := util.StartSpan(ctx, "SimulationService.SimulateMultiple",
		attribute.Int64("product_id", req.ProductID),
		attribute.Int("candidates", len(req.Promotions)))
	defer span.End()

	if len(req.Promotions) == 0 {
		return nil, &ValidationError{Errors: []string{"at least one test promotion is required"}, Warnings: []string{}}
	}

	promos := make([]models.Promotion, len(req.Promotions))
	var errs []string
	for i, h := range req.Promotions {
		p, err := s.hypothetical(h, req.ProductID)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				for _, msg := range verr.Errors {
					errs = append(errs, fmt.Sprintf("option %d: %s", i+1, msg))
				}
				continue
			}
			return nil, err
		}
		promos[i] = p
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs, Warnings: []string{}}
	}

	priceReq := &PriceRequest{
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		TargetCurrency: req.TargetCurrency,
		IncludeTax:     req.IncludeTax,
	}

	baseline, err := s.pricing.ComputePrice(ctx, priceReq)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	options := make([]SimulationOption, len(promos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSimulations)
	for i := range promos {
		i := i
		g.Go(func() error {
			simulated, err := s.pricing.evaluate(gctx, priceReq, s.pricing.defaultRounding, []models.Promotion{promos[i]})
			if err != nil {
				return err
			}
			cmp := compare(baseline, simulated)
			options[i] = SimulationOption{
				OptionNumber:      i + 1,
				Promotion:         req.Promotions[i],
				FinalPrice:        simulated.FinalPrice,
				DiscountAmount:    simulated.DiscountAmount,
				Savings:           cmp.PriceDifference,
				SavingsPercentage: cmp.SavingsPercentage,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.SimulationsTotal.WithLabelValues("multiple").Inc()

	result := &MultiSimulationResult{
		ProductID:        req.ProductID,
		Quantity:         req.Quantity,
		Currency:         baseline.Currency,
		BaselinePrice:    baseline.FinalPrice,
		BaselineDiscount: baseline.DiscountAmount,
		TestedPromotions: len(options),
		Results:          options,
		Recommendation:   "No better option found",
	}

	for i := range options {
		if !options[i].Savings.IsPositive() {
			continue
		}
		if result.BestOption == nil || options[i].Savings.GreaterThan(result.BestOption.Savings) {
			best := options[i]
			result.BestOption = &best
		}
	}
	if best := result.BestOption; best != nil {
		result.Recommendation = fmt.Sprintf("Option %d saves %s %s (%s%%)",
			best.OptionNumber, baseline.Currency, best.Savings.StringFixed(2), best.SavingsPercentage.StringFixed(2))
	}

	return result, nil
}

// CompareScenarios prices the product under each scenario and picks the
// lowest price per unit
func (s *SimulationService) CompareScenarios(ctx context.Context, req *ScenarioRequest) (*ScenarioComparison, error) {
	ctx, span := util.StartSpan(ctx, "SimulationService.CompareScenarios",
		attribute.Int64("product_id", req.ProductID),
		attribute.Int("scenarios", len(req.Scenarios)))
	defer span.End()

	if len(req.Scenarios) == 0 {
		return nil, &ValidationError{Errors: []string{"at least one scenario is required"}, Warnings: []string{}}
	}

	comparison := &ScenarioComparison{
		ProductID:       req.ProductID,
		ScenariosTested: len(req.Scenarios),
		Results:         make([]ScenarioResult, 0, len(req.Scenarios)),
	}

	for i, sc := range req.Scenarios {
		quantity := sc.Quantity
		if quantity == 0 {
			quantity = 1
		}
		description := sc.Description
		if description == "" {
			description = fmt.Sprintf("Scenario %d", i+1)
		}

		price, err := s.pricing.ComputePrice(ctx, &PriceRequest{
			ProductID:      req.ProductID,
			Quantity:       quantity,
			TargetCurrency: sc.TargetCurrency,
			IncludeTax:     sc.IncludeTax,
		})
		if err != nil {
			util.RecordError(span, err)
			return nil, err
		}

		comparison.Results = append(comparison.Results, ScenarioResult{
			ScenarioNumber:    i + 1,
			Description:       description,
			Quantity:          quantity,
			Currency:          price.Currency,
			FinalPrice:        price.FinalPrice,
			PricePerUnit:      money.RoundPrice(price.FinalPrice.Div(decimal.NewFromInt(int64(quantity))), money.RoundHalfUp),
			DiscountAmount:    price.DiscountAmount,
			AppliedPromotions: price.AppliedPromotions,
		})
	}

	for i := range comparison.Results {
		r := &comparison.Results[i]
		if comparison.BestValueScenario == nil || r.PricePerUnit.LessThan(comparison.BestValueScenario.PricePerUnit) {
			best := *r
			comparison.BestValueScenario = &best
		}
	}
	best := comparison.BestValueScenario
	comparison.Recommendation = fmt.Sprintf("Best value: %s at %s %s per unit",
		best.Description, best.Currency, best.PricePerUnit.StringFixed(2))

	util.SimulationsTotal.WithLabelValues("scenarios").Inc()
	return comparison, nil
}

// hypothetical turns h into an unsaved promotion after checking its data
func (s *SimulationService) hypothetical(h HypotheticalPromotion, productID int64) (models.Promotion, error) {
	p := h.promotion(productID, s.pricing.now())
	if errs := ValidatePromotionData(&p); len(errs) > 0 {
		return models.Promotion{}, &ValidationError{Errors: errs, Warnings: []string{}}
	}
	return p, nil
}

func compare(current, simulated *models.PricingResult) Comparison {
	diff := current.FinalPrice.Sub(simulated.FinalPrice)

	pct := decimal.Zero
	if current.FinalPrice.IsPositive() {
		pct = diff.Div(current.FinalPrice).Mul(hundred).Round(2)
	}

	return Comparison{
		PriceDifference:    diff,
		DiscountDifference: simulated.DiscountAmount.Sub(current.DiscountAmount),
		SavingsPercentage:  pct,
		IsBetter:           diff.IsPositive(),
	}
}
