package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pricing-engine/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ValidationError aggregates every rule a promotion or product violates
type ValidationError struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// ValidationReport is the outcome of validating a promotion
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Err returns the report as a *ValidationError, or nil when valid
func (r *ValidationReport) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Errors: r.Errors, Warnings: r.Warnings}
}

// PromotionCatalog is the storage the validator consults
type PromotionCatalog interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	PromotionNameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	ListActiveInScope(ctx context.Context, p *models.Promotion, excludeID int64) ([]models.Promotion, error)
}

// ValidatePromotionData checks the rules that need nothing but the
// promotion itself. Every violation is reported.
func ValidatePromotionData(p *models.Promotion) []string {
	errs := []string{}

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, "name is required")
	}

	switch p.DiscountType {
	case models.DiscountBOGO:
		if unset(p.BuyQuantity) || unset(p.GetQuantity) {
			errs = append(errs, "BOGO promotions require both buy_quantity and get_quantity")
		}
		if p.BuyQuantity != nil && *p.BuyQuantity < 0 {
			errs = append(errs, "buy_quantity must be greater than 0")
		}
		if p.GetQuantity != nil && *p.GetQuantity < 0 {
			errs = append(errs, "get_quantity must be greater than 0")
		}
	case models.DiscountPercentage:
		if !p.DiscountValue.IsPositive() {
			errs = append(errs, "discount_value must be greater than 0")
		} else if p.DiscountValue.GreaterThan(hundred) {
			errs = append(errs, "percentage discount cannot exceed 100%")
		}
	case models.DiscountFlat:
		if !p.DiscountValue.IsPositive() {
			errs = append(errs, "discount_value must be greater than 0")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown discount_type %q", p.DiscountType))
	}

	if p.AppliesToCategory {
		if p.CategoryFilter == nil || strings.TrimSpace(*p.CategoryFilter) == "" {
			errs = append(errs, "category promotions require category_filter")
		}
		if p.ProductID != nil {
			errs = append(errs, "category promotions cannot also set product_id")
		}
	} else if p.ProductID == nil {
		errs = append(errs, "non-category promotions require product_id")
	}

	if p.MinQuantity != nil && *p.MinQuantity <= 0 {
		errs = append(errs, "min_quantity must be greater than 0")
	}
	if p.MinAmount.Valid && !p.MinAmount.Decimal.IsPositive() {
		errs = append(errs, "min_amount must be greater than 0")
	}

	if !p.StartDate.Before(p.EndDate) {
		errs = append(errs, "start_date must be before end_date")
	}

	return errs
}

func unset(n *int) bool {
	return n == nil || *n == 0
}

// PromotionValidator checks promotions against data rules and the
// current catalog
type PromotionValidator struct {
	catalog PromotionCatalog
}

// NewPromotionValidator creates a new promotion validator
func NewPromotionValidator(catalog PromotionCatalog) *PromotionValidator {
	return &PromotionValidator{catalog: catalog}
}

// ValidatePromotion reports every error and warning for p. excludeID is
// the promotion's own id when updating, 0 otherwise.
func (v *PromotionValidator) ValidatePromotion(ctx context.Context, p *models.Promotion, excludeID int64) (*ValidationReport, error) {
	report := &ValidationReport{
		Errors:   ValidatePromotionData(p),
		Warnings: []string{},
	}

	if strings.TrimSpace(p.Name) != "" {
		exists, err := v.catalog.PromotionNameExists(ctx, p.Name, excludeID)
		if err != nil {
			return nil, fmt.Errorf("failed to check promotion name: %w", err)
		}
		if exists {
			report.Errors = append(report.Errors, fmt.Sprintf("promotion name %q already exists", p.Name))
		}
	}

	if !p.AppliesToCategory && p.ProductID != nil {
		_, err := v.catalog.GetProductByID(ctx, *p.ProductID)
		switch {
		case errors.Is(err, models.ErrProductNotFound):
			report.Errors = append(report.Errors, fmt.Sprintf("product %d does not exist", *p.ProductID))
		case err != nil:
			return nil, fmt.Errorf("failed to check product: %w", err)
		}
	}

	if p.StartDate.Before(p.EndDate) {
		others, err := v.catalog.ListActiveInScope(ctx, p, excludeID)
		if err != nil {
			return nil, fmt.Errorf("failed to check overlapping promotions: %w", err)
		}
		report.Warnings = append(report.Warnings, overlapWarnings(p, others)...)
	}

	report.Valid = len(report.Errors) == 0
	return report, nil
}

func overlapWarnings(p *models.Promotion, others []models.Promotion) []string {
	warnings := []string{}
	for _, other := range others {
		if other.EndDate.Before(p.StartDate) || other.StartDate.After(p.EndDate) {
			continue
		}
		if other.Priority == p.Priority {
			warnings = append(warnings, fmt.Sprintf(
				"overlaps with active promotion %q at the same priority %d", other.Name, other.Priority))
		}
		if p.StackingEnabled && !other.StackingEnabled {
			warnings = append(warnings, fmt.Sprintf(
				"stacking promotion overlaps non-stacking promotion %q", other.Name))
		}
	}
	return warnings
}
