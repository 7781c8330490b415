package engine

import (
	"fmt"
	"time"

	"pricing-engine/internal/models"

	"github.com/shopspring/decimal"
)

// CheckEligibility decides whether promotion p can apply to product at
// quantity and instant now. When it cannot, the reason explains why.
func CheckEligibility(p *models.Promotion, product *models.Product, quantity int, now time.Time) (bool, string) {
	if !p.IsActive {
		return false, "inactive"
	}
	if now.Before(p.StartDate) {
		return false, "not started yet"
	}
	if now.After(p.EndDate) {
		return false, "expired"
	}

	if p.MinQuantity != nil && quantity < *p.MinQuantity {
		return false, fmt.Sprintf("minimum quantity required (%d, got %d)", *p.MinQuantity, quantity)
	}

	if p.MinAmount.Valid {
		total := product.BasePrice.Mul(decimal.NewFromInt(int64(quantity)))
		if total.LessThan(p.MinAmount.Decimal) {
			return false, fmt.Sprintf("minimum amount required (%s, got %s)",
				p.MinAmount.Decimal.StringFixed(2), total.StringFixed(2))
		}
	}

	if !scopeMatches(p, product) {
		if p.AppliesToCategory {
			return false, "category does not match"
		}
		return false, "not applicable to this product"
	}

	return true, ""
}

// scopeMatches compares category filters case-sensitively
func scopeMatches(p *models.Promotion, product *models.Product) bool {
	if p.AppliesToCategory {
		return p.CategoryFilter != nil && product.Category != nil && *p.CategoryFilter == *product.Category
	}
	return p.ProductID != nil && *p.ProductID == product.ID
}
