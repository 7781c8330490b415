package engine

import (
	"fmt"
	"sort"
	"time"

	"pricing-engine/internal/models"

	"github.com/shopspring/decimal"
)

// Input is everything one discount evaluation depends on
type Input struct {
	Product  *models.Product
	Quantity int
	// Promotions are the persisted candidates for the product
	Promotions []models.Promotion
	// Extra promotions are evaluated alongside the persisted ones
	// without ever being stored. Simulation uses them.
	Extra []models.Promotion
	Now   time.Time
}

// Outcome is the result of composing discounts for one input
type Outcome struct {
	BasePrice          decimal.Decimal
	TotalDiscount      decimal.Decimal
	PriceAfterDiscount decimal.Decimal
	Applied            []models.AppliedPromotion
	Explanation        []string
}

// Evaluate filters, orders, stacks and caps the promotions of in.
// Given the same input it always produces the same outcome.
func Evaluate(in Input) *Outcome {
	product := in.Product
	unitPrice := product.BasePrice
	basePrice := unitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))

	out := &Outcome{
		BasePrice:   basePrice,
		Applied:     []models.AppliedPromotion{},
		Explanation: []string{},
	}

	totalDiscount := decimal.Zero
	currentPrice := basePrice

	for _, promo := range ordered(in.Promotions, in.Extra) {
		promo := promo
		label := fmt.Sprintf("%s (priority %d)", promo.Name, promo.Priority)

		if ok, reason := CheckEligibility(&promo, product, in.Quantity, in.Now); !ok {
			out.Explanation = append(out.Explanation, fmt.Sprintf("Rule Skipped: %s - %s", label, reason))
			continue
		}

		discount, err := DiscountOf(&promo)
		if err != nil {
			out.Explanation = append(out.Explanation, fmt.Sprintf("Rule Skipped: %s - invalid promotion: %v", label, err))
			continue
		}

		value, reason := amount(discount, pricing{
			unitPrice:    unitPrice,
			quantity:     in.Quantity,
			basePrice:    basePrice,
			currentPrice: currentPrice,
			stacking:     promo.StackingEnabled,
		})
		applied := models.AppliedPromotion{
			Name:           promo.Name,
			DiscountAmount: value,
			Reason:         reason,
			Priority:       promo.Priority,
		}

		if promo.StackingEnabled {
			totalDiscount = totalDiscount.Add(value)
			currentPrice = basePrice.Sub(totalDiscount)
			out.Applied = append(out.Applied, applied)
			out.Explanation = append(out.Explanation,
				fmt.Sprintf("Rule Stacked: %s - %s (discount %s)", label, reason, value.StringFixed(2)))
			continue
		}

		// A non-stacking promotion competes with the whole running total,
		// stacked contributions included, and replaces it when larger.
		if value.GreaterThan(totalDiscount) {
			totalDiscount = value
			currentPrice = basePrice.Sub(totalDiscount)
			out.Applied = []models.AppliedPromotion{applied}
			out.Explanation = append(out.Explanation,
				fmt.Sprintf("Rule Applied: %s - %s (discount %s)", label, reason, value.StringFixed(2)))
			continue
		}

		out.Explanation = append(out.Explanation,
			fmt.Sprintf("Rule Skipped: %s - lower discount than best applied (%s <= %s)",
				label, value.StringFixed(2), totalDiscount.StringFixed(2)))
	}

	if product.MaxDiscountCap.Valid {
		limit := product.MaxDiscountCap.Decimal.Mul(decimal.NewFromInt(int64(in.Quantity)))
		if totalDiscount.GreaterThan(limit) {
			out.Explanation = append(out.Explanation,
				fmt.Sprintf("Discount cap applied: total discount %s capped at %s",
					totalDiscount.StringFixed(2), limit.StringFixed(2)))
			totalDiscount = limit
		}
	}

	out.TotalDiscount = totalDiscount
	out.PriceAfterDiscount = basePrice.Sub(totalDiscount)
	return out
}

// ordered returns persisted promotions sorted by (priority, id) followed
// by extras in the order given, then stably sorted by priority, so ties
// never depend on storage iteration order.
func ordered(persisted, extra []models.Promotion) []models.Promotion {
	all := make([]models.Promotion, 0, len(persisted)+len(extra))
	all = append(all, persisted...)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Priority != all[j].Priority {
			return all[i].Priority < all[j].Priority
		}
		return all[i].ID < all[j].ID
	})

	all = append(all, extra...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Priority < all[j].Priority
	})
	return all
}
