package engine

import (
	"fmt"

	"pricing-engine/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount is the closed set of discount kinds a promotion can carry.
// Only the types in this file implement it.
type Discount interface {
	isDiscount()
}

// Percentage takes Percent percent off a price
type Percentage struct {
	Percent decimal.Decimal
}

// Flat takes a fixed amount off every unit
type Flat struct {
	PerUnit decimal.Decimal
}

// BuyXGetY gives Get free units for every complete bundle of Buy+Get
type BuyXGetY struct {
	Buy int
	Get int
}

func (Percentage) isDiscount() {}
func (Flat) isDiscount()       {}
func (BuyXGetY) isDiscount()   {}

// DiscountOf decodes the stored discount tag and parameters of a promotion
func DiscountOf(p *models.Promotion) (Discount, error) {
	switch p.DiscountType {
	case models.DiscountPercentage:
		return Percentage{Percent: p.DiscountValue}, nil
	case models.DiscountFlat:
		return Flat{PerUnit: p.DiscountValue}, nil
	case models.DiscountBOGO:
		if p.BuyQuantity == nil || p.GetQuantity == nil {
			return nil, fmt.Errorf("bogo promotion requires buy and get quantities")
		}
		if *p.BuyQuantity <= 0 || *p.GetQuantity <= 0 {
			return nil, fmt.Errorf("bogo quantities must be positive, got buy=%d get=%d", *p.BuyQuantity, *p.GetQuantity)
		}
		return BuyXGetY{Buy: *p.BuyQuantity, Get: *p.GetQuantity}, nil
	default:
		return nil, fmt.Errorf("unknown discount type %q", p.DiscountType)
	}
}

// pricing is what a discount is evaluated against
type pricing struct {
	unitPrice    decimal.Decimal
	quantity     int
	basePrice    decimal.Decimal
	currentPrice decimal.Decimal
	stacking     bool
}

// amount returns the raw discount and a human readable reason
func amount(d Discount, p pricing) (decimal.Decimal, string) {
	switch d := d.(type) {
	case Percentage:
		// stacking percentages compound on the running price,
		// non-stacking ones are measured against the undiscounted base
		basis := p.basePrice
		if p.stacking {
			basis = p.currentPrice
		}
		discount := basis.Mul(d.Percent).Div(hundred)
		return discount, fmt.Sprintf("Applied %s%% discount on %s", d.Percent.String(), basis.StringFixed(2))

	case Flat:
		discount := d.PerUnit.Mul(decimal.NewFromInt(int64(p.quantity)))
		return discount, fmt.Sprintf("Applied flat discount of %s per item", d.PerUnit.StringFixed(2))

	case BuyXGetY:
		bundle := d.Buy + d.Get
		freeUnits := (p.quantity / bundle) * d.Get
		discount := p.unitPrice.Mul(decimal.NewFromInt(int64(freeUnits)))
		return discount, fmt.Sprintf("Applied BOGO: buy %d get %d free (%d free units)", d.Buy, d.Get, freeUnits)

	default:
		panic(fmt.Sprintf("engine: unhandled discount %T", d))
	}
}
