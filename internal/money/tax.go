package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// TaxBreakdown splits an amount into its taxable base and tax.
// Each field is rounded on its own, so Base+Tax can differ from Total by 0.01.
type TaxBreakdown struct {
	Base  decimal.Decimal `json:"base_amount"`
	Tax   decimal.Decimal `json:"tax_amount"`
	Total decimal.Decimal `json:"total_amount"`
}

// CalculateTax computes tax for amount at ratePercent (18 means 18%).
// When inclusive is true the amount already contains the tax and it is
// extracted; otherwise tax is added on top.
func CalculateTax(amount, ratePercent decimal.Decimal, inclusive bool) TaxBreakdown {
	rate := ratePercent.Div(hundred)

	var base, tax, total decimal.Decimal
	if inclusive {
		base = amount.Div(decimal.NewFromInt(1).Add(rate))
		tax = amount.Sub(base)
		total = amount
	} else {
		base = amount
		tax = amount.Mul(rate)
		total = amount.Add(tax)
	}

	return TaxBreakdown{
		Base:  base.Round(2),
		Tax:   tax.Round(2),
		Total: total.Round(2),
	}
}
