package money

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedCurrency is returned when a currency code is not in the rate table
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// ExchangeRates is a read-only table of rates relative to a base currency.
// One unit of the base currency buys rate units of the keyed currency.
type ExchangeRates struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewExchangeRates builds a rate table. The base currency must be present at rate 1.
func NewExchangeRates(base string, rates map[string]decimal.Decimal) (*ExchangeRates, error) {
	baseRate, ok := rates[base]
	if !ok {
		return nil, fmt.Errorf("base currency %s missing from rate table", base)
	}
	if !baseRate.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("base currency %s must have rate 1, got %s", base, baseRate)
	}

	copied := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive, got %s", code, rate)
		}
		copied[code] = rate
	}

	return &ExchangeRates{base: base, rates: copied}, nil
}

// DefaultExchangeRates returns the built-in INR based table
func DefaultExchangeRates() *ExchangeRates {
	rates, _ := NewExchangeRates("INR", map[string]decimal.Decimal{
		"INR": decimal.NewFromInt(1),
		"USD": decimal.RequireFromString("0.012"),
		"EUR": decimal.RequireFromString("0.011"),
		"GBP": decimal.RequireFromString("0.0095"),
		"AED": decimal.RequireFromString("0.044"),
		"SAR": decimal.RequireFromString("0.045"),
	})
	return rates
}

// Base returns the base currency code
func (r *ExchangeRates) Base() string {
	return r.base
}

// Supports reports whether the code is in the table
func (r *ExchangeRates) Supports(code string) bool {
	_, ok := r.rates[code]
	return ok
}

// Currencies returns the supported codes in sorted order
func (r *ExchangeRates) Currencies() []string {
	codes := make([]string, 0, len(r.rates))
	for code := range r.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Convert converts amount between currencies through the base currency.
// The result is always rounded half-up to 2 places, whatever display
// rounding the caller applies afterwards.
func (r *ExchangeRates) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	fromRate, ok := r.rates[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, from)
	}
	toRate, ok := r.rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, to)
	}

	inBase := amount
	if from != r.base {
		inBase = amount.Div(fromRate)
	}

	converted := inBase
	if to != r.base {
		converted = inBase.Mul(toRate)
	}

	return converted.Round(2), nil
}
