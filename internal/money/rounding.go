package money

import "github.com/shopspring/decimal"

// RoundingStrategy selects how final prices are rounded to 2 places
type RoundingStrategy string

// Rounding strategies
const (
	RoundHalfUp   RoundingStrategy = "half_up"
	RoundHalfDown RoundingStrategy = "half_down"
	RoundUp       RoundingStrategy = "up"
	RoundDown     RoundingStrategy = "down"
	RoundNearest  RoundingStrategy = "nearest"
)

const pricePlaces = 2

// ParseRoundingStrategy maps a name to a strategy, falling back to half_up
func ParseRoundingStrategy(name string) RoundingStrategy {
	switch s := RoundingStrategy(name); s {
	case RoundHalfUp, RoundHalfDown, RoundUp, RoundDown, RoundNearest:
		return s
	default:
		return RoundHalfUp
	}
}

// RoundPrice rounds amount to 2 places using strategy
func RoundPrice(amount decimal.Decimal, strategy RoundingStrategy) decimal.Decimal {
	switch strategy {
	case RoundHalfDown:
		return roundHalfDown(amount, pricePlaces)
	case RoundUp:
		return amount.RoundUp(pricePlaces)
	case RoundDown:
		return amount.RoundDown(pricePlaces)
	case RoundNearest:
		return amount.RoundBank(pricePlaces)
	default:
		return amount.Round(pricePlaces)
	}
}

// roundHalfDown rounds ties toward zero and everything else to the nearest value
func roundHalfDown(d decimal.Decimal, places int32) decimal.Decimal {
	truncated := d.Truncate(places)
	remainder := d.Sub(truncated).Abs()
	half := decimal.New(5, -(places + 1))
	if remainder.LessThanOrEqual(half) {
		return truncated.Round(places)
	}
	return d.Round(places)
}
