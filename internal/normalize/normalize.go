// Package normalize rounds raw quantities and prices to a symbol's precision
// and bumps quantities up to the exchange's minimum notional value. Every
// strategy runs its inputs through this layer before submission.
package normalize

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rounding selects the tie-breaking convention. The exchange does not
// document its own, so both are supported; half away from zero is the
// default.
type Rounding int

const (
	HalfAwayFromZero Rounding = iota
	Bankers
)

// ParseRounding maps a config string to a Rounding.
func ParseRounding(s string) (Rounding, error) {
	switch s {
	case "", "half-away":
		return HalfAwayFromZero, nil
	case "bankers":
		return Bankers, nil
	default:
		return HalfAwayFromZero, fmt.Errorf("unknown rounding mode: %q (want half-away or bankers)", s)
	}
}

// Round rounds d to the given number of decimal places under the convention.
func (r Rounding) Round(d decimal.Decimal, places int32) decimal.Decimal {
	if r == Bankers {
		return d.RoundBank(places)
	}
	return d.Round(places)
}

// Spec is the per-symbol precision contract, fetched fresh for every call
// since exchange metadata can change.
type Spec struct {
	QuantityPrecision int32
	PricePrecision    int32
	MinNotional       decimal.Decimal
}

// QuantityStep returns the smallest quantity increment the spec allows.
func (s Spec) QuantityStep() decimal.Decimal {
	return decimal.New(1, -s.QuantityPrecision)
}

// Quantity rounds a quantity to the symbol's allowed decimal places.
func (s Spec) Quantity(qty decimal.Decimal, r Rounding) decimal.Decimal {
	return r.Round(qty, s.QuantityPrecision)
}

// Price rounds a price to the symbol's allowed decimal places.
func (s Spec) Price(p decimal.Decimal, r Rounding) decimal.Decimal {
	return r.Round(p, s.PricePrecision)
}

// BumpToNotional raises qty to the next quantity step whose notional value at
// refPrice clears the minimum. The returned bool reports whether a bump was
// applied. An already-sufficient quantity comes back unchanged, which keeps
// the operation idempotent.
func (s Spec) BumpToNotional(qty, refPrice decimal.Decimal, r Rounding) (decimal.Decimal, bool) {
	if qty.Mul(refPrice).GreaterThanOrEqual(s.MinNotional) {
		return qty, false
	}
	step := s.QuantityStep()
	minQty := s.MinNotional.Div(refPrice)
	// Next multiple of the step strictly above minQty, matching the
	// exchange's own floor((min/step)+1)*step adjustment.
	bumped := minQty.Div(step).Floor().Add(decimal.NewFromInt(1)).Mul(step)
	return r.Round(bumped, s.QuantityPrecision), true
}
