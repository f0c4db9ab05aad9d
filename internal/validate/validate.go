// Package validate holds the pure input validators shared by every order
// strategy. No I/O happens here: advisory conditions are returned as warning
// strings for the caller to log, hard rejections as errors.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quantfield/futures-trader/internal/order"
)

var (
	// MinNotional is the exchange-wide minimum order value in USDT.
	MinNotional = decimal.NewFromInt(100)

	// MaxPrice and MaxQuantity are sanity thresholds, not exchange limits.
	MaxPrice    = decimal.NewFromInt(1_000_000_000)
	MaxQuantity = decimal.NewFromInt(1_000_000)

	minSaneQuantity = decimal.RequireFromString("0.00000001")

	symbolPattern = regexp.MustCompile(`^[A-Z]{2,10}(USDT|BUSD|BTC|ETH)$`)
)

// Symbol checks basic symbol shape and returns the uppercased symbol.
// A pattern mismatch is advisory only: some listed symbols do not follow the
// common quote-asset suffixes, so it comes back as a warning, not an error.
func Symbol(s string) (sym string, warn string, err error) {
	if s == "" {
		return "", "", fmt.Errorf("symbol cannot be empty")
	}
	if strings.ContainsAny(s, " \t") {
		return "", "", fmt.Errorf("symbol contains spaces: %q", s)
	}
	upper := strings.ToUpper(s)
	if len(upper) < 6 || len(upper) > 20 {
		return "", "", fmt.Errorf("symbol length invalid: %s (must be 6-20 characters)", s)
	}
	if !symbolPattern.MatchString(upper) {
		warn = fmt.Sprintf("symbol format may be unusual: %s", upper)
	}
	return upper, warn, nil
}

// Side parses and checks an order side.
func Side(s string) (order.Side, error) {
	return order.ParseSide(s)
}

// Quantity parses a quantity string as an exact decimal. Quantities below
// 1e-8 are suspicious but not rejected; the warning is returned for logging.
func Quantity(s string) (qty decimal.Decimal, warn string, err error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return decimal.Decimal{}, "", fmt.Errorf("quantity cannot be empty")
	}
	qty, err = decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, "", fmt.Errorf("invalid quantity format: %q", s)
	}
	if qty.Sign() <= 0 {
		return decimal.Decimal{}, "", fmt.Errorf("quantity must be positive: %s", s)
	}
	if qty.GreaterThan(MaxQuantity) {
		return decimal.Decimal{}, "", fmt.Errorf("quantity too large: %s (max: %s)", s, MaxQuantity)
	}
	if qty.LessThan(minSaneQuantity) {
		warn = fmt.Sprintf("very small quantity: %s", s)
	}
	return qty, warn, nil
}

// Price parses a price string as an exact decimal.
func Price(s string) (decimal.Decimal, error) {
	return PriceBetween(s, nil, nil)
}

// PriceBetween parses a price and additionally enforces optional bounds.
func PriceBetween(s string, min, max *decimal.Decimal) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return decimal.Decimal{}, fmt.Errorf("price cannot be empty")
	}
	p, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid price format: %q", s)
	}
	if p.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("price must be positive: %s", s)
	}
	if p.GreaterThan(MaxPrice) {
		return decimal.Decimal{}, fmt.Errorf("price too large: %s (max: $%s)", s, MaxPrice)
	}
	if min != nil && p.LessThan(*min) {
		return decimal.Decimal{}, fmt.Errorf("price below minimum: $%s < $%s", p, min)
	}
	if max != nil && p.GreaterThan(*max) {
		return decimal.Decimal{}, fmt.Errorf("price above maximum: $%s > $%s", p, max)
	}
	return p, nil
}

// Notional rejects orders whose value is below the exchange minimum. The
// error names the minimum quantity that would satisfy it at the given price.
func Notional(qty, price decimal.Decimal) error {
	notional := qty.Mul(price)
	if notional.LessThan(MinNotional) {
		minQty := MinNotional.Div(price)
		return fmt.Errorf(
			"order value ($%s) is below the exchange minimum of $%s; minimum quantity for this price: %s",
			notional.StringFixed(2), MinNotional, minQty.StringFixed(6))
	}
	return nil
}

// LimitPrice is a fat-finger guard: a resting BUY more than 10% above, or a
// SELL more than 10% below, the current price is almost certainly a mistake.
// Not exchange-enforced.
func LimitPrice(price, current decimal.Decimal, side order.Side) error {
	switch side {
	case order.Buy:
		ceiling := current.Mul(decimal.RequireFromString("1.1"))
		if price.GreaterThan(ceiling) {
			return fmt.Errorf(
				"limit buy price ($%s) is more than 10%% above current price ($%s); this seems unusual",
				price, current)
		}
	case order.Sell:
		floor := current.Mul(decimal.RequireFromString("0.9"))
		if price.LessThan(floor) {
			return fmt.Errorf(
				"limit sell price ($%s) is more than 10%% below current price ($%s); this seems unusual",
				price, current)
		}
	}
	return nil
}
