package strategy

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantfield/futures-trader/internal/logging"
	"github.com/quantfield/futures-trader/internal/order"
	"github.com/quantfield/futures-trader/internal/validate"
)

// Grid places evenly spaced resting limit orders across a price range:
// buys below the current price, sells above it. The level landing exactly
// on the current price is skipped.
type Grid struct {
	env Env
}

func NewGrid(env Env) *Grid {
	return &Grid{env: env.withDefaults()}
}

type GridParams struct {
	Symbol string
	Lower  string
	Upper  string
	// Levels is the number of price levels spread across [Lower, Upper],
	// endpoints included.
	Levels int
	// Quantity is the order size per level.
	Quantity string
}

func (g *Grid) Execute(ctx context.Context, p GridParams) GridResult {
	e := g.env
	logging.OrderAction(e.Log, logging.ActionOrderInitiated,
		fmt.Sprintf("grid order initiated: %d levels", p.Levels),
		logging.Symbol(p.Symbol), rawQuantity(p.Quantity))

	symbol, warn, err := e.checkSymbol(ctx, p.Symbol)
	if err != nil {
		return GridResult{Err: err.Error()}
	}
	if warn != "" {
		e.Log.Warn(warn, logging.Symbol(symbol))
	}
	qty, warn, err := validate.Quantity(p.Quantity)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(symbol), logging.ErrorCode("INVALID_QUANTITY"))
		return GridResult{Err: err.Error()}
	}
	if warn != "" {
		e.Log.Warn(warn, logging.Symbol(symbol))
	}
	lower, err := validate.Price(p.Lower)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(symbol), logging.ErrorCode("INVALID_LOWER_PRICE"))
		return GridResult{Err: err.Error()}
	}
	upper, err := validate.Price(p.Upper)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(symbol), logging.ErrorCode("INVALID_UPPER_PRICE"))
		return GridResult{Err: err.Error()}
	}
	if lower.GreaterThanOrEqual(upper) {
		msg := fmt.Sprintf("lower price ($%s) must be below upper price ($%s)", lower, upper)
		logging.OrderAction(e.Log, logging.ActionValidationFailed, msg,
			logging.Symbol(symbol), logging.ErrorCode("INVALID_RANGE"))
		return GridResult{Err: msg}
	}
	if p.Levels < 2 {
		msg := "grid needs at least 2 levels"
		logging.OrderAction(e.Log, logging.ActionValidationFailed, msg,
			logging.Symbol(symbol), logging.ErrorCode("INVALID_LEVELS"))
		return GridResult{Err: msg}
	}

	current, err := e.Exchange.GetPrice(ctx, symbol)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionOrderFailed, err.Error(),
			logging.Symbol(symbol), logging.ErrorCode("EXECUTION_ERROR"))
		return GridResult{Err: err.Error()}
	}
	if current.LessThan(lower) || current.GreaterThan(upper) {
		// A one-sided grid is unusual but valid, so this only warns.
		e.Log.Warn(fmt.Sprintf("current price ($%s) is outside the grid range [$%s, $%s], all orders will be on one side",
			current, lower, upper), logging.Symbol(symbol))
	}

	spec := e.precisionSpec(ctx, symbol)
	qty = spec.Quantity(qty, e.Rounding)

	step := upper.Sub(lower).Div(decimal.NewFromInt(int64(p.Levels - 1)))
	prices := make([]decimal.Decimal, p.Levels)
	for i := range prices {
		prices[i] = spec.Price(lower.Add(step.Mul(decimal.NewFromInt(int64(i)))), e.Rounding)
	}

	// Minimum notional is checked against the lowest level, the worst
	// case for every level above it.
	if bumped, ok := spec.BumpToNotional(qty, prices[0], e.Rounding); ok {
		e.Log.Info("adjusted quantity per level to meet minimum notional requirement",
			logging.Symbol(symbol), logging.Quantity(bumped))
		qty = bumped
	}
	if err := validate.Notional(qty, prices[0]); err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(symbol), logging.ErrorCode("MIN_NOTIONAL"))
		return GridResult{Err: err.Error()}
	}

	res := GridResult{
		Symbol: symbol, Lower: lower, Upper: upper,
		Levels: p.Levels, QuantityPerLevel: qty, CurrentPrice: current,
	}
	logging.OrderAction(e.Log, logging.ActionOrderPlacing,
		fmt.Sprintf("placing grid: %d levels from $%s to $%s, %s per level (current $%s)",
			p.Levels, lower, upper, qty, current),
		logging.Symbol(symbol), logging.Quantity(qty))

	for i, price := range prices {
		if price.Equal(current) {
			e.Log.Info(fmt.Sprintf("skipping level %d at $%s: equals current price", i+1, price),
				logging.Symbol(symbol))
			continue
		}
		side := order.Buy
		if price.GreaterThan(current) {
			side = order.Sell
		}

		rec, err := e.Exchange.PlaceOrder(ctx, order.Request{
			Symbol: symbol, Side: side, Type: order.Limit,
			Quantity: qty, Price: price,
			TimeInForce: "GTC", ClientOrderID: newClientOrderID(),
		})
		if err != nil {
			// One failed level does not tear down the rest of the grid.
			e.Log.Warn(fmt.Sprintf("level %d at $%s failed: %v", i+1, price, err),
				logging.Symbol(symbol), logging.Side(side), logging.ErrorCode("LEVEL_FAILED"))
			e.recordFailure(ctx, symbol, side, err)
		} else {
			e.logPlaced(rec, fmt.Sprintf("grid level %d placed", i+1))
			e.recordPlaced(ctx, rec)
			res.Placed = append(res.Placed, GridLevel{Level: i + 1, Price: price, Order: rec})
			if side == order.Buy {
				res.BuyOrders++
			} else {
				res.SellOrders++
			}
		}

		if i < len(prices)-1 {
			// Spacing placements avoids tripping exchange rate limits.
			if err := e.Sleep(ctx, e.PlacementDelay); err != nil {
				res.Err = "cancelled by user"
				e.Log.Warn(fmt.Sprintf("grid cancelled after %d orders", len(res.Placed)),
					logging.Symbol(symbol))
				return res
			}
		}
	}

	if len(res.Placed) == 0 {
		res.Err = "no grid orders could be placed"
		logging.OrderAction(e.Log, logging.ActionOrderFailed, res.Err,
			logging.Symbol(symbol), logging.ErrorCode("EXECUTION_ERROR"))
		return res
	}
	res.Success = true
	e.Log.Info(fmt.Sprintf("grid complete: %d orders placed (%d buy, %d sell)",
		len(res.Placed), res.BuyOrders, res.SellOrders), logging.Symbol(symbol))
	return res
}
