package strategy

import (
	"context"
	"fmt"

	"github.com/quantfield/futures-trader/internal/logging"
	"github.com/quantfield/futures-trader/internal/order"
	"github.com/quantfield/futures-trader/internal/validate"
)

// Limit places a single resting limit order.
type Limit struct {
	env Env
}

func NewLimit(env Env) *Limit {
	return &Limit{env: env.withDefaults()}
}

type LimitParams struct {
	Symbol   string
	Side     string
	Quantity string
	Price    string
}

func (l *Limit) Execute(ctx context.Context, p LimitParams) OrderResult {
	e := l.env
	logging.OrderAction(e.Log, logging.ActionOrderInitiated,
		fmt.Sprintf("limit %s order initiated", p.Side),
		logging.Symbol(p.Symbol), rawSide(p.Side), rawQuantity(p.Quantity))

	in, err := e.validateBase(ctx, p.Symbol, p.Side, p.Quantity)
	if err != nil {
		return OrderResult{Err: err.Error()}
	}
	price, err := validate.Price(p.Price)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.ErrorCode("INVALID_PRICE"))
		return OrderResult{Err: err.Error()}
	}

	current, err := e.Exchange.GetPrice(ctx, in.Symbol)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionOrderFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.Side(in.Side), logging.ErrorCode("EXECUTION_ERROR"))
		return OrderResult{Err: err.Error()}
	}

	spec := e.precisionSpec(ctx, in.Symbol)
	qty := spec.Quantity(in.Quantity, e.Rounding)
	priceR := spec.Price(price, e.Rounding)
	if bumped, ok := spec.BumpToNotional(qty, priceR, e.Rounding); ok {
		e.Log.Info("adjusted quantity to meet minimum notional requirement",
			logging.Symbol(in.Symbol), logging.Quantity(bumped))
		qty = bumped
	}
	if err := validate.Notional(qty, priceR); err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.ErrorCode("MIN_NOTIONAL"))
		return OrderResult{Err: err.Error()}
	}
	if err := validate.LimitPrice(priceR, current, in.Side); err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.Price(priceR), logging.ErrorCode("INVALID_PRICE"))
		return OrderResult{Err: err.Error()}
	}

	logging.OrderAction(e.Log, logging.ActionOrderPlacing,
		fmt.Sprintf("placing LIMIT %s order (value $%s, current $%s)",
			in.Side, qty.Mul(priceR).StringFixed(2), current),
		logging.Symbol(in.Symbol), logging.Side(in.Side), logging.Quantity(qty), logging.Price(priceR))

	rec, err := e.Exchange.PlaceOrder(ctx, order.Request{
		Symbol:        in.Symbol,
		Side:          in.Side,
		Type:          order.Limit,
		Quantity:      qty,
		Price:         priceR,
		TimeInForce:   "GTC",
		ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionOrderFailed,
			fmt.Sprintf("limit order failed: %v", err),
			logging.Symbol(in.Symbol), logging.Side(in.Side), logging.ErrorCode("EXECUTION_ERROR"))
		e.recordFailure(ctx, in.Symbol, in.Side, err)
		return OrderResult{Err: err.Error()}
	}

	e.logPlaced(rec, "limit order placed successfully")
	e.recordPlaced(ctx, rec)
	return OrderResult{Success: true, Order: rec}
}
