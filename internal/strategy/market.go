package strategy

import (
	"context"
	"fmt"

	"github.com/quantfield/futures-trader/internal/logging"
	"github.com/quantfield/futures-trader/internal/order"
	"github.com/quantfield/futures-trader/internal/validate"
)

// Market places a single immediate market order.
type Market struct {
	env Env
}

func NewMarket(env Env) *Market {
	return &Market{env: env.withDefaults()}
}

type MarketParams struct {
	Symbol   string
	Side     string
	Quantity string
}

func (m *Market) Execute(ctx context.Context, p MarketParams) OrderResult {
	e := m.env
	logging.OrderAction(e.Log, logging.ActionOrderInitiated,
		fmt.Sprintf("market %s order initiated", p.Side),
		logging.Symbol(p.Symbol), rawSide(p.Side), rawQuantity(p.Quantity))

	in, err := e.validateBase(ctx, p.Symbol, p.Side, p.Quantity)
	if err != nil {
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
	if bumped, ok := spec.BumpToNotional(qty, current, e.Rounding); ok {
		e.Log.Info("adjusted quantity to meet minimum notional requirement",
			logging.Symbol(in.Symbol), logging.Quantity(bumped))
		qty = bumped
	}
	if err := validate.Notional(qty, current); err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.ErrorCode("MIN_NOTIONAL"))
		return OrderResult{Err: err.Error()}
	}

	logging.OrderAction(e.Log, logging.ActionOrderPlacing,
		fmt.Sprintf("placing MARKET %s order (estimated value $%s)", in.Side, qty.Mul(current).StringFixed(2)),
		logging.Symbol(in.Symbol), logging.Side(in.Side), logging.Quantity(qty))

	rec, err := e.Exchange.PlaceOrder(ctx, order.Request{
		Symbol:        in.Symbol,
		Side:          in.Side,
		Type:          order.Market,
		Quantity:      qty,
		ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionOrderFailed,
			fmt.Sprintf("market order failed: %v", err),
			logging.Symbol(in.Symbol), logging.Side(in.Side), logging.ErrorCode("EXECUTION_ERROR"))
		e.recordFailure(ctx, in.Symbol, in.Side, err)
		return OrderResult{Err: err.Error()}
	}

	e.logPlaced(rec, "market order placed successfully")
	e.recordPlaced(ctx, rec)
	return OrderResult{Success: true, Order: rec}
}
