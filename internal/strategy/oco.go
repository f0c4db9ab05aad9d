package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfield/futures-trader/internal/exchange"
	"github.com/quantfield/futures-trader/internal/logging"
	"github.com/quantfield/futures-trader/internal/order"
	"github.com/quantfield/futures-trader/internal/validate"
)

// OCO places a take-profit limit order and a stop-loss order as a pair on
// the side opposite the entry. If the exchange rejects native stop-loss
// orders, a client-side monitor emulates the stop leg and cancels the
// take-profit when it fires.
type OCO struct {
	env Env
}

func NewOCO(env Env) *OCO {
	return &OCO{env: env.withDefaults()}
}

type OCOParams struct {
	Symbol     string
	Side       string
	Quantity   string
	TakeProfit string
	StopLoss   string
}

func (o *OCO) Execute(ctx context.Context, p OCOParams) OCOResult {
	e := o.env
	logging.OrderAction(e.Log, logging.ActionOrderInitiated,
		fmt.Sprintf("OCO %s order initiated", p.Side),
		logging.Symbol(p.Symbol), rawSide(p.Side), rawQuantity(p.Quantity))

	in, err := e.validateBase(ctx, p.Symbol, p.Side, p.Quantity)
	if err != nil {
		return OCOResult{Err: err.Error()}
	}
	tpPrice, err := validate.Price(p.TakeProfit)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.ErrorCode("INVALID_TP_PRICE"))
		return OCOResult{Err: err.Error()}
	}
	slPrice, err := validate.Price(p.StopLoss)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.ErrorCode("INVALID_SL_PRICE"))
		return OCOResult{Err: err.Error()}
	}

	current, err := e.Exchange.GetPrice(ctx, in.Symbol)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionOrderFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.Side(in.Side), logging.ErrorCode("EXECUTION_ERROR"))
		return OCOResult{Err: err.Error()}
	}

	// Price relationship checks before any order is placed.
	if in.Side == order.Buy {
		if tpPrice.LessThanOrEqual(current) {
			return OCOResult{Err: fmt.Sprintf(
				"take-profit price ($%s) must be above current price ($%s) for BUY orders", tpPrice, current)}
		}
		if slPrice.GreaterThanOrEqual(current) {
			return OCOResult{Err: fmt.Sprintf(
				"stop-loss price ($%s) must be below current price ($%s) for BUY orders", slPrice, current)}
		}
	} else {
		if tpPrice.GreaterThanOrEqual(current) {
			return OCOResult{Err: fmt.Sprintf(
				"take-profit price ($%s) must be below current price ($%s) for SELL orders", tpPrice, current)}
		}
		if slPrice.LessThanOrEqual(current) {
			return OCOResult{Err: fmt.Sprintf(
				"stop-loss price ($%s) must be above current price ($%s) for SELL orders", slPrice, current)}
		}
	}

	spec := e.precisionSpec(ctx, in.Symbol)
	qty := spec.Quantity(in.Quantity, e.Rounding)
	tpR := spec.Price(tpPrice, e.Rounding)
	slR := spec.Price(slPrice, e.Rounding)
	if bumped, ok := spec.BumpToNotional(qty, tpR, e.Rounding); ok {
		e.Log.Info("adjusted quantity to meet minimum notional requirement",
			logging.Symbol(in.Symbol), logging.Quantity(bumped))
		qty = bumped
	}
	if err := validate.Notional(qty, tpR); err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.ErrorCode("MIN_NOTIONAL"))
		return OCOResult{Err: err.Error()}
	}

	exitSide := in.Side.Opposite()
	logging.OrderAction(e.Log, logging.ActionOrderPlacing,
		fmt.Sprintf("placing OCO %s pair: TP @ $%s, SL @ $%s (current $%s)", in.Side, tpR, slR, current),
		logging.Symbol(in.Symbol), logging.Side(in.Side), logging.Quantity(qty))

	// Take-profit leg first. A failure here has nothing to unwind, so it
	// fails the whole operation immediately.
	tpRec, err := e.Exchange.PlaceOrder(ctx, order.Request{
		Symbol: in.Symbol, Side: exitSide, Type: order.Limit,
		Quantity: qty, Price: tpR,
		TimeInForce: "GTC", ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		msg := fmt.Sprintf("take-profit leg failed: %v", err)
		logging.OrderAction(e.Log, logging.ActionOrderFailed, msg,
			logging.Symbol(in.Symbol), logging.Side(exitSide), logging.ErrorCode("EXECUTION_ERROR"))
		e.recordFailure(ctx, in.Symbol, exitSide, err)
		return OCOResult{Err: msg}
	}
	e.logPlaced(tpRec, "take-profit order placed")
	e.recordPlaced(ctx, tpRec)

	slRec, err := e.Exchange.PlaceOrder(ctx, order.Request{
		Symbol: in.Symbol, Side: exitSide, Type: order.StopMarket,
		Quantity: qty, StopPrice: slR, ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		if exchange.IsUnsupportedOrderType(err) {
			logging.OrderAction(e.Log, logging.ActionOrderWarning,
				"native stop-loss orders not supported, monitoring stop-loss client-side",
				logging.Symbol(in.Symbol))
			return o.monitorStopLoss(ctx, in, exitSide, qty, tpRec, slR)
		}

		// Never leave an unpaired live TP order behind: cancel it
		// best-effort before reporting the failure.
		if cerr := e.Exchange.CancelOrder(ctx, in.Symbol, tpRec.OrderID); cerr != nil {
			e.Log.Warn("failed to cancel take-profit order after stop-loss failure",
				logging.Symbol(in.Symbol), logging.OrderID(tpRec.OrderID), logging.ErrorCode("CANCEL_FAILED"))
		} else {
			e.Log.Info("cancelled take-profit order after stop-loss failure",
				logging.Symbol(in.Symbol), logging.OrderID(tpRec.OrderID))
		}
		msg := fmt.Sprintf("stop-loss leg failed: %v", err)
		logging.OrderAction(e.Log, logging.ActionOrderFailed, msg,
			logging.Symbol(in.Symbol), logging.Side(exitSide), logging.ErrorCode("EXECUTION_ERROR"))
		e.recordFailure(ctx, in.Symbol, exitSide, err)
		return OCOResult{Err: msg}
	}
	e.logPlaced(slRec, "stop-loss order placed")
	e.recordPlaced(ctx, slRec)

	return OCOResult{
		Success: true, Outcome: OCOPlaced,
		Symbol: in.Symbol, Quantity: qty,
		TakeProfit: tpRec, StopLoss: &slRec,
	}
}

// monitorStopLoss polls the TP order status and the live price. The loop
// owns exactly one pending order (the TP leg) and cancels it before placing
// the closing market order when the stop-loss condition is met.
func (o *OCO) monitorStopLoss(ctx context.Context, in baseInput, exitSide order.Side, qty decimal.Decimal, tpRec order.Record, slPrice decimal.Decimal) OCOResult {
	e := o.env
	e.Log.Info("starting simulated stop-loss monitor",
		logging.Symbol(in.Symbol), logging.OrderID(tpRec.OrderID), logging.StopPrice(slPrice))

	ticker := time.NewTicker(e.PollInterval)
	defer ticker.Stop()

	for {
		status, err := e.Exchange.GetOrderStatus(ctx, in.Symbol, tpRec.OrderID)
		if err != nil {
			// Transient status failures keep the monitor alive; the
			// price check below still protects the position.
			e.Log.Warn("could not fetch take-profit order status",
				logging.Symbol(in.Symbol), logging.OrderID(tpRec.OrderID), logging.ErrorCode("STATUS_FAILED"))
		} else if status == order.StatusFilled {
			tpRec.Status = status
			e.Log.Info("take-profit order filled, OCO complete",
				logging.Symbol(in.Symbol), logging.OrderID(tpRec.OrderID))
			return OCOResult{
				Success: true, Simulated: true, Outcome: OCOTakeProfit,
				Symbol: in.Symbol, Quantity: qty, TakeProfit: tpRec,
			}
		} else if status.Dead() {
			tpRec.Status = status
			msg := fmt.Sprintf("take-profit order %d is %s, stop-loss monitor stopped", tpRec.OrderID, status)
			e.Log.Warn(msg, logging.Symbol(in.Symbol))
			return OCOResult{Err: msg, Simulated: true, TakeProfit: tpRec}
		}

		price, err := e.Exchange.GetPrice(ctx, in.Symbol)
		if err != nil {
			e.Log.Warn("could not fetch price during stop-loss monitoring",
				logging.Symbol(in.Symbol), logging.ErrorCode("PRICE_FAILED"))
		} else {
			triggered := false
			if in.Side == order.Buy {
				triggered = price.LessThanOrEqual(slPrice)
			} else {
				triggered = price.GreaterThanOrEqual(slPrice)
			}
			if triggered {
				e.Log.Info(fmt.Sprintf("stop-loss triggered at $%s, closing position", price),
					logging.Symbol(in.Symbol), logging.StopPrice(slPrice))
				if cerr := e.Exchange.CancelOrder(ctx, in.Symbol, tpRec.OrderID); cerr != nil {
					e.Log.Warn("failed to cancel take-profit order before closing",
						logging.Symbol(in.Symbol), logging.OrderID(tpRec.OrderID), logging.ErrorCode("CANCEL_FAILED"))
				}
				closing, err := e.Exchange.PlaceOrder(ctx, order.Request{
					Symbol: in.Symbol, Side: exitSide, Type: order.Market,
					Quantity: qty, ClientOrderID: newClientOrderID(),
				})
				if err != nil {
					msg := fmt.Sprintf("stop-loss triggered but closing market order failed: %v", err)
					logging.OrderAction(e.Log, logging.ActionOrderFailed, msg,
						logging.Symbol(in.Symbol), logging.Side(exitSide), logging.ErrorCode("EXECUTION_ERROR"))
					e.recordFailure(ctx, in.Symbol, exitSide, err)
					return OCOResult{Err: msg, Simulated: true, TakeProfit: tpRec}
				}
				e.logPlaced(closing, "stop-loss market order placed")
				e.recordPlaced(ctx, closing)
				return OCOResult{
					Success: true, Simulated: true, Outcome: OCOStopTrigger,
					Symbol: in.Symbol, Quantity: qty,
					TakeProfit: tpRec, Closing: &closing,
				}
			}
		}

		select {
		case <-ctx.Done():
			msg := fmt.Sprintf(
				"cancelled by user: take-profit order %d is still live and must be cancelled manually", tpRec.OrderID)
			e.Log.Warn(msg, logging.Symbol(in.Symbol), logging.OrderID(tpRec.OrderID))
			return OCOResult{Err: msg, Simulated: true, TakeProfit: tpRec}
		case <-ticker.C:
		}
	}
}
