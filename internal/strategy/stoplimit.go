package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfield/futures-trader/internal/exchange"
	"github.com/quantfield/futures-trader/internal/logging"
	"github.com/quantfield/futures-trader/internal/order"
	"github.com/quantfield/futures-trader/internal/validate"
)

// StopLimit triggers a limit order when a stop price is crossed. The
// exchange's native stop types are tried first; if the account rejects algo
// orders outright, a client-side polling monitor emulates the trigger.
type StopLimit struct {
	env Env
}

func NewStopLimit(env Env) *StopLimit {
	return &StopLimit{env: env.withDefaults()}
}

type StopLimitParams struct {
	Symbol     string
	Side       string
	Quantity   string
	LimitPrice string
	StopPrice  string
}

// stopAttempt is one entry of the ordered fallback chain of order-type
// encodings for "stop then limit" semantics.
type stopAttempt struct {
	typ   order.Type
	build func() order.Request
}

func (s *StopLimit) Execute(ctx context.Context, p StopLimitParams) StopLimitResult {
	e := s.env
	logging.OrderAction(e.Log, logging.ActionOrderInitiated,
		fmt.Sprintf("stop-limit %s order initiated", p.Side),
		logging.Symbol(p.Symbol), rawSide(p.Side), rawQuantity(p.Quantity))

	in, err := e.validateBase(ctx, p.Symbol, p.Side, p.Quantity)
	if err != nil {
		return StopLimitResult{Err: err.Error()}
	}
	limitPrice, err := validate.Price(p.LimitPrice)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.ErrorCode("INVALID_LIMIT_PRICE"))
		return StopLimitResult{Err: err.Error()}
	}
	stopPrice, err := validate.Price(p.StopPrice)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.ErrorCode("INVALID_STOP_PRICE"))
		return StopLimitResult{Err: err.Error()}
	}

	current, err := e.Exchange.GetPrice(ctx, in.Symbol)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionOrderFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.Side(in.Side), logging.ErrorCode("EXECUTION_ERROR"))
		return StopLimitResult{Err: err.Error()}
	}

	// Price relationship checks, before any order attempt.
	if in.Side == order.Buy {
		if stopPrice.LessThanOrEqual(current) {
			msg := fmt.Sprintf("stop price ($%s) must be above current price ($%s) for BUY orders", stopPrice, current)
			return StopLimitResult{Err: msg}
		}
		if limitPrice.LessThan(stopPrice) {
			msg := fmt.Sprintf("limit price ($%s) must be >= stop price ($%s) for BUY orders", limitPrice, stopPrice)
			return StopLimitResult{Err: msg}
		}
	} else {
		if stopPrice.GreaterThanOrEqual(current) {
			msg := fmt.Sprintf("stop price ($%s) must be below current price ($%s) for SELL orders", stopPrice, current)
			return StopLimitResult{Err: msg}
		}
		if limitPrice.GreaterThan(stopPrice) {
			msg := fmt.Sprintf("limit price ($%s) must be <= stop price ($%s) for SELL orders", limitPrice, stopPrice)
			return StopLimitResult{Err: msg}
		}
	}

	spec := e.precisionSpec(ctx, in.Symbol)
	qty := spec.Quantity(in.Quantity, e.Rounding)
	limitR := spec.Price(limitPrice, e.Rounding)
	stopR := spec.Price(stopPrice, e.Rounding)
	if bumped, ok := spec.BumpToNotional(qty, limitR, e.Rounding); ok {
		e.Log.Info("adjusted quantity to meet minimum notional requirement",
			logging.Symbol(in.Symbol), logging.Quantity(bumped))
		qty = bumped
	}
	if err := validate.Notional(qty, limitR); err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.ErrorCode("MIN_NOTIONAL"))
		return StopLimitResult{Err: err.Error()}
	}

	logging.OrderAction(e.Log, logging.ActionOrderPlacing,
		fmt.Sprintf("placing STOP-LIMIT %s order (value $%s, current $%s)",
			in.Side, qty.Mul(limitR).StringFixed(2), current),
		logging.Symbol(in.Symbol), logging.Side(in.Side), logging.Quantity(qty),
		logging.Price(limitR), logging.StopPrice(stopR))

	attempts := []stopAttempt{
		{typ: order.Stop, build: func() order.Request {
			return order.Request{
				Symbol: in.Symbol, Side: in.Side, Type: order.Stop,
				Quantity: qty, Price: limitR, StopPrice: stopR,
				TimeInForce: "GTC", ClientOrderID: newClientOrderID(),
			}
		}},
		{typ: order.StopMarket, build: func() order.Request {
			return order.Request{
				Symbol: in.Symbol, Side: in.Side, Type: order.StopMarket,
				Quantity: qty, StopPrice: stopR, ClientOrderID: newClientOrderID(),
			}
		}},
		{typ: order.StopLossLimit, build: func() order.Request {
			return order.Request{
				Symbol: in.Symbol, Side: in.Side, Type: order.StopLossLimit,
				Quantity: qty, Price: limitR, StopPrice: stopR,
				TimeInForce: "GTC", ClientOrderID: newClientOrderID(),
			}
		}},
	}

	var failures []string
	for i, at := range attempts {
		rec, err := e.Exchange.PlaceOrder(ctx, at.build())
		if err == nil {
			if at.typ != order.Stop {
				logging.OrderAction(e.Log, logging.ActionOrderWarning,
					fmt.Sprintf("using %s instead of STOP", at.typ), logging.Symbol(in.Symbol))
			}
			e.logPlaced(rec, "stop-limit order placed successfully")
			e.recordPlaced(ctx, rec)
			return StopLimitResult{
				Success: true, Status: StopLimitPlaced, Order: rec,
				Symbol: in.Symbol, Side: in.Side, Quantity: qty, Limit: limitR, Stop: stopR,
			}
		}
		if exchange.IsUnsupportedOrderType(err) {
			logging.OrderAction(e.Log, logging.ActionOrderWarning,
				"native stop orders not supported for this account/symbol, switching to simulated stop-limit mode",
				logging.Symbol(in.Symbol))
			return s.simulate(ctx, in, qty, limitR, stopR)
		}
		if !exchange.IsTypeRejection(err) {
			logging.OrderAction(e.Log, logging.ActionOrderFailed,
				fmt.Sprintf("stop-limit order failed: %v", err),
				logging.Symbol(in.Symbol), logging.Side(in.Side), logging.ErrorCode("EXECUTION_ERROR"))
			e.recordFailure(ctx, in.Symbol, in.Side, err)
			return StopLimitResult{Err: err.Error()}
		}
		failures = append(failures, fmt.Sprintf("%d. %s: %v", i+1, at.typ, err))
		if i < len(attempts)-1 {
			logging.OrderAction(e.Log, logging.ActionOrderWarning,
				fmt.Sprintf("%s attempt failed (%v), trying %s", at.typ, err, attempts[i+1].typ),
				logging.Symbol(in.Symbol))
		}
	}

	msg := "all stop order types failed:\n" + strings.Join(failures, "\n")
	logging.OrderAction(e.Log, logging.ActionOrderFailed, msg,
		logging.Symbol(in.Symbol), logging.Side(in.Side), logging.ErrorCode("EXECUTION_ERROR"))
	return StopLimitResult{Err: msg}
}

// simulate polls the price until the stop condition is met, then places a
// real limit order. A cancellation terminates without placing anything.
func (s *StopLimit) simulate(ctx context.Context, in baseInput, qty, limitPrice, stopPrice decimal.Decimal) StopLimitResult {
	e := s.env
	e.Log.Info("starting simulated stop-limit monitor",
		logging.Symbol(in.Symbol), logging.Side(in.Side),
		logging.StopPrice(stopPrice), logging.Price(limitPrice))

	ticker := time.NewTicker(e.PollInterval)
	defer ticker.Stop()

	for {
		price, err := e.Exchange.GetPrice(ctx, in.Symbol)
		if err != nil {
			msg := fmt.Sprintf("simulated stop-limit failed: %v", err)
			logging.OrderAction(e.Log, logging.ActionOrderFailed, msg,
				logging.Symbol(in.Symbol), logging.Side(in.Side), logging.ErrorCode("EXECUTION_ERROR"))
			return StopLimitResult{Err: msg, Simulated: true}
		}

		triggered := false
		if in.Side == order.Buy {
			triggered = price.GreaterThanOrEqual(stopPrice)
		} else {
			triggered = price.LessThanOrEqual(stopPrice)
		}

		if triggered {
			e.Log.Info(fmt.Sprintf("stop triggered: price reached $%s, placing LIMIT %s order at $%s",
				price, in.Side, limitPrice), logging.Symbol(in.Symbol))
			rec, err := e.Exchange.PlaceOrder(ctx, order.Request{
				Symbol: in.Symbol, Side: in.Side, Type: order.Limit,
				Quantity: qty, Price: limitPrice,
				TimeInForce: "GTC", ClientOrderID: newClientOrderID(),
			})
			if err != nil {
				msg := fmt.Sprintf("stop triggered but limit order failed: %v", err)
				logging.OrderAction(e.Log, logging.ActionOrderFailed, msg,
					logging.Symbol(in.Symbol), logging.Side(in.Side), logging.ErrorCode("EXECUTION_ERROR"))
				e.recordFailure(ctx, in.Symbol, in.Side, err)
				return StopLimitResult{Err: msg, Simulated: true}
			}
			e.logPlaced(rec, "simulated stop-limit executed, limit order placed")
			e.recordPlaced(ctx, rec)
			return StopLimitResult{
				Success: true, Simulated: true, Status: StopLimitTriggered, Order: rec,
				Symbol: in.Symbol, Side: in.Side, Quantity: qty, Limit: limitPrice, Stop: stopPrice,
			}
		}

		select {
		case <-ctx.Done():
			e.Log.Warn("simulated stop-limit order cancelled by user, no order was placed",
				logging.Symbol(in.Symbol))
			return StopLimitResult{Err: "cancelled by user", Simulated: true, Status: StopLimitCancelled}
		case <-ticker.C:
		}
	}
}
