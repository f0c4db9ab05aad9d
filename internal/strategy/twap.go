package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfield/futures-trader/internal/logging"
	"github.com/quantfield/futures-trader/internal/order"
	"github.com/quantfield/futures-trader/internal/validate"
)

// TWAP splits a large order into equal market-order slices spread over a
// fixed duration, averaging the execution price over time.
type TWAP struct {
	env Env
}

func NewTWAP(env Env) *TWAP {
	return &TWAP{env: env.withDefaults()}
}

type TWAPParams struct {
	Symbol   string
	Side     string
	Quantity string
	// Duration is the total execution window.
	Duration time.Duration
	// Slices is the number of market orders to spread over the window.
	// Zero picks one slice per minute capped at 60.
	Slices int
}

// defaultSlices picks one slice per minute of the window, capped so short
// intervals between slices stay meaningful.
func defaultSlices(d time.Duration) int {
	n := int(d / time.Minute)
	if n < 1 {
		n = 1
	}
	if n > 60 {
		n = 60
	}
	return n
}

func (t *TWAP) Execute(ctx context.Context, p TWAPParams) TWAPResult {
	e := t.env
	logging.OrderAction(e.Log, logging.ActionOrderInitiated,
		fmt.Sprintf("TWAP %s order initiated over %s", p.Side, p.Duration),
		logging.Symbol(p.Symbol), rawSide(p.Side), rawQuantity(p.Quantity))

	in, err := e.validateBase(ctx, p.Symbol, p.Side, p.Quantity)
	if err != nil {
		return TWAPResult{Err: err.Error()}
	}
	if p.Duration <= 0 {
		msg := "duration must be positive"
		logging.OrderAction(e.Log, logging.ActionValidationFailed, msg,
			logging.Symbol(in.Symbol), logging.ErrorCode("INVALID_DURATION"))
		return TWAPResult{Err: msg}
	}
	slices := p.Slices
	if slices == 0 {
		slices = defaultSlices(p.Duration)
	}
	if slices < 1 {
		msg := "slice count must be positive"
		logging.OrderAction(e.Log, logging.ActionValidationFailed, msg,
			logging.Symbol(in.Symbol), logging.ErrorCode("INVALID_SLICES"))
		return TWAPResult{Err: msg}
	}

	current, err := e.Exchange.GetPrice(ctx, in.Symbol)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionOrderFailed, err.Error(),
			logging.Symbol(in.Symbol), logging.Side(in.Side), logging.ErrorCode("EXECUTION_ERROR"))
		return TWAPResult{Err: err.Error()}
	}

	spec := e.precisionSpec(ctx, in.Symbol)
	total := spec.Quantity(in.Quantity, e.Rounding)
	sliceQty := spec.Quantity(total.Div(decimal.NewFromInt(int64(slices))), e.Rounding)

	// Two-stage correction: first shrink the slice count so each slice
	// clears the minimum notional, then step-bump the quantity if
	// rounding still leaves it short.
	if sliceQty.Mul(current).LessThan(validate.MinNotional) {
		minSliceQty := validate.MinNotional.Div(current)
		adjusted := int(total.Div(minSliceQty).IntPart())
		if adjusted < 1 {
			adjusted = 1
		}
		slices = adjusted
		sliceQty = spec.Quantity(total.Div(decimal.NewFromInt(int64(slices))), e.Rounding)
		if bumped, ok := spec.BumpToNotional(sliceQty, current, e.Rounding); ok {
			sliceQty = bumped
			n := int(total.Div(sliceQty).IntPart())
			if n < 1 {
				// The whole order cannot fund even one minimum-notional slice.
				msg := fmt.Sprintf("slice too small: %v", validate.Notional(total, current))
				logging.OrderAction(e.Log, logging.ActionValidationFailed, msg,
					logging.Symbol(in.Symbol), logging.ErrorCode("MIN_NOTIONAL"))
				return TWAPResult{Err: msg}
			}
			slices = n
		}
		e.Log.Info(fmt.Sprintf("adjusted to %d slices of %s to meet minimum notional per slice", slices, sliceQty),
			logging.Symbol(in.Symbol), logging.Quantity(sliceQty))
	}
	if err := validate.Notional(sliceQty, current); err != nil {
		msg := fmt.Sprintf("slice too small: %v", err)
		logging.OrderAction(e.Log, logging.ActionValidationFailed, msg,
			logging.Symbol(in.Symbol), logging.ErrorCode("MIN_NOTIONAL"))
		return TWAPResult{Err: msg}
	}

	interval := p.Duration / time.Duration(slices)
	logging.OrderAction(e.Log, logging.ActionOrderPlacing,
		fmt.Sprintf("TWAP %s: %d slices of %s every %s", in.Side, slices, sliceQty, interval),
		logging.Symbol(in.Symbol), logging.Side(in.Side), logging.Quantity(total))

	start := e.Now()
	deadline := start.Add(p.Duration)
	executed := decimal.Zero
	notional := decimal.Zero
	res := TWAPResult{Symbol: in.Symbol, Side: in.Side, Requested: total}

	for i := 0; i < slices; i++ {
		remaining := total.Sub(executed)
		if !remaining.IsPositive() {
			break
		}
		qty := sliceQty
		last := i == slices-1
		if !last && i > 0 && e.Now().After(deadline) {
			// Deadline catch-up: fold everything left into one final
			// order instead of dribbling out late slices.
			e.Log.Warn(fmt.Sprintf("TWAP past its deadline at slice %d/%d, executing remaining quantity in one order", i+1, slices),
				logging.Symbol(in.Symbol))
			last = true
		}
		// The last slice and any rounding leftovers never exceed the
		// requested total.
		if last || qty.GreaterThan(remaining) {
			qty = spec.Quantity(remaining, e.Rounding)
			if !qty.IsPositive() {
				break
			}
		}

		rec, err := e.Exchange.PlaceOrder(ctx, order.Request{
			Symbol: in.Symbol, Side: in.Side, Type: order.Market,
			Quantity: qty, ClientOrderID: newClientOrderID(),
		})
		if err != nil {
			// A failed slice is skipped, not fatal; the remaining
			// schedule still runs.
			e.Log.Warn(fmt.Sprintf("slice %d/%d failed: %v", i+1, slices, err),
				logging.Symbol(in.Symbol), logging.ErrorCode("SLICE_FAILED"))
			e.recordFailure(ctx, in.Symbol, in.Side, err)
		} else {
			e.logPlaced(rec, fmt.Sprintf("slice %d/%d placed", i+1, slices))
			e.recordPlaced(ctx, rec)
			res.Orders = append(res.Orders, rec)
			executed = executed.Add(qty)
			if rec.AvgPrice.IsPositive() {
				notional = notional.Add(rec.AvgPrice.Mul(qty))
			} else {
				notional = notional.Add(current.Mul(qty))
			}
		}

		if last {
			break
		}
		// The next slice fires at its scheduled slot, or immediately if
		// that slot already passed.
		next := start.Add(time.Duration(i+1) * interval)
		if wait := next.Sub(e.Now()); wait > 0 {
			if err := e.Sleep(ctx, wait); err != nil {
				res.Err = "cancelled by user"
				res.Executed = executed
				res.Slices = len(res.Orders)
				if executed.IsPositive() {
					res.AveragePrice = notional.Div(executed)
				}
				e.Log.Warn(fmt.Sprintf("TWAP cancelled after %d of %d slices", len(res.Orders), slices),
					logging.Symbol(in.Symbol))
				return res
			}
		}
	}

	res.Executed = executed
	res.Slices = len(res.Orders)
	if executed.IsPositive() {
		res.AveragePrice = notional.Div(executed)
	}
	if len(res.Orders) == 0 {
		res.Err = "all slices failed"
		logging.OrderAction(e.Log, logging.ActionOrderFailed, res.Err,
			logging.Symbol(in.Symbol), logging.Side(in.Side), logging.ErrorCode("EXECUTION_ERROR"))
		return res
	}
	res.Success = true
	e.Log.Info(fmt.Sprintf("TWAP complete: executed %s of %s across %d slices at average $%s",
		executed, total, res.Slices, res.AveragePrice),
		logging.Symbol(in.Symbol), logging.Side(in.Side))
	return res
}
