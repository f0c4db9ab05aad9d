// Package strategy implements the order execution strategies: plain market
// and limit placement plus the four advanced flows (stop-limit, OCO, TWAP,
// grid). Every strategy follows the same pipeline: validate inputs, read the
// current price, normalize to the symbol's precision, then place one or more
// orders through the exchange gateway.
package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfield/futures-trader/internal/exchange"
	"github.com/quantfield/futures-trader/internal/journal"
	"github.com/quantfield/futures-trader/internal/logging"
	"github.com/quantfield/futures-trader/internal/normalize"
	"github.com/quantfield/futures-trader/internal/order"
	"github.com/quantfield/futures-trader/internal/validate"
)

// Env carries the collaborators shared by all strategies. Zero values get
// sensible defaults, so tests can populate only what they script.
type Env struct {
	Exchange exchange.Exchange
	Log      *zap.Logger
	Journal  journal.Journal
	Rounding normalize.Rounding

	// PollInterval paces the simulated stop-limit and OCO monitors;
	// PlacementDelay spaces grid placements to stay under rate limits.
	PollInterval   time.Duration
	PlacementDelay time.Duration

	// Now and Sleep exist so the TWAP schedule is testable without real
	// waiting.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (e Env) withDefaults() Env {
	if e.Log == nil {
		e.Log = zap.NewNop()
	}
	if e.Journal == nil {
		e.Journal = journal.NewMemory()
	}
	if e.PollInterval <= 0 {
		e.PollInterval = 5 * time.Second
	}
	if e.PlacementDelay <= 0 {
		e.PlacementDelay = 100 * time.Millisecond
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Sleep == nil {
		e.Sleep = sleepCtx
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// baseInput is the validated symbol/side/quantity triple every strategy
// starts from.
type baseInput struct {
	Symbol   string
	Side     order.Side
	Quantity decimal.Decimal
}

// validateBase runs the shared input validators, logging rejections and
// advisory warnings.
func (e Env) validateBase(ctx context.Context, symbol, side, quantity string) (baseInput, error) {
	sym, warn, err := e.checkSymbol(ctx, symbol)
	if err != nil {
		return baseInput{}, err
	}
	if warn != "" {
		e.Log.Warn(warn, logging.Symbol(sym))
	}

	sd, err := validate.Side(side)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(sym), logging.ErrorCode("INVALID_SIDE"))
		return baseInput{}, err
	}

	qty, warn, err := validate.Quantity(quantity)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(sym), logging.ErrorCode("INVALID_QUANTITY"))
		return baseInput{}, err
	}
	if warn != "" {
		e.Log.Warn(warn, logging.Symbol(sym))
	}

	return baseInput{Symbol: sym, Side: sd, Quantity: qty}, nil
}

// checkSymbol validates symbol shape. When the shape looks unusual, the
// exchange listing is consulted so a typo fails here instead of as an
// opaque placement error later.
func (e Env) checkSymbol(ctx context.Context, symbol string) (string, string, error) {
	sym, warn, err := validate.Symbol(symbol)
	if err != nil {
		logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
			logging.Symbol(symbol), logging.ErrorCode("INVALID_SYMBOL"))
		return "", "", err
	}
	if warn != "" {
		if listed, lerr := e.Exchange.SymbolExists(ctx, sym); lerr == nil && !listed {
			err = fmt.Errorf("symbol %s is not listed on the exchange", sym)
			logging.OrderAction(e.Log, logging.ActionValidationFailed, err.Error(),
				logging.Symbol(sym), logging.ErrorCode("INVALID_SYMBOL"))
			return "", "", err
		}
	}
	return sym, warn, nil
}

// precisionSpec fetches the symbol's precision metadata. Fetched fresh per
// call: exchange metadata can change between invocations.
func (e Env) precisionSpec(ctx context.Context, symbol string) normalize.Spec {
	return normalize.Spec{
		QuantityPrecision: e.Exchange.GetQuantityPrecision(ctx, symbol),
		PricePrecision:    e.Exchange.GetPricePrecision(ctx, symbol),
		MinNotional:       validate.MinNotional,
	}
}

// recordPlaced journals a successful placement. Best-effort: journal
// failures are logged, never propagated.
func (e Env) recordPlaced(ctx context.Context, rec order.Record) {
	err := e.Journal.Record(ctx, journal.Event{
		Time:    time.Now(),
		Action:  logging.ActionOrderPlaced,
		Symbol:  rec.Symbol,
		Side:    string(rec.Side),
		OrderID: rec.OrderID,
		Data: map[string]any{
			"type":     string(rec.Type),
			"quantity": rec.Quantity.String(),
			"price":    rec.Price.String(),
			"status":   string(rec.Status),
		},
	})
	if err != nil {
		e.Log.Warn("journal write failed", zap.Error(err))
	}
}

// recordFailure journals a placement failure.
func (e Env) recordFailure(ctx context.Context, symbol string, side order.Side, cause error) {
	err := e.Journal.Record(ctx, journal.Event{
		Time:   time.Now(),
		Action: logging.ActionOrderFailed,
		Symbol: symbol,
		Side:   string(side),
		Data:   map[string]any{"error": cause.Error()},
	})
	if err != nil {
		e.Log.Warn("journal write failed", zap.Error(err))
	}
}

// logPlaced emits the ORDER_PLACED record every successful placement gets.
func (e Env) logPlaced(rec order.Record, msg string) {
	logging.OrderAction(e.Log, logging.ActionOrderPlaced, msg,
		logging.OrderID(rec.OrderID), logging.Symbol(rec.Symbol), logging.Side(rec.Side),
		logging.Quantity(rec.Quantity), logging.Price(rec.Price), logging.OrderStatus(rec.Status))
}

func newClientOrderID() string {
	return uuid.NewString()
}

// Raw-input log fields for ORDER_INITIATED records, which fire before
// validation normalizes anything.
func rawSide(s string) zap.Field     { return zap.String("side", strings.ToUpper(s)) }
func rawQuantity(q string) zap.Field { return zap.String("quantity", q) }
