package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/quantfield/futures-trader/internal/order"
)

// OrderResult is the outcome of a single-order strategy (market, limit).
type OrderResult struct {
	Success bool
	Err     string
	Order   order.Record
}

// Stop-limit terminal states.
const (
	StopLimitPlaced    = "PLACED"    // native stop order resting on the exchange
	StopLimitTriggered = "TRIGGERED" // simulated stop fired and placed the limit order
	StopLimitCancelled = "CANCELLED" // simulated monitor cancelled before triggering
)

type StopLimitResult struct {
	Success   bool
	Err       string
	Simulated bool
	Status    string
	Order     order.Record
	Symbol    string
	Side      order.Side
	Quantity  decimal.Decimal
	Limit     decimal.Decimal
	Stop      decimal.Decimal
}

// OCO terminal outcomes.
const (
	OCOPlaced      = "PLACED"       // both legs resting natively
	OCOTakeProfit  = "TP_FILLED"    // simulated monitor saw the TP leg fill
	OCOStopTrigger = "SL_TRIGGERED" // simulated monitor fired the stop-loss
)

type OCOResult struct {
	Success   bool
	Err       string
	Simulated bool
	Outcome   string
	Symbol    string
	Quantity  decimal.Decimal

	TakeProfit order.Record
	// StopLoss is nil in simulated mode, where no native stop order exists.
	StopLoss *order.Record
	// Closing is the market order placed when a simulated stop-loss fires.
	Closing *order.Record
}

type TWAPResult struct {
	Success bool
	Err     string
	Symbol  string
	Side    order.Side

	Requested    decimal.Decimal
	Executed     decimal.Decimal
	AveragePrice decimal.Decimal
	Slices       int
	// Orders lists every slice placed, in execution order; preserved on
	// failure so partial completion is reported, never discarded.
	Orders []order.Record
}

// GridLevel is one placed resting order of a grid.
type GridLevel struct {
	Level int // 1-based level index within the grid
	Price decimal.Decimal
	Order order.Record
}

type GridResult struct {
	Success bool
	Err     string
	Symbol  string

	Lower            decimal.Decimal
	Upper            decimal.Decimal
	Levels           int
	QuantityPerLevel decimal.Decimal
	CurrentPrice     decimal.Decimal

	BuyOrders  int
	SellOrders int
	// Placed lists the levels that got an order, failures and the
	// at-current-price level excluded.
	Placed []GridLevel
}

func (g GridResult) OrdersPlaced() int { return len(g.Placed) }
