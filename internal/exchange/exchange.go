// Package exchange defines the gateway contract strategies place orders
// through, its Binance USDT-M futures implementation, and a scripted mock.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/quantfield/futures-trader/internal/order"
)

// Default precisions used when symbol metadata is unavailable.
const (
	DefaultQuantityPrecision int32 = 8
	DefaultPricePrecision    int32 = 2
)

// Exchange is the gateway contract every strategy consumes: current price,
// symbol precision metadata, and order placement/cancellation/status.
type Exchange interface {
	Name() string
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// Precision lookups derive from step/tick size metadata and fall back
	// to the defaults above on any failure; they are never fatal.
	GetQuantityPrecision(ctx context.Context, symbol string) int32
	GetPricePrecision(ctx context.Context, symbol string) int32

	SymbolExists(ctx context.Context, symbol string) (bool, error)

	PlaceOrder(ctx context.Context, req order.Request) (order.Record, error)

	// CancelOrder is best-effort from the callers' perspective: cleanup
	// paths tolerate a cancellation failure without treating it as fatal.
	CancelOrder(ctx context.Context, symbol string, orderID int64) error

	GetOrderStatus(ctx context.Context, symbol string, orderID int64) (order.Status, error)
}
