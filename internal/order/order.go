// Package order defines the exchange-facing order vocabulary shared by the
// strategies and the exchange adapters.
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side. Used for the exit legs of OCO orders.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide parses a side string case-insensitively.
func ParseSide(s string) (Side, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("order side cannot be empty")
	}
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("invalid side: %s (must be BUY or SELL)", s)
	}
}

// Type is the exchange order type.
type Type string

const (
	Market        Type = "MARKET"
	Limit         Type = "LIMIT"
	Stop          Type = "STOP"
	StopMarket    Type = "STOP_MARKET"
	StopLossLimit Type = "STOP_LOSS_LIMIT"
)

// Status is the exchange-reported order status.
type Status string

const (
	StatusNew             Status = "NEW"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCanceled        Status = "CANCELED"
	StatusExpired         Status = "EXPIRED"
	StatusRejected        Status = "REJECTED"
)

// Dead reports whether the order can no longer fill.
func (s Status) Dead() bool {
	switch s {
	case StatusCanceled, StatusExpired, StatusRejected:
		return true
	}
	return false
}

// Request represents a new order to be submitted to the exchange.
// Quantities and prices are exact decimals end to end; the adapter formats
// them to the symbol's precision on the wire.
type Request struct {
	Symbol        string
	Side          Side
	Type          Type
	Quantity      decimal.Decimal
	Price         decimal.Decimal // limit orders and stop-limit variants
	StopPrice     decimal.Decimal // stop variants
	TimeInForce   string          // "GTC" where the type requires it
	ClientOrderID string
}

// Record is the exchange's view of a placed order.
type Record struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          Type
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	AvgPrice      decimal.Decimal
	Status        Status
	PlacedAt      time.Time
}
