package exchange

import (
	"errors"
	"strings"

	"github.com/adshao/go-binance/v2/common"
)

// CodeUnsupportedOrderType is Binance's -4120 "Order's position side does not
// support Algo Orders" family: the account/symbol cannot take native
// conditional orders. Strategies special-case it to switch to client-side
// simulation instead of failing.
const CodeUnsupportedOrderType = -4120

// Code extracts the Binance numeric error code, or 0 when err carries none.
func Code(err error) int64 {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// IsUnsupportedOrderType reports whether err carries the distinguished
// "algo orders unsupported" signature that triggers simulated fallback.
func IsUnsupportedOrderType(err error) bool {
	if err == nil {
		return false
	}
	if Code(err) == CodeUnsupportedOrderType {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Algo Order") || strings.Contains(msg, "not supported")
}

// IsTypeRejection reports whether err looks like the exchange declining the
// order type itself (rather than, say, bad auth or a network fault). These
// are the secondary triggers for trying the next order-type encoding.
func IsTypeRejection(err error) bool {
	if err == nil {
		return false
	}
	if IsUnsupportedOrderType(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "STOP") || strings.Contains(strings.ToLower(msg), "type")
}
