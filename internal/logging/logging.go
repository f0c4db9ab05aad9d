// Package logging builds the process logger and defines the structured
// order-action vocabulary every strategy emits. The logger is constructed
// once in main and injected; nothing in this package holds global state.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quantfield/futures-trader/internal/order"
)

// Lifecycle actions. Tests assert against these for key order events.
const (
	ActionOrderInitiated   = "ORDER_INITIATED"
	ActionValidationFailed = "VALIDATION_FAILED"
	ActionOrderPlacing     = "ORDER_PLACING"
	ActionOrderPlaced      = "ORDER_PLACED"
	ActionOrderFailed      = "ORDER_FAILED"
	ActionOrderWarning     = "ORDER_WARNING"
)

// New returns a logger writing human-readable lines to stderr and JSON
// records to a dated file under dir. An empty dir disables the file sink.
func New(dir string, debug bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		name := filepath.Join(dir, fmt.Sprintf("bot_%s.log", time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(f), level))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

// OrderAction emits one lifecycle record with the fixed action field plus
// whatever order fields apply.
func OrderAction(log *zap.Logger, action, msg string, fields ...zap.Field) {
	log.Info(msg, append([]zap.Field{zap.String("action", action)}, fields...)...)
}

// Field constructors keep the field names uniform across strategies.

func Symbol(s string) zap.Field            { return zap.String("symbol", s) }
func Side(s order.Side) zap.Field          { return zap.String("side", string(s)) }
func Quantity(q decimal.Decimal) zap.Field { return zap.String("quantity", q.String()) }
func Price(p decimal.Decimal) zap.Field    { return zap.String("price", p.String()) }
func StopPrice(p decimal.Decimal) zap.Field {
	return zap.String("stop_price", p.String())
}
func OrderID(id int64) zap.Field      { return zap.Int64("order_id", id) }
func ErrorCode(code string) zap.Field { return zap.String("error_code", code) }
func OrderStatus(s order.Status) zap.Field {
	return zap.String("status", string(s))
}
