package strategy

import (
	"context"
	"testing"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfield/futures-trader/internal/exchange"
	"github.com/quantfield/futures-trader/internal/order"
)

func TestOCOExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("places both legs on the opposite side", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewOCO(testEnv(m)).Execute(ctx, OCOParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2", TakeProfit: "110", StopLoss: "90",
		})

		require.True(t, res.Success, res.Err)
		assert.Equal(t, OCOPlaced, res.Outcome)
		assert.False(t, res.Simulated)
		require.Len(t, m.Placed, 2)

		tp, sl := m.Placed[0], m.Placed[1]
		assert.Equal(t, order.Limit, tp.Type)
		assert.Equal(t, order.Sell, tp.Side)
		assert.Equal(t, "110", tp.Price.String())
		assert.Equal(t, order.StopMarket, sl.Type)
		assert.Equal(t, order.Sell, sl.Side)
		assert.Equal(t, "90", sl.StopPrice.String())
		require.NotNil(t, res.StopLoss)
	})

	t.Run("rejects buy take-profit at or below current price", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewOCO(testEnv(m)).Execute(ctx, OCOParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2", TakeProfit: "95", StopLoss: "90",
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "must be above current price")
		assert.Empty(t, m.Placed)
	})

	t.Run("rejects buy stop-loss at or above current price", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewOCO(testEnv(m)).Execute(ctx, OCOParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2", TakeProfit: "110", StopLoss: "100",
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "must be below current price")
		assert.Empty(t, m.Placed)
	})

	t.Run("rejects sell take-profit above current price", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewOCO(testEnv(m)).Execute(ctx, OCOParams{
			Symbol: "BTCUSDT", Side: "sell", Quantity: "2", TakeProfit: "110", StopLoss: "120",
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "must be below current price")
		assert.Empty(t, m.Placed)
	})

	t.Run("cancels the take-profit when the stop-loss leg fails", func(t *testing.T) {
		m := exchange.NewMock()
		m.PlaceFn = func(req order.Request) (order.Record, error) {
			if req.Type == order.StopMarket {
				return order.Record{}, &common.APIError{Code: -2019, Message: "Margin is insufficient."}
			}
			return acceptRecord(5001, req), nil
		}
		res := NewOCO(testEnv(m)).Execute(ctx, OCOParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2", TakeProfit: "110", StopLoss: "90",
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "stop-loss leg failed")
		assert.Equal(t, []int64{5001}, m.Canceled)
	})

	t.Run("take-profit failure is fatal with nothing to unwind", func(t *testing.T) {
		m := exchange.NewMock()
		m.PlaceFn = func(order.Request) (order.Record, error) {
			return order.Record{}, &common.APIError{Code: -2019, Message: "Margin is insufficient."}
		}
		res := NewOCO(testEnv(m)).Execute(ctx, OCOParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2", TakeProfit: "110", StopLoss: "90",
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "take-profit leg failed")
		assert.Empty(t, m.Canceled)
	})
}

func TestOCOSimulated(t *testing.T) {
	ctx := context.Background()

	// Accepts the TP limit and the closing market order, rejects native
	// stop-markets the way an algo-order-restricted account does.
	simulatedFn := func() func(req order.Request) (order.Record, error) {
		id := int64(6000)
		return func(req order.Request) (order.Record, error) {
			if req.Type == order.StopMarket {
				return order.Record{}, &common.APIError{Code: exchange.CodeUnsupportedOrderType, Message: "Algo Order is not enabled"}
			}
			id++
			return acceptRecord(id, req), nil
		}
	}

	t.Run("closes the position when the stop-loss price is hit", func(t *testing.T) {
		m := exchange.NewMock()
		m.PlaceFn = simulatedFn()
		m.StatusFn = func(int64) (order.Status, error) { return order.StatusNew, nil }
		m.SetPrices("100", "95", "88")

		res := NewOCO(testEnv(m)).Execute(ctx, OCOParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2", TakeProfit: "110", StopLoss: "90",
		})

		require.True(t, res.Success, res.Err)
		assert.True(t, res.Simulated)
		assert.Equal(t, OCOStopTrigger, res.Outcome)
		require.NotNil(t, res.Closing)
		assert.Equal(t, order.Market, res.Closing.Type)
		assert.Equal(t, order.Sell, res.Closing.Side)

		// The TP order was cancelled before the closing market order.
		assert.Equal(t, []int64{res.TakeProfit.OrderID}, m.Canceled)

		markets := 0
		for _, req := range m.Placed {
			if req.Type == order.Market {
				markets++
			}
		}
		assert.Equal(t, 1, markets)
	})

	t.Run("reports take-profit fill and stands down", func(t *testing.T) {
		m := exchange.NewMock()
		m.PlaceFn = simulatedFn()
		m.StatusFn = func(int64) (order.Status, error) { return order.StatusFilled, nil }

		res := NewOCO(testEnv(m)).Execute(ctx, OCOParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2", TakeProfit: "110", StopLoss: "90",
		})

		require.True(t, res.Success, res.Err)
		assert.Equal(t, OCOTakeProfit, res.Outcome)
		assert.Empty(t, m.Canceled)
		for _, req := range m.Placed {
			assert.NotEqual(t, order.Market, req.Type)
		}
	})

	t.Run("stops monitoring when the take-profit order dies", func(t *testing.T) {
		m := exchange.NewMock()
		m.PlaceFn = simulatedFn()
		m.StatusFn = func(int64) (order.Status, error) { return order.StatusCanceled, nil }

		res := NewOCO(testEnv(m)).Execute(ctx, OCOParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2", TakeProfit: "110", StopLoss: "90",
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "CANCELED")
	})

	t.Run("cancellation leaves the take-profit order live and says so", func(t *testing.T) {
		m := exchange.NewMock()
		m.PlaceFn = simulatedFn()
		m.StatusFn = func(int64) (order.Status, error) { return order.StatusNew, nil }

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		res := NewOCO(testEnv(m)).Execute(cancelled, OCOParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2", TakeProfit: "110", StopLoss: "90",
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "still live")
		assert.Contains(t, res.Err, "cancelled by user")
	})
}
