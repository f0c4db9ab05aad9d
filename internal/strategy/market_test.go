package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfield/futures-trader/internal/exchange"
	"github.com/quantfield/futures-trader/internal/order"
)

func TestMarketExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("places a market order at current price", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewMarket(testEnv(m)).Execute(ctx, MarketParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2",
		})

		require.True(t, res.Success, res.Err)
		require.Len(t, m.Placed, 1)
		assert.Equal(t, order.Market, m.Placed[0].Type)
		assert.Equal(t, order.Buy, m.Placed[0].Side)
		assert.Equal(t, "2", m.Placed[0].Quantity.String())
		assert.Equal(t, order.StatusFilled, res.Order.Status)
		assert.Equal(t, "100", res.Order.AvgPrice.String())
		assert.NotEmpty(t, m.Placed[0].ClientOrderID)
	})

	t.Run("bumps quantity below minimum notional", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewMarket(testEnv(m)).Execute(ctx, MarketParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "0.5",
		})

		require.True(t, res.Success, res.Err)
		require.Len(t, m.Placed, 1)
		assert.Equal(t, "1.001", m.Placed[0].Quantity.String())
	})

	t.Run("rejects bad side without touching the exchange", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewMarket(testEnv(m)).Execute(ctx, MarketParams{
			Symbol: "BTCUSDT", Side: "hold", Quantity: "1",
		})

		assert.False(t, res.Success)
		assert.Empty(t, m.Placed)
		assert.Zero(t, m.PriceCalls)
	})

	t.Run("rejects an oddly shaped symbol the exchange does not list", func(t *testing.T) {
		m := exchange.NewMock()
		m.ExistsFn = func(string) (bool, error) { return false, nil }
		res := NewMarket(testEnv(m)).Execute(ctx, MarketParams{
			Symbol: "BTCEUR", Side: "buy", Quantity: "1",
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "not listed")
		assert.Empty(t, m.Placed)
	})

	t.Run("propagates price fetch failure", func(t *testing.T) {
		m := exchange.NewMock()
		m.PriceErr = errors.New("connection refused")
		res := NewMarket(testEnv(m)).Execute(ctx, MarketParams{
			Symbol: "BTCUSDT", Side: "sell", Quantity: "1",
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "connection refused")
		assert.Empty(t, m.Placed)
	})

	t.Run("propagates placement failure", func(t *testing.T) {
		m := exchange.NewMock()
		m.PlaceFn = func(order.Request) (order.Record, error) {
			return order.Record{}, errors.New("Margin is insufficient.")
		}
		res := NewMarket(testEnv(m)).Execute(ctx, MarketParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "1",
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "Margin is insufficient")
	})
}
