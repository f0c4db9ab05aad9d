package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfield/futures-trader/internal/exchange"
	"github.com/quantfield/futures-trader/internal/order"
)

func TestLimitExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("places a GTC limit order", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewLimit(testEnv(m)).Execute(ctx, LimitParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2", Price: "99.5",
		})

		require.True(t, res.Success, res.Err)
		require.Len(t, m.Placed, 1)
		assert.Equal(t, order.Limit, m.Placed[0].Type)
		assert.Equal(t, "GTC", m.Placed[0].TimeInForce)
		assert.Equal(t, "99.5", m.Placed[0].Price.String())
		assert.Equal(t, order.StatusNew, res.Order.Status)
	})

	t.Run("rounds price to the symbol tick", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewLimit(testEnv(m)).Execute(ctx, LimitParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2", Price: "99.127",
		})

		require.True(t, res.Success, res.Err)
		assert.Equal(t, "99.13", m.Placed[0].Price.String())
	})

	t.Run("rejects a buy far above current price", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewLimit(testEnv(m)).Execute(ctx, LimitParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2", Price: "120",
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "more than 10% above")
		assert.Empty(t, m.Placed)
	})

	t.Run("rejects a sell far below current price", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewLimit(testEnv(m)).Execute(ctx, LimitParams{
			Symbol: "BTCUSDT", Side: "sell", Quantity: "2", Price: "85",
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "more than 10% below")
		assert.Empty(t, m.Placed)
	})

	t.Run("rejects unparseable price", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewLimit(testEnv(m)).Execute(ctx, LimitParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "2", Price: "1e5x",
		})

		assert.False(t, res.Success)
		assert.Empty(t, m.Placed)
	})
}
