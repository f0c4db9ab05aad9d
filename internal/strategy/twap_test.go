package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfield/futures-trader/internal/exchange"
	"github.com/quantfield/futures-trader/internal/order"
)

func clockedEnv(m *exchange.Mock, clock *fakeClock) Env {
	env := testEnv(m)
	env.Now = clock.Now
	env.Sleep = clock.Sleep
	return env
}

func TestTWAPExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("splits evenly across the window", func(t *testing.T) {
		m := exchange.NewMock()
		clock := newFakeClock()

		res := NewTWAP(clockedEnv(m, clock)).Execute(ctx, TWAPParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "10",
			Duration: 10 * time.Second, Slices: 10,
		})

		require.True(t, res.Success, res.Err)
		assert.Equal(t, 10, res.Slices)
		assert.Equal(t, "10", res.Executed.String())
		assert.Equal(t, "100", res.AveragePrice.String())
		require.Len(t, m.Placed, 10)
		for _, req := range m.Placed {
			assert.Equal(t, order.Market, req.Type)
			assert.Equal(t, "1", req.Quantity.String())
		}
		// One sleep between each pair of slices.
		assert.Len(t, clock.slept, 9)
		assert.Equal(t, time.Second, clock.slept[0])
	})

	t.Run("folds the remainder into one order past the deadline", func(t *testing.T) {
		m := exchange.NewMock()
		clock := newFakeClock()

		// Every placement burns 3s of the 10s window, so the schedule
		// runs late and the tail is executed as a single order.
		var id int64
		m.PlaceFn = func(req order.Request) (order.Record, error) {
			clock.now = clock.now.Add(3 * time.Second)
			id++
			return acceptRecord(id, req), nil
		}

		res := NewTWAP(clockedEnv(m, clock)).Execute(ctx, TWAPParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "10",
			Duration: 10 * time.Second, Slices: 10,
		})

		require.True(t, res.Success, res.Err)
		assert.Equal(t, "10", res.Executed.String())
		require.Len(t, m.Placed, 5)
		assert.Equal(t, "6", m.Placed[4].Quantity.String())
		assert.Empty(t, clock.slept)
	})

	t.Run("defaults to one slice per minute", func(t *testing.T) {
		m := exchange.NewMock()
		clock := newFakeClock()

		res := NewTWAP(clockedEnv(m, clock)).Execute(ctx, TWAPParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "10",
			Duration: 10 * time.Minute,
		})

		require.True(t, res.Success, res.Err)
		assert.Equal(t, 10, res.Slices)
		assert.Equal(t, "100", res.AveragePrice.String())
		require.Len(t, m.Placed, 10)
		for _, req := range m.Placed {
			assert.Equal(t, "1", req.Quantity.String())
		}
		assert.Len(t, clock.slept, 9)
		assert.Equal(t, time.Minute, clock.slept[0])
	})

	t.Run("shrinks slice count to keep each slice above minimum notional", func(t *testing.T) {
		m := exchange.NewMock()
		clock := newFakeClock()

		// 10 / 20 = 0.5 per slice, worth $50 at $100: below the minimum,
		// so the count is re-planned around the minimum slice quantity.
		res := NewTWAP(clockedEnv(m, clock)).Execute(ctx, TWAPParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "10",
			Duration: 20 * time.Second, Slices: 20,
		})

		require.True(t, res.Success, res.Err)
		assert.Equal(t, 10, res.Slices)
		assert.Equal(t, "10", res.Executed.String())
		for i, req := range m.Placed {
			assert.Equal(t, "1", req.Quantity.String(), "slice %d", i+1)
		}
		// The re-planned schedule still spans the full window.
		assert.Len(t, clock.slept, 9)
		assert.Equal(t, 2*time.Second, clock.slept[0])
	})

	t.Run("rejects order too small for a single slice", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewTWAP(clockedEnv(m, newFakeClock())).Execute(ctx, TWAPParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "0.5",
			Duration: 10 * time.Second, Slices: 5,
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "slice too small")
		assert.Empty(t, m.Placed)
	})

	t.Run("rejects non-positive duration", func(t *testing.T) {
		m := exchange.NewMock()
		res := NewTWAP(clockedEnv(m, newFakeClock())).Execute(ctx, TWAPParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "10", Duration: 0,
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "duration must be positive")
		assert.Zero(t, m.PriceCalls)
	})

	t.Run("skips failed slices and keeps going", func(t *testing.T) {
		m := exchange.NewMock()
		clock := newFakeClock()
		id := int64(3000)
		calls := 0
		m.PlaceFn = func(req order.Request) (order.Record, error) {
			calls++
			if calls == 2 {
				return order.Record{}, errors.New("temporary rejection")
			}
			id++
			rec := acceptRecord(id, req)
			rec.AvgPrice = decimal.NewFromInt(100)
			return rec, nil
		}

		res := NewTWAP(clockedEnv(m, clock)).Execute(ctx, TWAPParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "5",
			Duration: 5 * time.Second, Slices: 5,
		})

		require.True(t, res.Success, res.Err)
		assert.Equal(t, 4, res.Slices)
		// The final slice took up the failed slice's share.
		assert.Equal(t, "5", res.Executed.String())
		assert.Equal(t, "2", m.Placed[len(m.Placed)-1].Quantity.String())
	})

	t.Run("cancellation reports partial execution", func(t *testing.T) {
		m := exchange.NewMock()
		clock := newFakeClock()
		cancellable, cancel := context.WithCancel(context.Background())
		clock.cancelAfter = 3
		clock.cancel = cancel

		res := NewTWAP(clockedEnv(m, clock)).Execute(cancellable, TWAPParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "10",
			Duration: 10 * time.Second, Slices: 10,
		})

		assert.False(t, res.Success)
		assert.Contains(t, res.Err, "cancelled by user")
		assert.Equal(t, 4, res.Slices)
		assert.Equal(t, "4", res.Executed.String())
		assert.Equal(t, "100", res.AveragePrice.String())
	})

	t.Run("all slices failing is a failure", func(t *testing.T) {
		m := exchange.NewMock()
		m.PlaceFn = func(order.Request) (order.Record, error) {
			return order.Record{}, errors.New("rejected")
		}
		res := NewTWAP(clockedEnv(m, newFakeClock())).Execute(ctx, TWAPParams{
			Symbol: "BTCUSDT", Side: "buy", Quantity: "10",
			Duration: 2 * time.Second, Slices: 2,
		})

		assert.False(t, res.Success)
		assert.Equal(t, "all slices failed", res.Err)
		assert.Zero(t, res.Slices)
	})
}

func TestDefaultSlices(t *testing.T) {
	assert.Equal(t, 10, defaultSlices(10*time.Minute))
	assert.Equal(t, 60, defaultSlices(90*time.Minute))
	assert.Equal(t, 1, defaultSlices(30*time.Second))
}
