package strategy

import (
	"context"
	"time"

	"github.com/quantfield/futures-trader/internal/exchange"
	"github.com/quantfield/futures-trader/internal/journal"
	"github.com/quantfield/futures-trader/internal/order"
)

// testEnv wires a mock exchange into an environment with a fast poll
// interval and a no-op placement delay so monitor loops finish quickly.
func testEnv(m *exchange.Mock) Env {
	return Env{
		Exchange:       m,
		Journal:        journal.NewMemory(),
		PollInterval:   time.Millisecond,
		PlacementDelay: time.Nanosecond,
	}
}

// fakeClock drives TWAP schedules without real waits. Sleeping advances the
// clock and records the requested duration.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
	// cancelAfter, when positive, cancels via cancel() once that many
	// sleeps have completed.
	cancelAfter int
	cancel      context.CancelFunc
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	if c.cancelAfter > 0 && len(c.slept) >= c.cancelAfter && c.cancel != nil {
		c.cancel()
	}
	return nil
}

// acceptRecord builds the record a cooperative exchange would return.
func acceptRecord(id int64, req order.Request) order.Record {
	rec := order.Record{
		OrderID:       id,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Quantity:      req.Quantity,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		Status:        order.StatusNew,
		PlacedAt:      time.Now(),
	}
	if req.Type == order.Market {
		rec.Status = order.StatusFilled
	}
	return rec
}
