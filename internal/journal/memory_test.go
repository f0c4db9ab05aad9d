package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJournal(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	m := NewMemory()
	require.NoError(t, m.Record(ctx, Event{Time: base, Action: "ORDER_PLACED", Symbol: "BTCUSDT", OrderID: 1}))
	require.NoError(t, m.Record(ctx, Event{Time: base.Add(time.Minute), Action: "ORDER_FAILED", Symbol: "BTCUSDT"}))
	require.NoError(t, m.Record(ctx, Event{Time: base.Add(2 * time.Minute), Action: "ORDER_PLACED", Symbol: "ETHUSDT", OrderID: 2}))

	t.Run("no filter returns everything", func(t *testing.T) {
		events, err := m.Events(ctx, "", time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Len(t, events, 3)
	})

	t.Run("filter by action", func(t *testing.T) {
		events, err := m.Events(ctx, "ORDER_PLACED", time.Time{}, time.Time{})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.EqualValues(t, 1, events[0].OrderID)
		assert.EqualValues(t, 2, events[1].OrderID)
	})

	t.Run("filter by window", func(t *testing.T) {
		events, err := m.Events(ctx, "", base.Add(30*time.Second), base.Add(90*time.Second))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "ORDER_FAILED", events[0].Action)
	})

	t.Run("zero time gets stamped", func(t *testing.T) {
		require.NoError(t, m.Record(ctx, Event{Action: "ORDER_WARNING"}))
		events, err := m.Events(ctx, "ORDER_WARNING", time.Time{}, time.Time{})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.False(t, events[0].Time.IsZero())
	})
}
