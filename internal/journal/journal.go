// Package journal persists order lifecycle events so a run can be audited
// after the fact. Recording is best-effort everywhere: a journal failure
// never fails the order flow that produced the event.
package journal

import (
	"context"
	"time"
)

// Event is one journaled order lifecycle event.
type Event struct {
	Time    time.Time
	Action  string // logging action vocabulary, e.g. "ORDER_PLACED"
	Symbol  string
	Side    string
	OrderID int64
	Data    map[string]any
}

// Journal records and queries events.
type Journal interface {
	Record(ctx context.Context, e Event) error
	Events(ctx context.Context, action string, start, end time.Time) ([]Event, error)
}
