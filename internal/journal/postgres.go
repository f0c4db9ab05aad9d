package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS order_events (
	id         BIGSERIAL PRIMARY KEY,
	event_time TIMESTAMPTZ NOT NULL,
	action     TEXT NOT NULL,
	symbol     TEXT NOT NULL DEFAULT '',
	side       TEXT NOT NULL DEFAULT '',
	order_id   BIGINT NOT NULL DEFAULT 0,
	data       JSONB
);
CREATE INDEX IF NOT EXISTS order_events_action_time_idx
	ON order_events (action, event_time);
`

// Postgres journals events into an order_events table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres connects to the given DSN and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string, maxOpen, maxIdle int) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to journal database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Record(ctx context.Context, e Event) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	var data []byte
	if e.Data != nil {
		var err error
		if data, err = json.Marshal(e.Data); err != nil {
			return fmt.Errorf("encoding event data: %w", err)
		}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO order_events (event_time, action, symbol, side, order_id, data)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Time, e.Action, e.Symbol, e.Side, e.OrderID, data)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

func (p *Postgres) Events(ctx context.Context, action string, start, end time.Time) ([]Event, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT event_time, action, symbol, side, order_id, data
		 FROM order_events
		 WHERE ($1 = '' OR action = $1)
		   AND event_time >= $2 AND event_time <= $3
		 ORDER BY event_time`,
		action, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var data []byte
		if err := rows.Scan(&e.Time, &e.Action, &e.Symbol, &e.Side, &e.OrderID, &data); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("decoding event data: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
