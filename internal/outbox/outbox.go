// Package outbox stores outgoing events in the same transaction as the state
// change that produced them and drains them to the broker afterwards.
package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
)

// MaxAttempts is the number of failed sends after which a row is left alone.
const MaxAttempts = 10

// Execer is satisfied by *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Enqueue inserts msgs using tx so they commit or roll back with the caller's writes.
func Enqueue(ctx context.Context, tx Execer, msgs ...events.Outgoing) error {
	for _, m := range msgs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO outbox (event_id, event_type, routing_key, aggregate_id, payload)
             VALUES ($1, $2, $3, $4, $5)`,
			m.EventID, m.EventType, m.RoutingKey, m.AggregateID, string(m.Body),
		)
		if err != nil {
			return fmt.Errorf("insert outbox %s: %w", m.RoutingKey, err)
		}
	}
	return nil
}

type Dispatcher struct {
	db        *sql.DB
	sender    events.Sender
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewDispatcher(db *sql.DB, sender events.Sender, interval time.Duration, batchSize int, logger *zap.Logger) *Dispatcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Dispatcher{db: db, sender: sender, interval: interval, batchSize: batchSize, logger: logger}
}

// Run drains the outbox on every tick until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("stopping outbox dispatcher")
			return nil
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("outbox dispatch failed", zap.Error(err))
			}
		}
	}
}

type row struct {
	id          int64
	eventID     string
	eventType   string
	routingKey  string
	aggregateID string
	payload     []byte
}

// DispatchOnce sends one batch of pending rows in insertion order and returns
// how many were published. The batch stops at the first failed send so later
// events of the same order are not delivered ahead of it.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("outbox").Start(ctx, "outbox.dispatch")
	defer span.End()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	pending, err := d.lockPending(ctx, tx)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("outbox.batch", len(pending)))
	if len(pending) == 0 {
		return 0, nil
	}

	sent := 0
	for _, r := range pending {
		sendErr := d.sender.Send(ctx, events.Outgoing{
			EventID:     r.eventID,
			EventType:   r.eventType,
			RoutingKey:  r.routingKey,
			AggregateID: r.aggregateID,
			Body:        r.payload,
		})
		if sendErr != nil {
			observability.OutboxDispatched.WithLabelValues(observability.OutcomeError).Inc()
			d.logger.Warn("outbox send failed",
				zap.Int64("outbox_id", r.id),
				zap.String("routing_key", r.routingKey),
				zap.Error(sendErr),
			)
			if err := markFailed(ctx, tx, r.id, sendErr); err != nil {
				return sent, err
			}
			break
		}
		if err := markPublished(ctx, tx, r.id); err != nil {
			return sent, err
		}
		observability.OutboxDispatched.WithLabelValues(observability.OutcomeOK).Inc()
		sent++
	}

	if err := tx.Commit(); err != nil {
		return sent, fmt.Errorf("commit: %w", err)
	}
	return sent, nil
}

func (d *Dispatcher) lockPending(ctx context.Context, tx *sql.Tx) ([]row, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, event_id, event_type, routing_key, aggregate_id, payload
         FROM outbox
         WHERE published_at IS NULL AND attempts < $1
         ORDER BY id
         LIMIT $2
         FOR UPDATE SKIP LOCKED`,
		MaxAttempts, d.batchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("select outbox: %w", err)
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.eventID, &r.eventType, &r.routingKey, &r.aggregateID, &r.payload); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func markPublished(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox SET published_at = now(), attempts = attempts + 1, last_error = NULL WHERE id = $1`,
		id,
	); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

func markFailed(ctx context.Context, tx *sql.Tx, id int64, cause error) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`,
		id, cause.Error(),
	); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}
