package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/dedup"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	Apply(ctx context.Context, claim Claim, e Event, d Delta) (bool, error)
	Summary(ctx context.Context) (Summary, error)
	Rebuild(ctx context.Context) (Summary, error)
	Recent(ctx context.Context, since time.Time) ([]Event, error)
	ByType(ctx context.Context, eventType string) ([]Event, error)
	ByUser(ctx context.Context, userID int64) ([]Event, error)
}

type PostgresRepository struct {
	pool  DBPool
	dedup *dedup.Repository
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool, dedup: dedup.NewRepository(pool)}
}

// Apply appends e to the log and folds d into the summary in one transaction.
// With a non-zero claim it first records the event id and returns false,
// changing nothing, when the event was already applied.
func (r *PostgresRepository) Apply(ctx context.Context, claim Claim, e Event, d Delta) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if claim.Consumer != "" {
		first, err := r.dedup.WithExecutor(tx).MarkProcessed(ctx, claim.Consumer, claim.EventID)
		if err != nil {
			return false, err
		}
		if !first {
			return false, nil
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO analytics_events (event_type, entity_id, user_id, amount, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, e.EventType, e.EntityID, e.UserID, e.Amount, e.Metadata); err != nil {
		return false, fmt.Errorf("insert analytics event: %w", err)
	}

	if !d.IsZero() {
		// Single statement increment; concurrent folds never read-modify-write.
		if _, err := tx.Exec(ctx, `
			UPDATE analytics_summary
			SET total_orders = total_orders + $1,
			    total_revenue = total_revenue + $2,
			    total_users = total_users + $3,
			    total_products = total_products + $4,
			    updated_at = now()
			WHERE id = 1
		`, d.Orders, d.Revenue, d.Users, d.Products); err != nil {
			return false, fmt.Errorf("fold summary: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

const summaryColumns = `total_orders, total_revenue, total_users, total_products, updated_at`

func scanSummary(row pgx.Row) (Summary, error) {
	var s Summary
	err := row.Scan(&s.TotalOrders, &s.TotalRevenue, &s.TotalUsers, &s.TotalProducts, &s.LastUpdated)
	return s, err
}

// Summary returns the current totals, or a zero summary when none exists.
func (r *PostgresRepository) Summary(ctx context.Context) (Summary, error) {
	s, err := scanSummary(r.pool.QueryRow(ctx, `SELECT `+summaryColumns+` FROM analytics_summary WHERE id = 1`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{TotalRevenue: decimal.Zero, LastUpdated: time.Now().UTC()}, nil
		}
		return Summary{}, fmt.Errorf("select summary: %w", err)
	}
	return s, nil
}

// Rebuild recomputes the summary from the event log and stores it.
func (r *PostgresRepository) Rebuild(ctx context.Context) (Summary, error) {
	s, err := scanSummary(r.pool.QueryRow(ctx, `
		INSERT INTO analytics_summary (id, total_orders, total_revenue, total_users, total_products, updated_at)
		SELECT 1,
		       count(*) FILTER (WHERE event_type = $1),
		       COALESCE(sum(amount) FILTER (WHERE event_type = $1), 0),
		       count(*) FILTER (WHERE event_type = $2) - count(*) FILTER (WHERE event_type = $3),
		       count(*) FILTER (WHERE event_type = $4) - count(*) FILTER (WHERE event_type = $5),
		       now()
		FROM analytics_events
		ON CONFLICT (id) DO UPDATE
		SET total_orders = EXCLUDED.total_orders,
		    total_revenue = EXCLUDED.total_revenue,
		    total_users = EXCLUDED.total_users,
		    total_products = EXCLUDED.total_products,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+summaryColumns,
		events.EventTypeOrderCreated,
		events.EventTypeUserRegistered, events.EventTypeUserDeleted,
		events.EventTypeProductCreated, events.EventTypeProductDeleted,
	))
	if err != nil {
		return Summary{}, fmt.Errorf("rebuild summary: %w", err)
	}
	return s, nil
}

const eventColumns = `id, event_type, entity_id, user_id, amount, metadata, created_at`

func (r *PostgresRepository) Recent(ctx context.Context, since time.Time) ([]Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM analytics_events WHERE created_at >= $1 ORDER BY created_at DESC, id DESC`, since)
}

func (r *PostgresRepository) ByType(ctx context.Context, eventType string) ([]Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM analytics_events WHERE event_type = $1 ORDER BY id`, eventType)
}

func (r *PostgresRepository) ByUser(ctx context.Context, userID int64) ([]Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM analytics_events WHERE user_id = $1 ORDER BY id`, userID)
}

func (r *PostgresRepository) list(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select analytics events: %w", err)
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.EventType, &e.EntityID, &e.UserID, &e.Amount, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analytics event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
