package notification

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/dedup"
)

type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	Save(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID int64) ([]Notification, error)
	ListRecent(ctx context.Context, limit int) ([]Notification, error)
	Claim(ctx context.Context, consumer, eventID string) (bool, error)
}

type PostgresRepository struct {
	pool  DBPool
	dedup *dedup.Repository
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool, dedup: dedup.NewRepository(pool)}
}

func (r *PostgresRepository) Save(ctx context.Context, n *Notification) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, recipient, type, subject, message, sent, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, n.UserID, n.Recipient, string(n.Type), n.Subject, n.Message, n.Sent, n.SentAt).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// Claim records eventID for consumer; false means it was seen before.
func (r *PostgresRepository) Claim(ctx context.Context, consumer, eventID string) (bool, error) {
	return r.dedup.MarkProcessed(ctx, consumer, eventID)
}

const notificationColumns = `id, user_id, recipient, type, subject, message, sent, sent_at, created_at`

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]Notification, error) {
	return r.list(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]Notification, error) {
	return r.list(ctx, `SELECT `+notificationColumns+` FROM notifications ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

func (r *PostgresRepository) list(ctx context.Context, q string, args ...any) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var (
			n   Notification
			typ string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Recipient, &typ, &n.Subject, &n.Message, &n.Sent, &n.SentAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = Type(typ)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
