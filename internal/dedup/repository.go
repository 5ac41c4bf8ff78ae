// Package dedup records which events a consumer has already applied.
package dedup

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Executor represents the subset of pgx methods required for dedup operations.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	executor Executor
}

func NewRepository(exec Executor) *Repository {
	return &Repository{executor: exec}
}

// WithExecutor returns a shallow copy using the provided executor (e.g., a transaction).
func (r *Repository) WithExecutor(exec Executor) *Repository {
	return &Repository{executor: exec}
}

// MarkProcessed claims eventID for consumerName. It reports true on the first
// claim and false when the event was already processed. Events without an id
// cannot be deduplicated and are always reported as new.
func (r *Repository) MarkProcessed(ctx context.Context, consumerName, eventID string) (bool, error) {
	if eventID == "" {
		return true, nil
	}
	tag, err := r.executor.Exec(ctx, `
		INSERT INTO processed_events (consumer_name, event_id)
		VALUES ($1, $2)
		ON CONFLICT (consumer_name, event_id) DO NOTHING
	`, consumerName, eventID)
	if err != nil {
		return false, fmt.Errorf("insert processed event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
