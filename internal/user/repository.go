package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
)

const uniqueViolation = "23505"

// DBPool is the subset of *pgxpool.Pool the repository needs.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	ListActive(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u *User) error
}

type PostgresRepository struct {
	pool   DBPool
	tracer trace.Tracer
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool, tracer: otel.Tracer("user/repository")}
}

const userColumns = `id, email, full_name, phone, active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Create")
	defer span.End()

	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, full_name, phone, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, u.Email, u.FullName, u.Phone, u.Active).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperr.Invalid("EMAIL_TAKEN", "User already exists with email: %s", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.GetByID")
	defer span.End()
	span.SetAttributes(attribute.Int64("id", id))

	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound("USER_NOT_FOUND", "User not found with id: %d", id)
		}
		span.RecordError(err)
		return User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.GetByEmail")
	defer span.End()

	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound("USER_NOT_FOUND", "User not found with email: %s", email)
		}
		span.RecordError(err)
		return User{}, fmt.Errorf("select user by email: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Update writes the mutable fields and refreshes updated_at.
func (r *PostgresRepository) Update(ctx context.Context, u *User) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("id", u.ID))

	err := r.pool.QueryRow(ctx, `
		UPDATE users SET full_name = $2, phone = $3, active = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, u.ID, u.FullName, u.Phone, u.Active).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("USER_NOT_FOUND", "User not found with id: %d", u.ID)
		}
		span.RecordError(err)
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
