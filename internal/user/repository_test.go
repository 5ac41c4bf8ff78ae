package user

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
)

var stamp = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func userRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "email", "full_name", "phone", "active", "created_at", "updated_at"})
}

func TestPostgresRepository_Create(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("ada@example.com", "Ada Lovelace", "", true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), stamp, stamp))

	u := User{Email: "ada@example.com", FullName: "Ada Lovelace", Active: true}
	require.NoError(t, NewPostgresRepository(mock).Create(context.Background(), &u))
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, stamp, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateDuplicateEmail(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	u := User{Email: "ada@example.com", FullName: "Ada"}
	err := NewPostgresRepository(mock).Create(context.Background(), &u)
	require.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Equal(t, "EMAIL_TAKEN", apperr.Code(err))
	assert.Equal(t, "User already exists with email: ada@example.com", apperr.Message(err))
}

func TestPostgresRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
		WithArgs(int64(7)).
		WillReturnRows(userRows().AddRow(int64(7), "ada@example.com", "Ada", "555", true, stamp, stamp))

	u, err := NewPostgresRepository(mock).GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.FullName)
	assert.Equal(t, "555", u.Phone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetMissing(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		call func(r *PostgresRepository) error
		msg  string
	}{
		{
			name: "by id",
			sql:  `WHERE id = $1`,
			call: func(r *PostgresRepository) error { _, err := r.GetByID(context.Background(), 9); return err },
			msg:  "User not found with id: 9",
		},
		{
			name: "by email",
			sql:  `WHERE email = $1`,
			call: func(r *PostgresRepository) error {
				_, err := r.GetByEmail(context.Background(), "x@example.com")
				return err
			},
			msg: "User not found with email: x@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			mock.ExpectQuery(regexp.QuoteMeta(tt.sql)).WillReturnRows(userRows())

			err := tt.call(NewPostgresRepository(mock))
			require.ErrorIs(t, err, apperr.ErrNotFound)
			assert.Equal(t, tt.msg, apperr.Message(err))
		})
	}
}

func TestPostgresRepository_ListActive(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE active`)).
		WillReturnRows(userRows().
			AddRow(int64(1), "a@example.com", "A", "", true, stamp, stamp).
			AddRow(int64(2), "b@example.com", "B", "", true, stamp, stamp))

	users, err := NewPostgresRepository(mock).ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "b@example.com", users[1].Email)
}

func TestPostgresRepository_Update(t *testing.T) {
	mock := newMock(t)
	later := stamp.Add(time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE users SET full_name = $2`)).
		WithArgs(int64(7), "Ada King", "555", false).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(later))

	u := User{ID: 7, FullName: "Ada King", Phone: "555"}
	require.NoError(t, NewPostgresRepository(mock).Update(context.Background(), &u))
	assert.Equal(t, later, u.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
