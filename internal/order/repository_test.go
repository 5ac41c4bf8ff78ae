package order

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (*repo, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &repo{db: db, now: func() time.Time { return fixedNow }}, mock, db
}

const (
	insertOrder = `INSERT INTO orders (user_id, total_amount, status, shipping_address, payment_method, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING id`
	insertItem = `INSERT INTO order_items (order_id, product_id, product_name, quantity, price, subtotal)
             VALUES ($1, $2, $3, $4, $5, $6)
             RETURNING id`
	updateOrder = `UPDATE orders
         SET status = $2, shipping_address = $3, payment_method = $4, updated_at = $5
         WHERE id = $1`
	selectItems = `SELECT id, order_id, product_id, product_name, quantity, price, subtotal
         FROM order_items WHERE order_id = ANY($1) ORDER BY id`
)

func sampleOrder() *Order {
	return &Order{
		UserID:      7,
		Status:      StatusConfirmed,
		TotalAmount: decimal.RequireFromString("20.00"),
		Items: []Item{{
			ProductID:   3,
			ProductName: "Mug",
			Quantity:    2,
			Price:       decimal.RequireFromString("10.00"),
			Subtotal:    decimal.RequireFromString("20.00"),
		}},
	}
}

func TestRepositoryCreate_Success(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	o := sampleOrder()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(insertOrder)).
		WithArgs(int64(7), o.TotalAmount, "CONFIRMED", "", "", fixedNow, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta(insertItem)).
		WithArgs(int64(11), int64(3), "Mug", 2, o.Items[0].Price, o.Items[0].Subtotal).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))
	mock.ExpectCommit()

	require.NoError(t, r.Create(context.Background(), o, nil))
	assert.Equal(t, int64(11), o.ID)
	assert.Equal(t, int64(101), o.Items[0].ID)
	assert.Equal(t, fixedNow, o.CreatedAt)
	assert.Equal(t, fixedNow, o.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreate_WithOutbox(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	o := sampleOrder()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(insertOrder)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta(insertItem)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox`)).
		WithArgs("e-1", events.EventTypeOrderCreated, events.RoutingKeyOrderCreated, "11", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	emit := func(o *Order) ([]events.Outgoing, error) {
		assert.Equal(t, int64(11), o.ID, "ids are assigned before messages are built")
		return []events.Outgoing{{
			EventID:     "e-1",
			EventType:   events.EventTypeOrderCreated,
			RoutingKey:  events.RoutingKeyOrderCreated,
			AggregateID: "11",
			Body:        []byte(`{"orderId":11}`),
		}}, nil
	}

	require.NoError(t, r.Create(context.Background(), o, emit))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreate_ItemInsertErrorRollsBack(t *testing.T) {
	r, mock, _ := newTestRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(insertOrder)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta(insertItem)).WillReturnError(errors.New("item insert failed"))
	mock.ExpectRollback()

	require.Error(t, r.Create(context.Background(), sampleOrder(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreate_EmitErrorRollsBack(t *testing.T) {
	r, mock, _ := newTestRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(insertOrder)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta(insertItem)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))
	mock.ExpectRollback()

	emit := func(*Order) ([]events.Outgoing, error) { return nil, errors.New("marshal failed") }
	require.Error(t, r.Create(context.Background(), sampleOrder(), emit))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySave(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	o := sampleOrder()
	o.ID = 11
	o.Status = StatusShipped

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(updateOrder)).
		WithArgs(int64(11), "SHIPPED", "", "", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, r.Save(context.Background(), o, nil))
	assert.Equal(t, fixedNow, o.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySave_NotFound(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	o := sampleOrder()
	o.ID = 404

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(updateOrder)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := r.Save(context.Background(), o, nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Order not found: 404", apperr.Message(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func orderRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "total_amount", "status", "shipping_address", "payment_method", "created_at", "updated_at"})
}

func TestRepositoryGetByID(t *testing.T) {
	r, mock, _ := newTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + orderColumns + ` FROM orders WHERE id = $1`)).
		WithArgs(int64(11)).
		WillReturnRows(orderRows().AddRow(11, 7, "20.00", "CONFIRMED", "Main St 1", "card", fixedNow, fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta(selectItems)).
		WithArgs(pq.Array([]int64{11})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "product_name", "quantity", "price", "subtotal"}).
			AddRow(101, 11, 3, "Mug", 2, "10.00", "20.00"))

	o, err := r.GetByID(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, "Main St 1", o.ShippingAddress)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(20)))
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Mug", o.Items[0].ProductName)
	assert.True(t, o.Items[0].Subtotal.Equal(decimal.NewFromInt(20)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetByID_NotFound(t *testing.T) {
	r, mock, _ := newTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + orderColumns + ` FROM orders WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnRows(orderRows())

	_, err := r.GetByID(context.Background(), 5)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Order not found: 5", apperr.Message(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListByUser_EmptyResult(t *testing.T) {
	r, mock, _ := newTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1`)).
		WithArgs(int64(8)).
		WillReturnRows(orderRows())

	orders, err := r.ListByUser(context.Background(), 8)
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListByStatus_GroupsItems(t *testing.T) {
	r, mock, _ := newTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + orderColumns + ` FROM orders WHERE status = $1`)).
		WithArgs("CONFIRMED").
		WillReturnRows(orderRows().
			AddRow(12, 7, "5.00", "CONFIRMED", "", "", fixedNow, fixedNow).
			AddRow(11, 8, "20.00", "CONFIRMED", "", "", fixedNow, fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta(selectItems)).
		WithArgs(pq.Array([]int64{12, 11})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "product_name", "quantity", "price", "subtotal"}).
			AddRow(101, 11, 3, "Mug", 2, "10.00", "20.00").
			AddRow(102, 12, 4, "Tea", 1, "5.00", "5.00"))

	orders, err := r.ListByStatus(context.Background(), StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, "Tea", orders[0].Items[0].ProductName)
	assert.Equal(t, "Mug", orders[1].Items[0].ProductName)
	require.NoError(t, mock.ExpectationsWereMet())
}
