package outbox

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

const (
	selectPending = `SELECT id, event_id, event_type, routing_key, aggregate_id, payload
         FROM outbox
         WHERE published_at IS NULL AND attempts < $1
         ORDER BY id
         LIMIT $2
         FOR UPDATE SKIP LOCKED`
	updatePublished = `UPDATE outbox SET published_at = now(), attempts = attempts + 1, last_error = NULL WHERE id = $1`
	updateFailed    = `UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`
)

type recordingSender struct {
	sent   []events.Outgoing
	failOn string
}

func (s *recordingSender) Send(_ context.Context, msg events.Outgoing) error {
	if msg.EventID == s.failOn {
		return errors.New("broker unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func pendingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "event_id", "event_type", "routing_key", "aggregate_id", "payload"}).
		AddRow(1, "e-1", "ORDER_CREATED", "order.created", "10", []byte(`{"orderId":10}`)).
		AddRow(2, "e-2", "ORDER_STATUS_UPDATED", "order.status.updated", "10", []byte(`{"orderId":10}`))
}

func TestEnqueue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	msg := events.Outgoing{EventID: "e-1", EventType: "ORDER_CREATED", RoutingKey: "order.created", AggregateID: "10", Body: []byte(`{}`)}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox (event_id, event_type, routing_key, aggregate_id, payload)
             VALUES ($1, $2, $3, $4, $5)`)).
		WithArgs("e-1", "ORDER_CREATED", "order.created", "10", `{}`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, Enqueue(context.Background(), tx, msg))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchOnce_PublishesInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectPending)).WithArgs(MaxAttempts, 50).WillReturnRows(pendingRows())
	mock.ExpectExec(regexp.QuoteMeta(updatePublished)).WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(updatePublished)).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sender := &recordingSender{}
	d := NewDispatcher(db, sender, time.Second, 0, zap.NewNop())

	n, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "order.created", sender.sent[0].RoutingKey)
	assert.Equal(t, "order.status.updated", sender.sent[1].RoutingKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchOnce_StopsAtFirstFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectPending)).WithArgs(MaxAttempts, 50).WillReturnRows(pendingRows())
	mock.ExpectExec(regexp.QuoteMeta(updateFailed)).WithArgs(int64(1), "broker unavailable").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sender := &recordingSender{failOn: "e-1"}
	d := NewDispatcher(db, sender, time.Second, 50, zap.NewNop())

	n, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sender.sent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchOnce_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectPending)).WithArgs(MaxAttempts, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "event_type", "routing_key", "aggregate_id", "payload"}))
	mock.ExpectRollback()

	d := NewDispatcher(db, &recordingSender{}, time.Second, 50, zap.NewNop())
	n, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_StopsOnCancel(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(db, &recordingSender{}, time.Hour, 50, zap.NewNop())
	require.NoError(t, d.Run(ctx))
}
