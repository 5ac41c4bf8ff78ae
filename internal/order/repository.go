package order

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/outbox"
)

// EmitFunc builds the messages to store in the outbox for o. It runs inside the
// write transaction after ids are assigned.
type EmitFunc func(o *Order) ([]events.Outgoing, error)

type Repository interface {
	Create(ctx context.Context, o *Order, emit EmitFunc) error
	Save(ctx context.Context, o *Order, emit EmitFunc) error
	GetByID(ctx context.Context, orderID int64) (*Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	ListByStatus(ctx context.Context, status Status) ([]Order, error)
	ListByUserAndStatus(ctx context.Context, userID int64, status Status) ([]Order, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]Order, error)
}

type repo struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const orderColumns = `id, user_id, total_amount, status, shipping_address, payment_method, created_at, updated_at`

func (r *repo) Create(ctx context.Context, o *Order, emit EmitFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := r.now()
	o.CreatedAt = now
	o.UpdatedAt = now

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, total_amount, status, shipping_address, payment_method, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING id`,
		o.UserID, o.TotalAmount, string(o.Status), o.ShippingAddress, o.PaymentMethod, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		err = tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, price, subtotal)
             VALUES ($1, $2, $3, $4, $5, $6)
             RETURNING id`,
			o.ID, it.ProductID, it.ProductName, it.Quantity, it.Price, it.Subtotal,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}

	if err := enqueue(ctx, tx, o, emit); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Save overwrites the mutable columns of an existing order. There is no
// version check: concurrent writers race and the last commit wins.
func (r *repo) Save(ctx context.Context, o *Order, emit EmitFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	o.UpdatedAt = r.now()

	res, err := tx.ExecContext(ctx,
		`UPDATE orders
         SET status = $2, shipping_address = $3, payment_method = $4, updated_at = $5
         WHERE id = $1`,
		o.ID, string(o.Status), o.ShippingAddress, o.PaymentMethod, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound(o.ID)
	}

	if err := enqueue(ctx, tx, o, emit); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func enqueue(ctx context.Context, tx *sql.Tx, o *Order, emit EmitFunc) error {
	if emit == nil {
		return nil
	}
	msgs, err := emit(o)
	if err != nil {
		return fmt.Errorf("build events: %w", err)
	}
	return outbox.Enqueue(ctx, tx, msgs...)
}

func (r *repo) GetByID(ctx context.Context, orderID int64) (*Order, error) {
	orders, err := r.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, notFound(orderID)
	}
	return &orders[0], nil
}

func (r *repo) ListAll(ctx context.Context) ([]Order, error) {
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
}

func (r *repo) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *repo) ListByStatus(ctx context.Context, status Status) ([]Order, error) {
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC, id DESC`, string(status))
}

func (r *repo) ListByUserAndStatus(ctx context.Context, userID int64, status Status) ([]Order, error) {
	return r.query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC, id DESC`,
		userID, string(status))
}

func (r *repo) ListCreatedSince(ctx context.Context, since time.Time) ([]Order, error) {
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE created_at >= $1 ORDER BY created_at DESC, id DESC`, since)
}

// query loads the matching orders and then all of their items with one extra round trip.
func (r *repo) query(ctx context.Context, q string, args ...any) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.ShippingAddress, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Items = []Item{}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) loadItems(ctx context.Context, orders []Order) error {
	ids := make([]int64, len(orders))
	byID := make(map[int64]*Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		byID[orders[i].ID] = &orders[i]
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, price, subtotal
         FROM order_items WHERE order_id = ANY($1) ORDER BY id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("select order_items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it      Item
			orderID int64
		)
		if err := rows.Scan(&it.ID, &orderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price, &it.Subtotal); err != nil {
			return fmt.Errorf("scan order_item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	return nil
}

func notFound(id int64) error {
	return apperr.NotFound("ORDER_NOT_FOUND", "Order not found: %d", id)
}
