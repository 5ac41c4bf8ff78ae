package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	Get(ctx context.Context, id int64) (Product, error)
	ListActive(ctx context.Context) ([]Product, error)
	ListByCategory(ctx context.Context, category string) ([]Product, error)
	Search(ctx context.Context, term string) ([]Product, error)
	ListLowStock(ctx context.Context, threshold int) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Deactivate(ctx context.Context, id int64) (Product, error)
	ChangeStock(ctx context.Context, id int64, delta int) (Product, bool, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const productColumns = `id, name, description, price, stock, category, image_url, active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.ImageURL, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func notFound(id int64) error {
	return apperr.NotFound("PRODUCT_NOT_FOUND", "Product not found: %d", id)
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, notFound(id)
		}
		return Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE active ORDER BY id`)
}

func (r *PostgresRepository) ListByCategory(ctx context.Context, category string) ([]Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE active AND category = $1 ORDER BY id`, category)
}

func (r *PostgresRepository) Search(ctx context.Context, term string) ([]Product, error) {
	return r.list(ctx,
		`SELECT `+productColumns+` FROM products WHERE active AND name ILIKE '%' || $1 || '%' ORDER BY id`,
		term)
}

func (r *PostgresRepository) ListLowStock(ctx context.Context, threshold int) ([]Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE active AND stock < $1 ORDER BY stock, id`, threshold)
}

func (r *PostgresRepository) list(ctx context.Context, q string, args ...any) ([]Product, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p *Product) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (name, description, price, stock, category, image_url, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, p.Name, p.Description, p.Price, p.Stock, p.Category, p.ImageURL, p.Active).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *Product) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, stock = $5, category = $6, image_url = $7, active = $8, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.ImageURL, p.Active).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound(p.ID)
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// Deactivate soft deletes a product and returns its final state.
func (r *PostgresRepository) Deactivate(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `
		UPDATE products SET active = FALSE, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, notFound(id)
		}
		return Product{}, fmt.Errorf("deactivate product: %w", err)
	}
	return p, nil
}

// ChangeStock adds delta to the stock of a product under a row lock. When the
// result would be negative nothing changes and ok is false.
func (r *PostgresRepository) ChangeStock(ctx context.Context, id int64, delta int) (Product, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, false, notFound(id)
		}
		return Product{}, false, fmt.Errorf("lock product: %w", err)
	}

	if p.Stock+delta < 0 {
		return p, false, nil
	}

	err = tx.QueryRow(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1 RETURNING stock, updated_at`,
		id, delta,
	).Scan(&p.Stock, &p.UpdatedAt)
	if err != nil {
		return Product{}, false, fmt.Errorf("update stock: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Product{}, false, fmt.Errorf("commit: %w", err)
	}
	return p, true, nil
}
