package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// Schema names one service's migration set under migrations/.
type Schema string

const (
	SchemaOrders        Schema = "orders"
	SchemaProducts      Schema = "products"
	SchemaUsers         Schema = "users"
	SchemaAnalytics     Schema = "analytics"
	SchemaNotifications Schema = "notifications"
)

// RunMigrations applies all pending migrations of schema.
// Each schema keeps its own version table so several schemas can share a database.
func RunMigrations(dsn string, schema Schema, logger *zap.Logger) error {
	db, err := openDB(dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer db.Close()

	sourceDriver, err := iofs.New(migrationsFS, "migrations/"+string(schema))
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations_" + string(schema),
	})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied",
		zap.String("schema", string(schema)),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)

	return nil
}
