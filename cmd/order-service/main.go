package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/httpapi"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/outbox"
)

const serviceName = "order-service"

func main() {
	var cfg config.Order
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Env: cfg.Env})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zl = zl.With(zap.String("service", serviceName))

	if err := run(cfg, zl); err != nil {
		zl.Fatal("order service stopped", zap.Error(err))
	}
}

func run(cfg config.Order, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OtelEndpoint, cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	policy, err := order.ParsePolicy(cfg.ReservationPolicy)
	if err != nil {
		return err
	}
	mode, err := events.ParseMode(cfg.PublishMode)
	if err != nil {
		return err
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, db.SchemaOrders, zl); err != nil {
			return err
		}
	}

	sqlDB, err := db.OpenSQL(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	conn, err := events.Dial(cfg.RabbitMQURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	publisher, err := events.NewPublisher(conn, cfg.Exchange)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var opts []inventory.Option
	if cfg.BreakerEnabled {
		opts = append(opts, inventory.WithBreaker(inventory.DefaultBreakerSettings()))
	}
	products, err := inventory.NewClient(cfg.ProductsURL, cfg.InventoryTimeout, opts...)
	if err != nil {
		return err
	}

	svc := order.NewService(
		order.NewRepository(sqlDB),
		order.NewBuilder(products),
		order.NewCoordinator(products, policy, zl),
		publisher,
		mode,
		zl,
	)

	router := httpapi.NewRouter(zl, httpapi.NewOrderHandler(svc, zl).Routes)
	srv := httpapi.NewServer(cfg.HTTPAddr, router)

	zl.Info("starting",
		zap.String("reservation_policy", string(policy)),
		zap.String("publish_mode", string(mode)),
		zap.Bool("inventory_breaker", cfg.BreakerEnabled),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpapi.Serve(gctx, srv, zl, cfg.ShutdownTimeout) })
	if mode == events.ModeOutbox {
		dispatcher := outbox.NewDispatcher(sqlDB, publisher, cfg.OutboxInterval, cfg.OutboxBatchSize, zl)
		g.Go(func() error { return dispatcher.Run(gctx) })
	}
	return g.Wait()
}
