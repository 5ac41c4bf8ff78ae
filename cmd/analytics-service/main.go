package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/analytics"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/httpapi"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
)

const serviceName = "analytics-service"

func main() {
	var cfg config.Analytics
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
		zl.Fatal("analytics service stopped", zap.Error(err))
	}
}

func run(cfg config.Analytics, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OtelEndpoint, cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, db.SchemaAnalytics, zl); err != nil {
			return err
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := events.Dial(cfg.RabbitMQURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	svc := analytics.NewService(analytics.NewPostgresRepository(pool), cfg.Dedup, zl)

	consumer := events.NewConsumer(conn, cfg.Exchange, cfg.QueuePrefix, serviceName, zl)
	analytics.Register(consumer, svc)

	router := httpapi.NewRouter(zl, httpapi.NewAnalyticsHandler(svc, zl).Routes)
	srv := httpapi.NewServer(cfg.HTTPAddr, router)

	zl.Info("starting",
		zap.Strings("routing_keys", consumer.RoutingKeys()),
		zap.Bool("dedup", cfg.Dedup),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpapi.Serve(gctx, srv, zl, cfg.ShutdownTimeout) })
	g.Go(func() error { return consumer.Run(gctx) })
	return g.Wait()
}
