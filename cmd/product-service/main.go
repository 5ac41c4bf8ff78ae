package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/httpapi"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
)

const serviceName = "product-service"

func main() {
	var cfg config.Product
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
		zl.Fatal("product service stopped", zap.Error(err))
	}
}

func run(cfg config.Product, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OtelEndpoint, cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, db.SchemaProducts, zl); err != nil {
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

	publisher, err := events.NewPublisher(conn, cfg.Exchange)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var svc catalog.ProductService = catalog.NewService(catalog.NewPostgresRepository(pool), publisher, zl)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zl.Warn("redis unreachable, product reads go to the database", zap.Error(err))
		}
		svc = catalog.NewCachedService(svc, rdb, cfg.CacheTTL, zl)
	}

	router := httpapi.NewRouter(zl, httpapi.NewProductHandler(svc, zl).Routes)
	srv := httpapi.NewServer(cfg.HTTPAddr, router)

	zl.Info("starting", zap.Bool("cache", cfg.RedisAddr != ""))

	return httpapi.Serve(ctx, srv, zl, cfg.ShutdownTimeout)
}
