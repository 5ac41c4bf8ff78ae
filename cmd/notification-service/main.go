package main

import (
	"context"
	"fmt"
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
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/notification"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
)

const serviceName = "notification-service"

func main() {
	var cfg config.Notification
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
		zl.Fatal("notification service stopped", zap.Error(err))
	}
}

func run(cfg config.Notification, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OtelEndpoint, cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	channel, err := newChannel(cfg, zl)
	if err != nil {
		return err
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, db.SchemaNotifications, zl); err != nil {
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

	svc := notification.NewService(notification.NewPostgresRepository(pool), channel, notification.Options{
		Dedup:             cfg.Dedup,
		AdminUserID:       cfg.AdminUserID,
		LowStockThreshold: cfg.LowStockThreshold,
	}, zl)

	consumer := events.NewConsumer(conn, cfg.Exchange, cfg.QueuePrefix, serviceName, zl)
	notification.Register(consumer, svc)

	router := httpapi.NewRouter(zl, httpapi.NewNotificationHandler(svc, zl).Routes)
	srv := httpapi.NewServer(cfg.HTTPAddr, router)

	zl.Info("starting",
		zap.String("channel", cfg.Channel),
		zap.Strings("routing_keys", consumer.RoutingKeys()),
		zap.Bool("dedup", cfg.Dedup),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpapi.Serve(gctx, srv, zl, cfg.ShutdownTimeout) })
	g.Go(func() error { return consumer.Run(gctx) })
	return g.Wait()
}

func newChannel(cfg config.Notification, zl *zap.Logger) (notification.Channel, error) {
	switch cfg.Channel {
	case notification.ChannelLog, "":
		return notification.NewLogChannel(zl, cfg.LogDelay), nil
	case notification.ChannelSMTP:
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("smtp channel needs SMTP_HOST")
		}
		return notification.NewSMTPChannel(notification.SMTPConfig{
			Host:              cfg.SMTP.Host,
			Port:              cfg.SMTP.Port,
			User:              cfg.SMTP.User,
			Password:          cfg.SMTP.Password,
			From:              cfg.SMTP.From,
			RecipientTemplate: cfg.SMTP.RecipientTemplate,
		}, zl), nil
	default:
		return nil, fmt.Errorf("unknown notification channel %q", cfg.Channel)
	}
}
