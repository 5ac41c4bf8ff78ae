package events

import (
	"context"
	"errors"
	"fmt"
	"sort"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
)

// HandlerFunc processes one delivery body.
type HandlerFunc func(ctx context.Context, body []byte) error

var (
	// ErrDeliveriesClosed is returned by Run when the broker closes a delivery stream.
	ErrDeliveriesClosed = errors.New("deliveries channel closed")
	// ErrDuplicate is returned by handlers that skipped an already applied event.
	ErrDuplicate = errors.New("duplicate event")
)

const prefetch = 10

// Consumer binds one durable queue per registered routing key and feeds its
// deliveries to the handler. Every delivery is acked after the handler returns,
// even on error: there is no redelivery or dead letter queue.
type Consumer struct {
	open        func() (Channel, error)
	exchange    string
	queuePrefix string
	name        string
	handlers    map[string]HandlerFunc
	logger      *zap.Logger
}

func NewConsumer(conn *amqp.Connection, exchange, queuePrefix, name string, logger *zap.Logger) *Consumer {
	return newConsumer(func() (Channel, error) { return conn.Channel() }, exchange, queuePrefix, name, logger)
}

func newConsumer(open func() (Channel, error), exchange, queuePrefix, name string, logger *zap.Logger) *Consumer {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Consumer{
		open:        open,
		exchange:    exchange,
		queuePrefix: queuePrefix,
		name:        name,
		handlers:    make(map[string]HandlerFunc),
		logger:      logger,
	}
}

// Handle registers h for routingKey. It must be called before Run.
func (c *Consumer) Handle(routingKey string, h HandlerFunc) {
	c.handlers[routingKey] = h
}

// RoutingKeys returns the registered keys in a stable order.
func (c *Consumer) RoutingKeys() []string {
	keys := make([]string, 0, len(c.handlers))
	for k := range c.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Run consumes until ctx is cancelled or a delivery stream closes.
func (c *Consumer) Run(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("consumer %s: no handlers registered", c.name)
	}

	type subscription struct {
		routingKey string
		ch         Channel
		deliveries <-chan amqp.Delivery
	}

	subs := make([]subscription, 0, len(c.handlers))
	for _, key := range c.RoutingKeys() {
		ch, deliveries, err := c.subscribe(key)
		if err != nil {
			for _, s := range subs {
				_ = s.ch.Close()
			}
			return err
		}
		subs = append(subs, subscription{routingKey: key, ch: ch, deliveries: deliveries})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range subs {
		h := c.handlers[s.routingKey]
		g.Go(func() error {
			defer s.ch.Close()
			return c.loop(gctx, s.routingKey, s.deliveries, h)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Consumer) subscribe(routingKey string) (Channel, <-chan amqp.Delivery, error) {
	ch, err := c.open()
	if err != nil {
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	queue := QueueName(c.queuePrefix, routingKey)
	if err := declareExchange(ch, c.exchange); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", c.exchange, err)
	}
	if err := declareQueue(ch, c.exchange, queue, routingKey); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("qos %s: %w", queue, err)
	}

	deliveries, err := ch.Consume(
		queue,
		c.name, // consumer tag
		false,  // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("consume %s: %w", queue, err)
	}

	c.logger.Info("consuming", zap.String("queue", queue), zap.String("routing_key", routingKey))
	return ch, deliveries, nil
}

func (c *Consumer) loop(ctx context.Context, routingKey string, deliveries <-chan amqp.Delivery, h HandlerFunc) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping consumer", zap.String("routing_key", routingKey))
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: %w", routingKey, ErrDeliveriesClosed)
			}
			c.dispatch(ctx, routingKey, d, h)
			if err := d.Ack(false); err != nil {
				c.logger.Warn("ack failed", zap.String("routing_key", routingKey), zap.Error(err))
			}
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, routingKey string, d amqp.Delivery, h HandlerFunc) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier(d.Headers))
	ctx, span := otel.Tracer("events").Start(ctx, "consume "+routingKey,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination", routingKey),
			attribute.String("messaging.message_id", d.MessageId),
		),
	)
	defer span.End()

	if d.CorrelationId != "" {
		ctx = logger.WithCorrelationID(ctx, d.CorrelationId)
	}

	defer func() {
		if r := recover(); r != nil {
			observability.EventsConsumed.WithLabelValues(routingKey, observability.OutcomeError).Inc()
			logger.Error(ctx, c.logger, "handler panic", zap.String("routing_key", routingKey), zap.Any("panic", r))
		}
	}()

	err := h(ctx, d.Body)
	if errors.Is(err, ErrDuplicate) {
		observability.EventsConsumed.WithLabelValues(routingKey, observability.OutcomeDuplicate).Inc()
		logger.Info(ctx, c.logger, "duplicate event skipped",
			zap.String("routing_key", routingKey),
			zap.String("message_id", d.MessageId),
		)
		return
	}
	if err != nil {
		span.RecordError(err)
		observability.EventsConsumed.WithLabelValues(routingKey, observability.OutcomeError).Inc()
		logger.Error(ctx, c.logger, "handle message error",
			zap.String("routing_key", routingKey),
			zap.String("message_id", d.MessageId),
			zap.Error(err),
		)
		return
	}
	observability.EventsConsumed.WithLabelValues(routingKey, observability.OutcomeOK).Inc()
}
