package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
)

const publishTimeout = 3 * time.Second

// Sender hands one serialized message to the broker.
type Sender interface {
	Send(ctx context.Context, msg Outgoing) error
}

type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
}

// NewPublisher opens a dedicated channel and declares the exchange so publish
// never fails due to missing infra.
func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := newPublisher(ch, exchange)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return p, nil
}

func newPublisher(ch Channel, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := declareExchange(ch, exchange); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) Send(ctx context.Context, msg Outgoing) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(headers))

	pub := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.EventID,
		Type:          msg.EventType,
		CorrelationId: logger.CorrelationID(ctx),
		Timestamp:     time.Now().UTC(),
		Headers:       headers,
		Body:          msg.Body,
	}

	p.mu.Lock()
	err := p.ch.PublishWithContext(pubCtx, p.exchange, msg.RoutingKey, false, false, pub)
	p.mu.Unlock()

	if err != nil {
		observability.EventsPublished.WithLabelValues(msg.RoutingKey, observability.OutcomeError).Inc()
		return fmt.Errorf("publish %s: %w", msg.RoutingKey, err)
	}
	observability.EventsPublished.WithLabelValues(msg.RoutingKey, observability.OutcomeOK).Inc()
	return nil
}

// FireAndForget sends msg and only logs a failure. The state change that
// produced msg is already committed and is not undone.
func FireAndForget(ctx context.Context, s Sender, msg Outgoing, log *zap.Logger) {
	if s == nil {
		return
	}
	if err := s.Send(ctx, msg); err != nil {
		logger.Error(ctx, log, "event publish failed",
			zap.String("routing_key", msg.RoutingKey),
			zap.String("event_id", msg.EventID),
			zap.String("aggregate_id", msg.AggregateID),
			zap.Error(err),
		)
		return
	}
	logger.Debug(ctx, log, "event published",
		zap.String("routing_key", msg.RoutingKey),
		zap.String("event_id", msg.EventID),
	)
}

// Emit serializes p and fire-and-forgets it.
func Emit(ctx context.Context, s Sender, routingKey string, aggregateID int64, p Payload, log *zap.Logger) {
	msg, err := NewOutgoing(routingKey, aggregateID, p)
	if err != nil {
		logger.Error(ctx, log, "event build failed", zap.String("routing_key", routingKey), zap.Error(err))
		return
	}
	FireAndForget(ctx, s, msg, log)
}
