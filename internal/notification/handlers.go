package notification

import (
	"context"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
)

// Register subscribes the service to the events that trigger a notification.
func Register(c *events.Consumer, s *Service) {
	c.Handle(events.RoutingKeyOrderCreated, s.handler(events.RoutingKeyOrderCreated, s.OrderConfirmation))
	c.Handle(events.RoutingKeyOrderStatusUpdated, s.handler(events.RoutingKeyOrderStatusUpdated, s.OrderStatusUpdate))
	c.Handle(events.RoutingKeyUserRegistered, s.handler(events.RoutingKeyUserRegistered, s.Welcome))
	c.Handle(events.RoutingKeyStockUpdated, s.handler(events.RoutingKeyStockUpdated, s.StockUpdated))
}

func (s *Service) handler(routingKey string, fn func(context.Context, events.Fields) error) events.HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		f, err := events.Decode(body)
		if err != nil {
			return fmt.Errorf("decode %s: %w", routingKey, err)
		}

		first, err := s.claim(ctx, f.EventID())
		if err != nil {
			return err
		}
		if !first {
			return events.ErrDuplicate
		}
		return fn(ctx, f)
	}
}
