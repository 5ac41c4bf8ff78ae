package analytics

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
)

// fold describes how one routing key becomes a log row and a summary delta.
type fold struct {
	eventType string
	entity    string
	user      string
	delta     func(events.Fields) Delta
}

var folds = map[string]fold{
	events.RoutingKeyProductCreated: {
		eventType: events.EventTypeProductCreated,
		entity:    "productId",
		delta:     func(events.Fields) Delta { return Delta{Products: 1} },
	},
	events.RoutingKeyProductUpdated: {
		eventType: events.EventTypeProductUpdated,
		entity:    "productId",
	},
	events.RoutingKeyProductDeleted: {
		eventType: events.EventTypeProductDeleted,
		entity:    "productId",
		delta:     func(events.Fields) Delta { return Delta{Products: -1} },
	},
	events.RoutingKeyUserRegistered: {
		eventType: events.EventTypeUserRegistered,
		entity:    "userId",
		user:      "userId",
		delta:     func(events.Fields) Delta { return Delta{Users: 1} },
	},
	events.RoutingKeyUserDeleted: {
		eventType: events.EventTypeUserDeleted,
		entity:    "userId",
		user:      "userId",
		delta:     func(events.Fields) Delta { return Delta{Users: -1} },
	},
	events.RoutingKeyOrderCreated: {
		eventType: events.EventTypeOrderCreated,
		entity:    "orderId",
		user:      "userId",
		delta: func(f events.Fields) Delta {
			return Delta{Orders: 1, Revenue: f.Decimal("totalAmount")}
		},
	},
	events.RoutingKeyOrderStatusUpdated: {
		eventType: events.EventTypeOrderStatusUpdated,
		entity:    "orderId",
		user:      "userId",
	},
	events.RoutingKeyOrderCancelled: {
		eventType: events.EventTypeOrderCancelled,
		entity:    "orderId",
		user:      "userId",
	},
}

// Register subscribes the service to every routing key it folds.
func Register(c *events.Consumer, s *Service) {
	for key := range folds {
		c.Handle(key, s.Handler(key))
	}
}

// Handler returns the subscriber for routingKey.
func (s *Service) Handler(routingKey string) events.HandlerFunc {
	fd, ok := folds[routingKey]
	if !ok {
		return func(context.Context, []byte) error {
			return fmt.Errorf("analytics: no fold for %s", routingKey)
		}
	}

	return func(ctx context.Context, body []byte) error {
		f, err := events.Decode(body)
		if err != nil {
			return fmt.Errorf("decode %s: %w", routingKey, err)
		}

		e := Event{
			EventType: fd.eventType,
			EntityID:  f.Int64(fd.entity),
			Amount:    decimal.Zero,
			Metadata:  truncateMetadata(body),
		}
		if fd.user != "" && f.Has(fd.user) {
			uid := f.Int64(fd.user)
			e.UserID = &uid
		}

		var d Delta
		if fd.delta != nil {
			d = fd.delta(f)
			e.Amount = d.Revenue
		}
		return s.Track(ctx, f.EventID(), e, d)
	}
}
