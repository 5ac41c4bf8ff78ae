package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeDuplicate = "duplicate"

	// OutcomeInsufficient is a reservation refused for lack of stock.
	OutcomeInsufficient = "insufficient"
	OutcomeReleased     = "released"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecommerce",
		Name:      "events_published_total",
		Help:      "Events handed to the broker, by routing key and outcome.",
	}, []string{"routing_key", "outcome"})

	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecommerce",
		Name:      "events_consumed_total",
		Help:      "Deliveries processed by subscribers, by routing key and outcome.",
	}, []string{"routing_key", "outcome"})

	OutboxDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecommerce",
		Name:      "outbox_dispatched_total",
		Help:      "Outbox rows drained by the dispatcher, by outcome.",
	}, []string{"outcome"})

	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecommerce",
		Name:      "stock_reservations_total",
		Help:      "Stock reservation calls made while creating orders, by outcome.",
	}, []string{"outcome"})
)
