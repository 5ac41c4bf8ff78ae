package order

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/observability"
)

// StockReserver is the remote side of a reservation.
type StockReserver interface {
	Reserve(ctx context.Context, productID int64, qty int) (bool, error)
	Release(ctx context.Context, productID int64, qty int) error
}

// Policy decides what happens to earlier reservations when a later step fails.
type Policy string

const (
	// PolicyBestEffort keeps whatever was reserved before the failure.
	PolicyBestEffort Policy = "best-effort"
	// PolicyCompensating releases earlier reservations, newest first.
	PolicyCompensating Policy = "compensating"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyBestEffort:
		return PolicyBestEffort, nil
	case PolicyCompensating:
		return PolicyCompensating, nil
	default:
		return "", fmt.Errorf("unknown reservation policy %q", s)
	}
}

// Coordinator reserves stock for every line of an order, one line at a time.
type Coordinator struct {
	stock  StockReserver
	policy Policy
	logger *zap.Logger
}

func NewCoordinator(stock StockReserver, policy Policy, logger *zap.Logger) *Coordinator {
	return &Coordinator{stock: stock, policy: policy, logger: logger}
}

// Reservation holds the lines reserved for one order until it is confirmed.
type Reservation struct {
	c         *Coordinator
	lines     []Item
	confirmed bool
}

// Reserve calls the stock service for each line in input order. On failure the
// returned error names the offending product and, under the compensating
// policy, the lines reserved so far have already been released.
func (c *Coordinator) Reserve(ctx context.Context, items []Item) (*Reservation, error) {
	r := &Reservation{c: c, lines: make([]Item, 0, len(items))}

	for _, it := range items {
		ok, err := c.stock.Reserve(ctx, it.ProductID, it.Quantity)
		if err != nil {
			observability.Reservations.WithLabelValues(observability.OutcomeError).Inc()
			r.Release(ctx)
			return nil, apperr.Wrap(apperr.KindInvalid, "INVALID_ORDER", err,
				"Failed to reserve stock for product: %d", it.ProductID)
		}
		if !ok {
			observability.Reservations.WithLabelValues(observability.OutcomeInsufficient).Inc()
			r.Release(ctx)
			return nil, apperr.InsufficientStock("INSUFFICIENT_STOCK",
				"Insufficient stock for product: %s", it.ProductName)
		}
		observability.Reservations.WithLabelValues(observability.OutcomeOK).Inc()
		r.lines = append(r.lines, it)
	}

	return r, nil
}

// Confirm makes the reservation final; a later Release is a no-op.
func (r *Reservation) Confirm() {
	r.confirmed = true
}

// Release gives back every reserved line in reverse order when the policy is
// compensating. Failures are logged and do not stop the remaining releases.
func (r *Reservation) Release(ctx context.Context) {
	if r == nil || r.confirmed || r.c.policy != PolicyCompensating {
		return
	}
	ctx = context.WithoutCancel(ctx)

	for i := len(r.lines) - 1; i >= 0; i-- {
		it := r.lines[i]
		if err := r.c.stock.Release(ctx, it.ProductID, it.Quantity); err != nil {
			logger.Error(ctx, r.c.logger, "release reserved stock failed",
				zap.Int64("product_id", it.ProductID),
				zap.Int("quantity", it.Quantity),
				zap.Error(err),
			)
			continue
		}
		observability.Reservations.WithLabelValues(observability.OutcomeReleased).Inc()
	}
	r.lines = nil
}
