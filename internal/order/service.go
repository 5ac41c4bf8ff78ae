package order

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
)

const defaultRecentDays = 7

// Service runs the order lifecycle: build, reserve, persist, announce.
type Service struct {
	repo    Repository
	builder *Builder
	coord   *Coordinator
	sender  events.Sender
	mode    events.Mode
	logger  *zap.Logger
}

func NewService(repo Repository, builder *Builder, coord *Coordinator, sender events.Sender, mode events.Mode, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		builder: builder,
		coord:   coord,
		sender:  sender,
		mode:    mode,
		logger:  logger,
	}
}

// CreateOrder builds the order, reserves stock for every line, stores it as
// CONFIRMED and publishes order.created.
func (s *Service) CreateOrder(ctx context.Context, req CreateRequest) (*Order, error) {
	ctx, span := otel.Tracer("order").Start(ctx, "order.create")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.user_id", req.UserID), attribute.Int("order.lines", len(req.Items)))

	o, err := s.builder.Build(ctx, req)
	if err != nil {
		return nil, err
	}

	reservation, err := s.coord.Reserve(ctx, o.Items)
	if err != nil {
		logger.Warn(ctx, s.logger, "stock reservation failed", zap.Int64("user_id", o.UserID), zap.Error(err))
		return nil, err
	}

	o.Status = StatusConfirmed
	if err := s.write(ctx, o, s.repo.Create, orderCreated); err != nil {
		reservation.Release(ctx)
		return nil, err
	}
	reservation.Confirm()

	span.SetAttributes(attribute.Int64("order.id", o.ID))
	logger.Info(ctx, s.logger, "order created",
		zap.Int64("order_id", o.ID),
		zap.Int64("user_id", o.UserID),
		zap.String("total", o.TotalAmount.StringFixed(2)),
	)
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) ListByStatus(ctx context.Context, status string) ([]Order, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByStatus(ctx, st)
}

func (s *Service) ListByUserAndStatus(ctx context.Context, userID int64, status string) ([]Order, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByUserAndStatus(ctx, userID, st)
}

// ListRecent returns orders created in the last days days (7 when days <= 0).
func (s *Service) ListRecent(ctx context.Context, days int) ([]Order, error) {
	if days <= 0 {
		days = defaultRecentDays
	}
	return s.repo.ListCreatedSince(ctx, time.Now().UTC().AddDate(0, 0, -days))
}

// UpdateStatus overwrites the status with any known stored value; transitions
// are not checked.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (*Order, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if st == StatusPending {
		return nil, apperr.Invalid("INVALID_STATUS", "Invalid order status: %s", status)
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	old := o.Status
	o.Status = st
	if err := s.write(ctx, o, s.repo.Save, statusUpdated(old)); err != nil {
		return nil, err
	}

	logger.Info(ctx, s.logger, "order status updated",
		zap.Int64("order_id", o.ID),
		zap.String("old_status", string(old)),
		zap.String("new_status", string(st)),
	)
	return o, nil
}

// CancelOrder marks the order CANCELLED unless it has shipped. Reserved stock
// is not returned.
func (s *Service) CancelOrder(ctx context.Context, id int64) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.Cancellable() {
		return nil, apperr.Invalid("INVALID_ORDER_STATE", "Cannot cancel order with status: %s", o.Status)
	}

	o.Status = StatusCancelled
	if err := s.write(ctx, o, s.repo.Save, orderCancelled); err != nil {
		return nil, err
	}

	logger.Info(ctx, s.logger, "order cancelled", zap.Int64("order_id", o.ID))
	return o, nil
}

type storeFunc func(ctx context.Context, o *Order, emit EmitFunc) error

type eventFunc func(o *Order) (string, events.Payload)

// write persists o and announces it. In outbox mode the message is stored in
// the same transaction; in direct mode it is published after commit and a
// broker failure is only logged.
func (s *Service) write(ctx context.Context, o *Order, store storeFunc, event eventFunc) error {
	if s.mode == events.ModeOutbox {
		return store(ctx, o, func(o *Order) ([]events.Outgoing, error) {
			key, p := event(o)
			msg, err := events.NewOutgoing(key, o.ID, p)
			if err != nil {
				return nil, err
			}
			return []events.Outgoing{msg}, nil
		})
	}

	if err := store(ctx, o, nil); err != nil {
		return err
	}
	key, p := event(o)
	events.Emit(ctx, s.sender, key, o.ID, p, s.logger)
	return nil
}

func orderCreated(o *Order) (string, events.Payload) {
	return events.RoutingKeyOrderCreated, &events.OrderCreated{
		Meta:        events.Meta{EventType: events.EventTypeOrderCreated},
		OrderID:     o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount.InexactFloat64(),
		Status:      string(o.Status),
		ItemCount:   len(o.Items),
	}
}

func statusUpdated(old Status) eventFunc {
	return func(o *Order) (string, events.Payload) {
		return events.RoutingKeyOrderStatusUpdated, &events.OrderStatusUpdated{
			Meta:      events.Meta{EventType: events.EventTypeOrderStatusUpdated},
			OrderID:   o.ID,
			UserID:    o.UserID,
			OldStatus: string(old),
			NewStatus: string(o.Status),
		}
	}
}

func orderCancelled(o *Order) (string, events.Payload) {
	return events.RoutingKeyOrderCancelled, &events.OrderCancelled{
		Meta:    events.Meta{EventType: events.EventTypeOrderCancelled},
		OrderID: o.ID,
		UserID:  o.UserID,
	}
}
