package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
)

// ConsumerName identifies this service in processed_events.
const ConsumerName = "notification-service"

const (
	DefaultAdminUserID       int64 = 1
	DefaultLowStockThreshold       = 10
	defaultRecentLimit             = 50
)

type Options struct {
	Dedup             bool
	AdminUserID       int64
	LowStockThreshold int
}

type Service struct {
	repo    Repository
	channel Channel
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(repo Repository, channel Channel, opts Options, logger *zap.Logger) *Service {
	if opts.AdminUserID == 0 {
		opts.AdminUserID = DefaultAdminUserID
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = DefaultLowStockThreshold
	}
	return &Service{repo: repo, channel: channel, opts: opts, logger: logger, now: time.Now}
}

// claim reports whether the event should be handled. Without dedup every
// delivery is handled.
func (s *Service) claim(ctx context.Context, eventID string) (bool, error) {
	if !s.opts.Dedup {
		return true, nil
	}
	return s.repo.Claim(ctx, ConsumerName, eventID)
}

// send renders the template, hands it to the channel and records the attempt.
// A delivery failure is logged and stored as an unsent notification.
func (s *Service) send(ctx context.Context, userID int64, recipient string, name templateName, data any) error {
	subject, body, err := render(name, data)
	if err != nil {
		return err
	}

	n := Notification{
		UserID:    userID,
		Recipient: recipient,
		Type:      TypeEmail,
		Subject:   subject,
		Message:   body,
	}

	if err := s.channel.Deliver(ctx, Message{UserID: userID, Recipient: recipient, Subject: subject, Body: body}); err != nil {
		logger.Error(ctx, s.logger, "notification delivery failed",
			zap.Int64("user_id", userID),
			zap.String("subject", subject),
			zap.Error(err),
		)
	} else {
		sentAt := s.now().UTC()
		n.Sent = true
		n.SentAt = &sentAt
	}

	if err := s.repo.Save(ctx, &n); err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

// checkFields fails a message that lacks any of keys.
func checkFields(eventType string, f events.Fields, keys ...string) error {
	for _, k := range keys {
		if !f.Has(k) {
			return fmt.Errorf("%s: missing %s", eventType, k)
		}
	}
	return nil
}

func (s *Service) OrderConfirmation(ctx context.Context, f events.Fields) error {
	if err := checkFields(events.EventTypeOrderCreated, f, "orderId", "userId"); err != nil {
		return err
	}
	return s.send(ctx, f.Int64("userId"), "", tmplOrderConfirmation, orderConfirmationData{
		OrderID:     f.Int64("orderId"),
		TotalAmount: f.Decimal("totalAmount").StringFixed(2),
	})
}

func (s *Service) OrderStatusUpdate(ctx context.Context, f events.Fields) error {
	if err := checkFields(events.EventTypeOrderStatusUpdated, f, "orderId", "userId"); err != nil {
		return err
	}
	return s.send(ctx, f.Int64("userId"), "", tmplOrderStatus, orderStatusData{
		OrderID:   f.Int64("orderId"),
		OldStatus: f.String("oldStatus"),
		NewStatus: f.String("newStatus"),
	})
}

func (s *Service) Welcome(ctx context.Context, f events.Fields) error {
	if err := checkFields(events.EventTypeUserRegistered, f, "userId", "email"); err != nil {
		return err
	}
	return s.send(ctx, f.Int64("userId"), f.String("email"), tmplWelcome, welcomeData{
		FullName: f.String("fullName"),
		Email:    f.String("email"),
	})
}

// StockUpdated alerts the admin when stock falls below the threshold.
func (s *Service) StockUpdated(ctx context.Context, f events.Fields) error {
	if !f.Has("stock") {
		return nil
	}
	stock := f.Int64("stock")
	if stock >= int64(s.opts.LowStockThreshold) {
		return nil
	}
	id := f.Int64("productId")
	return s.send(ctx, s.opts.AdminUserID, "", tmplLowStock, lowStockData{
		ProductID:   id,
		ProductName: fmt.Sprintf("Product #%d", id),
		Stock:       stock,
	})
}

func (s *Service) ForUser(ctx context.Context, userID int64) ([]Notification, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Recent(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return s.repo.ListRecent(ctx, limit)
}
