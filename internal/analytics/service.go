package analytics

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
)

// ConsumerName identifies this service in processed_events.
const ConsumerName = "analytics-service"

const defaultRecentHours = 24

var knownTypes = map[string]bool{
	events.EventTypeOrderCreated:       true,
	events.EventTypeOrderStatusUpdated: true,
	events.EventTypeOrderCancelled:     true,
	events.EventTypeProductCreated:     true,
	events.EventTypeProductUpdated:     true,
	events.EventTypeProductDeleted:     true,
	events.EventTypeStockUpdated:       true,
	events.EventTypeUserRegistered:     true,
	events.EventTypeUserUpdated:        true,
	events.EventTypeUserDeleted:        true,
}

type Service struct {
	repo   Repository
	dedup  bool
	logger *zap.Logger
	now    func() time.Time
}

// NewService returns the analytics service. With dedup set every event id is
// recorded and redeliveries are skipped; without it a redelivered event is
// folded again.
func NewService(repo Repository, dedup bool, logger *zap.Logger) *Service {
	return &Service{repo: repo, dedup: dedup, logger: logger, now: time.Now}
}

// Track logs one event and folds its delta into the summary.
func (s *Service) Track(ctx context.Context, eventID string, e Event, d Delta) error {
	var claim Claim
	if s.dedup {
		claim = Claim{Consumer: ConsumerName, EventID: eventID}
	}

	applied, err := s.repo.Apply(ctx, claim, e, d)
	if err != nil {
		return err
	}
	if !applied {
		return events.ErrDuplicate
	}

	logger.Debug(ctx, s.logger, "event tracked",
		zap.String("event_type", e.EventType),
		zap.Int64("entity_id", e.EntityID),
	)
	return nil
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	return s.repo.Summary(ctx)
}

// RebuildSummary discards the running totals and recomputes them from the log.
func (s *Service) RebuildSummary(ctx context.Context) (Summary, error) {
	sum, err := s.repo.Rebuild(ctx)
	if err != nil {
		return Summary{}, err
	}
	logger.Info(ctx, s.logger, "summary rebuilt",
		zap.Int64("total_orders", sum.TotalOrders),
		zap.String("total_revenue", sum.TotalRevenue.StringFixed(2)),
	)
	return sum, nil
}

func (s *Service) RecentEvents(ctx context.Context, hours int) ([]Event, error) {
	if hours <= 0 {
		hours = defaultRecentHours
	}
	return s.repo.Recent(ctx, s.now().Add(-time.Duration(hours)*time.Hour))
}

func (s *Service) EventsByType(ctx context.Context, eventType string) ([]Event, error) {
	t := strings.ToUpper(eventType)
	if !knownTypes[t] {
		return nil, apperr.Invalid("INVALID_EVENT_TYPE", "Invalid event type: %s", eventType)
	}
	return s.repo.ByType(ctx, t)
}

func (s *Service) EventsByUser(ctx context.Context, userID int64) ([]Event, error) {
	return s.repo.ByUser(ctx, userID)
}
