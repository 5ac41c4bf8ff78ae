package user

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
)

type Service struct {
	repo   Repository
	sender events.Sender
	logger *zap.Logger
}

func NewService(repo Repository, sender events.Sender, logger *zap.Logger) *Service {
	return &Service{repo: repo, sender: sender, logger: logger}
}

// Register creates an active user and announces it with user.registered.
// Emails are stored lower case so uniqueness ignores case.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return User{}, apperr.Invalid("INVALID_USER", "Email is required")
	}

	u := User{Email: email, FullName: in.FullName, Phone: in.Phone, Active: true}
	if err := s.repo.Create(ctx, &u); err != nil {
		return User{}, err
	}

	logger.Info(ctx, s.logger, "user registered", zap.Int64("user_id", u.ID))
	events.Emit(ctx, s.sender, events.RoutingKeyUserRegistered, u.ID, &events.UserRegistered{
		Meta:     events.Meta{EventType: events.EventTypeUserRegistered},
		UserID:   u.ID,
		Email:    u.Email,
		FullName: u.FullName,
	}, s.logger)
	return u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) ListActive(ctx context.Context) ([]User, error) {
	return s.repo.ListActive(ctx)
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.FullName != nil {
		u.FullName = *in.FullName
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if err := s.repo.Update(ctx, &u); err != nil {
		return User{}, err
	}

	events.Emit(ctx, s.sender, events.RoutingKeyUserUpdated, u.ID, &events.UserUpdated{
		Meta:     events.Meta{EventType: events.EventTypeUserUpdated},
		UserID:   u.ID,
		Email:    u.Email,
		FullName: u.FullName,
	}, s.logger)
	return u, nil
}

// Delete deactivates the user.
func (s *Service) Delete(ctx context.Context, id int64) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	u.Active = false
	if err := s.repo.Update(ctx, &u); err != nil {
		return err
	}

	logger.Info(ctx, s.logger, "user deactivated", zap.Int64("user_id", id))
	events.Emit(ctx, s.sender, events.RoutingKeyUserDeleted, u.ID, &events.UserDeleted{
		Meta:   events.Meta{EventType: events.EventTypeUserDeleted},
		UserID: u.ID,
		Email:  u.Email,
	}, s.logger)
	return nil
}
