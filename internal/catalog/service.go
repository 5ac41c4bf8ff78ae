package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
)

// DefaultLowStockThreshold is used when a caller asks for low stock without a threshold.
const DefaultLowStockThreshold = 10

// ProductService is the product service's use case surface.
type ProductService interface {
	Get(ctx context.Context, id int64) (Product, error)
	ListActive(ctx context.Context) ([]Product, error)
	ListByCategory(ctx context.Context, category string) ([]Product, error)
	Search(ctx context.Context, term string) ([]Product, error)
	ListLowStock(ctx context.Context, threshold int) ([]Product, error)
	Create(ctx context.Context, in CreateInput) (Product, error)
	Update(ctx context.Context, id int64, in UpdateInput) (Product, error)
	Delete(ctx context.Context, id int64) error
	AdjustStock(ctx context.Context, id int64, delta int) (Product, error)
	Reserve(ctx context.Context, id int64, qty int) (bool, error)
	Release(ctx context.Context, id int64, qty int) error
}

type Service struct {
	repo   Repository
	sender events.Sender
	logger *zap.Logger
}

func NewService(repo Repository, sender events.Sender, logger *zap.Logger) *Service {
	return &Service{repo: repo, sender: sender, logger: logger}
}

var _ ProductService = (*Service)(nil)

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListActive(ctx context.Context) ([]Product, error) {
	return s.repo.ListActive(ctx)
}

func (s *Service) ListByCategory(ctx context.Context, category string) ([]Product, error) {
	return s.repo.ListByCategory(ctx, category)
}

func (s *Service) Search(ctx context.Context, term string) ([]Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.repo.ListActive(ctx)
	}
	return s.repo.Search(ctx, term)
}

func (s *Service) ListLowStock(ctx context.Context, threshold int) ([]Product, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return s.repo.ListLowStock(ctx, threshold)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Product, error) {
	if in.Stock < 0 {
		return Product{}, apperr.Invalid("INVALID_PRODUCT", "Stock cannot be negative")
	}
	if in.Price.IsNegative() {
		return Product{}, apperr.Invalid("INVALID_PRODUCT", "Price cannot be negative")
	}

	p := Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		ImageURL:    in.ImageURL,
		Active:      true,
	}
	if err := s.repo.Create(ctx, &p); err != nil {
		return Product{}, err
	}

	logger.Info(ctx, s.logger, "product created", zap.Int64("product_id", p.ID), zap.String("name", p.Name))
	events.Emit(ctx, s.sender, events.RoutingKeyProductCreated, p.ID, &events.ProductCreated{
		Meta:      events.Meta{EventType: events.EventTypeProductCreated},
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price.InexactFloat64(),
		Category:  p.Category,
	}, s.logger)
	return p, nil
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}

	in.apply(&p)
	if p.Stock < 0 {
		return Product{}, apperr.Invalid("INVALID_PRODUCT", "Stock cannot be negative")
	}
	if p.Price.IsNegative() {
		return Product{}, apperr.Invalid("INVALID_PRODUCT", "Price cannot be negative")
	}

	if err := s.repo.Update(ctx, &p); err != nil {
		return Product{}, err
	}

	events.Emit(ctx, s.sender, events.RoutingKeyProductUpdated, p.ID, &events.ProductUpdated{
		Meta:      events.Meta{EventType: events.EventTypeProductUpdated},
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price.InexactFloat64(),
		Stock:     p.Stock,
		Category:  p.Category,
		Active:    p.Active,
	}, s.logger)
	return p, nil
}

// Delete deactivates the product; the row is kept for order history.
func (s *Service) Delete(ctx context.Context, id int64) error {
	p, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return err
	}

	logger.Info(ctx, s.logger, "product deactivated", zap.Int64("product_id", id))
	events.Emit(ctx, s.sender, events.RoutingKeyProductDeleted, p.ID, &events.ProductDeleted{
		Meta:      events.Meta{EventType: events.EventTypeProductDeleted},
		ProductID: p.ID,
		Name:      p.Name,
	}, s.logger)
	return nil
}

// AdjustStock applies a signed delta. A result below zero is refused.
func (s *Service) AdjustStock(ctx context.Context, id int64, delta int) (Product, error) {
	p, ok, err := s.repo.ChangeStock(ctx, id, delta)
	if err != nil {
		return Product{}, err
	}
	if !ok {
		return Product{}, apperr.InsufficientStock("INSUFFICIENT_STOCK",
			"Insufficient stock for product: %s. Available: %d, Requested: %d", p.Name, p.Stock, -delta)
	}
	s.stockChanged(ctx, p)
	return p, nil
}

// Reserve takes qty units out of stock atomically. It reports false, without
// changing anything, when fewer than qty units are available.
func (s *Service) Reserve(ctx context.Context, id int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, apperr.Invalid("INVALID_QUANTITY", "Quantity must be positive")
	}
	p, ok, err := s.repo.ChangeStock(ctx, id, -qty)
	if err != nil {
		return false, err
	}
	if !ok {
		logger.Info(ctx, s.logger, "reservation refused",
			zap.Int64("product_id", id), zap.Int("available", p.Stock), zap.Int("requested", qty))
		return false, nil
	}
	s.stockChanged(ctx, p)
	return true, nil
}

// Release puts qty units back into stock.
func (s *Service) Release(ctx context.Context, id int64, qty int) error {
	if qty <= 0 {
		return apperr.Invalid("INVALID_QUANTITY", "Quantity must be positive")
	}
	p, _, err := s.repo.ChangeStock(ctx, id, qty)
	if err != nil {
		return err
	}
	s.stockChanged(ctx, p)
	return nil
}

func (s *Service) stockChanged(ctx context.Context, p Product) {
	events.Emit(ctx, s.sender, events.RoutingKeyStockUpdated, p.ID, &events.StockUpdated{
		Meta:      events.Meta{EventType: events.EventTypeStockUpdated},
		ProductID: p.ID,
		Stock:     p.Stock,
	}, s.logger)
}
