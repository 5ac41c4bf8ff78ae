package order

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/inventory"
)

// ProductLookup reads the current inventory record of a product.
type ProductLookup interface {
	GetProduct(ctx context.Context, id int64) (inventory.Product, error)
}

// Builder turns a create request into a priced, stock-checked order.
type Builder struct {
	products ProductLookup
}

func NewBuilder(products ProductLookup) *Builder {
	return &Builder{products: products}
}

// Build validates every line in input order and stops at the first failure.
// Stock is only read here; nothing is reserved.
func (b *Builder) Build(ctx context.Context, req CreateRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, apperr.Invalid("INVALID_ORDER", "Order must contain at least one item")
	}

	o := &Order{
		UserID:          req.UserID,
		Status:          StatusPending,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		TotalAmount:     decimal.Zero,
		Items:           make([]Item, 0, len(req.Items)),
	}

	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, apperr.Invalid("INVALID_ORDER", "Quantity must be positive for product: %d", line.ProductID)
		}

		p, err := b.products.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindNotFound, "PRODUCT_NOT_FOUND", err, "Product not found: %d", line.ProductID)
		}

		if p.Stock < line.Quantity {
			return nil, apperr.InsufficientStock("INSUFFICIENT_STOCK",
				"Insufficient stock for product: %s. Available: %d, Requested: %d",
				p.Name, p.Stock, line.Quantity)
		}

		subtotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		o.Items = append(o.Items, Item{
			ProductID:   line.ProductID,
			ProductName: p.Name,
			Quantity:    line.Quantity,
			Price:       p.Price,
			Subtotal:    subtotal,
		})
		o.TotalAmount = o.TotalAmount.Add(subtotal)
	}

	return o, nil
}
