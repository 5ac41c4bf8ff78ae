package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"userId"`
	Items           []Item          `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          Status          `json:"status"`
	ShippingAddress string          `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type LineRequest struct {
	ProductID int64
	Quantity  int
}

type CreateRequest struct {
	UserID          int64
	Items           []LineRequest
	ShippingAddress string
	PaymentMethod   string
}
