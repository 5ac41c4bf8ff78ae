package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderStatusUpdated = "ORDER_STATUS_UPDATED"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypeProductCreated     = "PRODUCT_CREATED"
	EventTypeProductUpdated     = "PRODUCT_UPDATED"
	EventTypeProductDeleted     = "PRODUCT_DELETED"
	EventTypeStockUpdated       = "STOCK_UPDATED"
	EventTypeUserRegistered     = "USER_REGISTERED"
	EventTypeUserUpdated        = "USER_UPDATED"
	EventTypeUserDeleted        = "USER_DELETED"
)

// Meta is embedded in every message. Timestamp is milliseconds since epoch.
type Meta struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (m *Meta) meta() *Meta { return m }

// Payload is implemented by pointers to the message types below.
type Payload interface {
	meta() *Meta
}

type OrderCreated struct {
	Meta
	OrderID     int64   `json:"orderId"`
	UserID      int64   `json:"userId"`
	TotalAmount float64 `json:"totalAmount"`
	Status      string  `json:"status"`
	ItemCount   int     `json:"itemCount"`
}

type OrderStatusUpdated struct {
	Meta
	OrderID   int64  `json:"orderId"`
	UserID    int64  `json:"userId"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
}

type OrderCancelled struct {
	Meta
	OrderID int64 `json:"orderId"`
	UserID  int64 `json:"userId"`
}

type ProductCreated struct {
	Meta
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Category  string  `json:"category"`
}

type ProductUpdated struct {
	Meta
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Stock     int     `json:"stock"`
	Category  string  `json:"category"`
	Active    bool    `json:"active"`
}

type ProductDeleted struct {
	Meta
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
}

type StockUpdated struct {
	Meta
	ProductID int64 `json:"productId"`
	Stock     int   `json:"stock"`
}

type UserRegistered struct {
	Meta
	UserID   int64  `json:"userId"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type UserUpdated struct {
	Meta
	UserID   int64  `json:"userId"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type UserDeleted struct {
	Meta
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
}

// Outgoing is a serialized message ready for the broker or the outbox.
type Outgoing struct {
	EventID     string
	EventType   string
	RoutingKey  string
	AggregateID string
	Body        []byte
}

// NewOutgoing stamps a fresh event id and timestamp on p when missing and serializes it.
func NewOutgoing(routingKey string, aggregateID int64, p Payload) (Outgoing, error) {
	m := p.meta()
	if m.EventType == "" {
		return Outgoing{}, fmt.Errorf("%s: missing eventType", routingKey)
	}
	if m.EventID == "" {
		m.EventID = uuid.NewString()
	}
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}

	body, err := json.Marshal(p)
	if err != nil {
		return Outgoing{}, fmt.Errorf("marshal %s: %w", m.EventType, err)
	}

	return Outgoing{
		EventID:     m.EventID,
		EventType:   m.EventType,
		RoutingKey:  routingKey,
		AggregateID: strconv.FormatInt(aggregateID, 10),
		Body:        body,
	}, nil
}

// Mode selects how a service hands committed facts to the broker.
type Mode string

const (
	// ModeDirect publishes after commit and swallows broker failures.
	ModeDirect Mode = "direct"
	// ModeOutbox stores messages with the state change and lets a dispatcher retry them.
	ModeOutbox Mode = "outbox"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeDirect:
		return ModeDirect, nil
	case ModeOutbox:
		return ModeOutbox, nil
	default:
		return "", fmt.Errorf("unknown publish mode %q", s)
	}
}
