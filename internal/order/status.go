package order

import (
	"strings"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
)

type Status string

const (
	// StatusPending only exists between building and reserving; it is never stored.
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusFailed     Status = "FAILED"
)

var statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
	StatusFailed,
}

// ParseStatus accepts any casing of a known status name.
func ParseStatus(s string) (Status, error) {
	want := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range statuses {
		if st == want {
			return st, nil
		}
	}
	return "", apperr.Invalid("INVALID_STATUS", "Invalid order status: %s", s)
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s Status) Cancellable() bool {
	return s != StatusShipped && s != StatusDelivered
}
