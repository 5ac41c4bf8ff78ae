package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is one immutable row of the analytics log.
type Event struct {
	ID        int64           `json:"id"`
	EventType string          `json:"eventType"`
	EntityID  int64           `json:"entityId"`
	UserID    *int64          `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
	Metadata  string          `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Summary holds the running totals folded from the event stream.
type Summary struct {
	TotalOrders   int64           `json:"totalOrders"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	TotalUsers    int64           `json:"totalUsers"`
	TotalProducts int64           `json:"totalProducts"`
	LastUpdated   time.Time       `json:"lastUpdated"`
}

// Delta is what one event adds to the Summary.
type Delta struct {
	Orders   int64
	Revenue  decimal.Decimal
	Users    int64
	Products int64
}

func (d Delta) IsZero() bool {
	return d.Orders == 0 && d.Users == 0 && d.Products == 0 && d.Revenue.IsZero()
}

// Claim names the consumer and event id to record before folding.
// The zero Claim disables deduplication.
type Claim struct {
	Consumer string
	EventID  string
}

const maxMetadata = 2000

// truncateMetadata keeps the first maxMetadata characters of raw.
func truncateMetadata(raw []byte) string {
	s := string(raw)
	if len(s) <= maxMetadata {
		return s
	}
	r := []rune(s)
	if len(r) <= maxMetadata {
		return s
	}
	return string(r[:maxMetadata])
}
