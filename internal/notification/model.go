package notification

import "time"

type Type string

const TypeEmail Type = "EMAIL"

// Notification is one delivery attempt. Sent is false when the channel failed.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	Recipient string     `json:"recipient,omitempty"`
	Type      Type       `json:"type"`
	Subject   string     `json:"subject"`
	Message   string     `json:"message"`
	Sent      bool       `json:"sent"`
	SentAt    *time.Time `json:"sentAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Message is what a Channel delivers.
type Message struct {
	UserID    int64
	Recipient string
	Subject   string
	Body      string
}
