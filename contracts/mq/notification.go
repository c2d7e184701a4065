package mq

import (
	"encoding/json"
	"time"
)

// Routing keys on the engagement.events exchange.
const (
	RoutingKeyNotificationCreated = "notification.created"
	RoutingKeyMessageCreated      = "message.created"
)

// NotificationCreatedPayload is emitted for every lifecycle notification.
// EventID is unique per emission and is the consumer's idempotency key.
type NotificationCreatedPayload struct {
	EventID   string          `json:"event_id"`
	UserID    int64           `json:"user_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	TraceID   string          `json:"trace_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// MessageCreatedPayload carries a system-authored direct message
// (welcome and closing messages sent on bid decisions).
type MessageCreatedPayload struct {
	EventID     string    `json:"event_id"`
	SenderID    int64     `json:"sender_id"`
	RecipientID int64     `json:"recipient_id"`
	ProjectID   int64     `json:"project_id"`
	Body        string    `json:"body"`
	TraceID     string    `json:"trace_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
