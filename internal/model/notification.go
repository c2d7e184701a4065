package model

import (
	"encoding/json"
	"time"
)

// Notification types emitted by the engagement lifecycle.
const (
	NotificationBidPending               = "bid_pending"
	NotificationBidUpdated               = "bid_updated"
	NotificationBidAccepted              = "bid_accepted"
	NotificationBidRejected              = "bid_rejected"
	NotificationMilestoneCreated         = "milestone_created"
	NotificationMilestoneSubmitted       = "milestone_submitted"
	NotificationMilestoneApproved        = "milestone_approved"
	NotificationMilestoneReturned        = "milestone_returned"
	NotificationMilestoneUpdated         = "milestone_updated"
	NotificationMilestoneChangeRequested = "milestone_change_requested"
	NotificationProjectCompleted         = "project_completed"
	NotificationProjectCanceled          = "project_canceled"
)

type Notification struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"-"`
	UserID    int64           `json:"user_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	IsRead    bool            `json:"is_read"`
	CreatedAt time.Time       `json:"created_at"`
}

type Message struct {
	ID          int64     `json:"id"`
	EventID     string    `json:"-"`
	SenderID    int64     `json:"sender_id"`
	RecipientID int64     `json:"recipient_id"`
	ProjectID   int64     `json:"project_id"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}
