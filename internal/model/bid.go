package model

import "time"

// Rejected bids are kept for history and reused when the contributor bids again.
const (
	BidStatusPending  = "pending"
	BidStatusAccepted = "accepted"
	BidStatusRejected = "rejected"
)

type Bid struct {
	ID            int64     `json:"id"`
	ProjectID     int64     `json:"project_id"`
	ContributorID int64     `json:"contributor_id"`
	Amount        float64   `json:"amount"`
	TimelineDays  int       `json:"timeline_days"`
	ProposalText  string    `json:"proposal_text"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Assignment struct {
	ID            int64     `json:"id"`
	ProjectID     int64     `json:"project_id"`
	BidID         int64     `json:"bid_id"`
	ContributorID int64     `json:"contributor_id"`
	CreatedAt     time.Time `json:"created_at"`
}
