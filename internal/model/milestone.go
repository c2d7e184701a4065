package model

import "time"

const (
	MilestoneStatusOpen      = "open"
	MilestoneStatusSubmitted = "submitted"
	MilestoneStatusApproved  = "approved"
)

type Milestone struct {
	ID              int64            `json:"id"`
	AssignmentID    int64            `json:"assignment_id"`
	Title           string           `json:"title"`
	DueDate         string           `json:"due_date"` // YYYY-MM-DD
	Status          string           `json:"status"`
	SubmissionNotes *string          `json:"submission_notes,omitempty"`
	SubmissionURL   *string          `json:"submission_url,omitempty"`
	SubmittedAt     *time.Time       `json:"submitted_at,omitempty"`
	ChangeRequest   *MilestoneChange `json:"change_request,omitempty"`
	TemplateTitle   string           `json:"template_title,omitempty"` // source template, empty when added by hand
	TemplateDue     string           `json:"template_due,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// MilestoneChange is a contributor's proposed title/date edit awaiting the client.
type MilestoneChange struct {
	Title       *string   `json:"title,omitempty"`
	DueDate     *string   `json:"due_date,omitempty"`
	RequestedBy int64     `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// SubmissionNotes is the JSON stored in milestones.submission_notes.
type SubmissionNotes struct {
	Text         string                 `json:"text"`
	Deliverables []SubmittedDeliverable `json:"deliverables"`
}

type SubmittedDeliverable struct {
	Name     string   `json:"name"`
	Required bool     `json:"required"`
	Files    []string `json:"files"`
}
