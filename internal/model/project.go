package model

import "time"

const (
	ProjectStatusOpen       = "open"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
	ProjectStatusCanceled   = "canceled"
)

type Project struct {
	ID                 int64               `json:"id"`
	ClientID           int64               `json:"client_id"`
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	Scope              *string             `json:"scope,omitempty"`
	MilestoneTemplates []MilestoneTemplate `json:"milestone_templates"`
	BudgetMin          float64             `json:"budget_min"`
	BudgetMax          float64             `json:"budget_max"`
	Deadline           string              `json:"deadline"` // YYYY-MM-DD
	Skills             []string            `json:"skills"`
	Status             string              `json:"status"` // open / in_progress / completed / canceled
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// MilestoneTemplate is a milestone the client planned when posting the project.
type MilestoneTemplate struct {
	Title        string                `json:"title"`
	Due          string                `json:"due"` // YYYY-MM-DD once normalized
	Deliverables []DeliverableTemplate `json:"deliverables"`
}

type DeliverableTemplate struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// CanTransition reports whether a project may move from one status to another.
func CanTransition(from, to string) bool {
	switch to {
	case ProjectStatusInProgress:
		return from == ProjectStatusOpen
	case ProjectStatusCompleted:
		return from == ProjectStatusInProgress
	case ProjectStatusCanceled:
		return from != ProjectStatusCompleted && from != ProjectStatusCanceled
	}
	return false
}
