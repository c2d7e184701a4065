package model

import "time"

type Review struct {
	ID         int64     `json:"id"`
	ProjectID  int64     `json:"project_id"`
	ReviewerID int64     `json:"reviewer_id"`
	RevieweeID int64     `json:"reviewee_id"`
	Stars      int       `json:"stars"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}
