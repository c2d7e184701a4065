package engagement

import (
	"context"

	"gigmarket/internal/model"
)

// Store runs fn in one database transaction. fn's tx is only valid inside fn;
// a non-nil return rolls everything back.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Projects() ProjectRepository
	Bids() BidRepository
	Assignments() AssignmentRepository
	Milestones() MilestoneRepository
	Reviews() ReviewRepository
	Users() UserRepository
	Notifications() NotificationRepository
	Notifier() Notifier
}

type ProjectFilter struct {
	ClientID int64
	Status   string
	Limit    int
	Offset   int
}

type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	// GetForUpdate locks the project row until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*model.Project, error)
	List(ctx context.Context, filter ProjectFilter) ([]*model.Project, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

type BidQuery struct {
	ProjectID       int64
	ContributorID   int64
	Status          string
	ExcludeRejected bool
}

type BidRepository interface {
	Create(ctx context.Context, b *model.Bid) error
	GetByID(ctx context.Context, id int64) (*model.Bid, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Bid, error)
	GetByProjectAndContributor(ctx context.Context, projectID, contributorID int64) (*model.Bid, error)
	List(ctx context.Context, q BidQuery) ([]*model.Bid, error)
	// Accepted returns ErrNoRecord when no bid on the project is accepted.
	Accepted(ctx context.Context, projectID int64) (*model.Bid, error)
	Update(ctx context.Context, b *model.Bid) error
	// Reopen turns a rejected bid back into a pending one with b's terms and
	// a fresh created_at.
	Reopen(ctx context.Context, b *model.Bid) error
	UpdateStatus(ctx context.Context, id int64, status string) error
}

type AssignmentRepository interface {
	Create(ctx context.Context, a *model.Assignment) error
	GetByID(ctx context.Context, id int64) (*model.Assignment, error)
	GetByProject(ctx context.Context, projectID int64) (*model.Assignment, error)
}

type MilestoneRepository interface {
	Create(ctx context.Context, m *model.Milestone) error
	GetByID(ctx context.Context, id int64) (*model.Milestone, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Milestone, error)
	Exists(ctx context.Context, assignmentID int64, title, dueDate string) (bool, error)
	ListByAssignment(ctx context.Context, assignmentID int64) ([]*model.Milestone, error)
	Update(ctx context.Context, m *model.Milestone) error
}

type ReviewRepository interface {
	Create(ctx context.Context, r *model.Review) error
	Exists(ctx context.Context, projectID, reviewerID, revieweeID int64) (bool, error)
	ListByReviewee(ctx context.Context, revieweeID int64) ([]*model.Review, error)
	// RatingFor returns the mean and count of all stars revieweeID received.
	RatingFor(ctx context.Context, revieweeID int64) (float64, int, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateRating(ctx context.Context, userID int64, rating float64, count int) error
}

type NotificationRepository interface {
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*model.Notification, error)
	// MarkRead returns ErrNoRecord unless notification id belongs to userID.
	MarkRead(ctx context.Context, id, userID int64) error
}

// Notifier enqueues notifications and direct messages. Implementations
// must leave the enclosing transaction usable when they fail.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind string, payload any) error
	Message(ctx context.Context, senderID, recipientID, projectID int64, body string) error
}
