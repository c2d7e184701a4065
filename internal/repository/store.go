package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"gigmarket/internal/service/engagement"
	"gigmarket/pkg/db"
	"gigmarket/pkg/outbox"
)

// PGStore runs engagement operations in PostgreSQL transactions.
type PGStore struct {
	pool   *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewPGStore(pool *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *PGStore {
	return &PGStore{pool: pool, outbox: outboxRepo, logger: logger}
}

func (s *PGStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx engagement.Tx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, s.bind(tx))
	})
}

func (s *PGStore) bind(tx pgx.Tx) *pgTx {
	return &pgTx{
		projects:      NewProjectRepository(tx, s.logger),
		bids:          NewBidRepository(tx, s.logger),
		assignments:   NewAssignmentRepository(tx, s.logger),
		milestones:    NewMilestoneRepository(tx, s.logger),
		reviews:       NewReviewRepository(tx, s.logger),
		users:         NewUserRepository(tx, s.logger),
		notifications: NewNotificationRepository(tx, s.logger),
		notifier:      NewOutboxNotifier(tx, s.outbox, s.logger),
	}
}

type pgTx struct {
	projects      *ProjectRepository
	bids          *BidRepository
	assignments   *AssignmentRepository
	milestones    *MilestoneRepository
	reviews       *ReviewRepository
	users         *UserRepository
	notifications *NotificationRepository
	notifier      *OutboxNotifier
}

func (t *pgTx) Projects() engagement.ProjectRepository           { return t.projects }
func (t *pgTx) Bids() engagement.BidRepository                   { return t.bids }
func (t *pgTx) Assignments() engagement.AssignmentRepository     { return t.assignments }
func (t *pgTx) Milestones() engagement.MilestoneRepository       { return t.milestones }
func (t *pgTx) Reviews() engagement.ReviewRepository             { return t.reviews }
func (t *pgTx) Users() engagement.UserRepository                 { return t.users }
func (t *pgTx) Notifications() engagement.NotificationRepository { return t.notifications }
func (t *pgTx) Notifier() engagement.Notifier                    { return t.notifier }
