package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/service/engagement"
)

type BidRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewBidRepository(db Querier, logger *zap.Logger) *BidRepository {
	return &BidRepository{db: db, logger: logger}
}

const bidColumns = `id, project_id, contributor_id, amount, timeline_days, proposal_text, status, created_at, updated_at`

func scanBid(row pgx.Row) (*model.Bid, error) {
	var b model.Bid
	err := row.Scan(
		&b.ID,
		&b.ProjectID,
		&b.ContributorID,
		&b.Amount,
		&b.TimelineDays,
		&b.ProposalText,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (r *BidRepository) Create(ctx context.Context, b *model.Bid) error {
	r.logger.Debug("Inserting bid",
		zap.Int64("project_id", b.ProjectID),
		zap.Int64("contributor_id", b.ContributorID),
	)

	query := `
        INSERT INTO bids (project_id, contributor_id, amount, timeline_days, proposal_text, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		b.ProjectID,
		b.ContributorID,
		b.Amount,
		b.TimelineDays,
		b.ProposalText,
		b.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert bid", zap.Error(err))
		return translate(err)
	}

	r.logger.Info("Bid inserted successfully",
		zap.Int64("id", b.ID),
		zap.Int64("project_id", b.ProjectID),
	)
	return nil
}

func (r *BidRepository) getOne(ctx context.Context, query string, args ...any) (*model.Bid, error) {
	b, err := scanBid(r.db.QueryRow(ctx, query, args...))
	if err != nil && !errors.Is(err, engagement.ErrNoRecord) {
		r.logger.Error("Failed to get bid", zap.Error(err))
	}
	return b, err
}

func (r *BidRepository) GetByID(ctx context.Context, id int64) (*model.Bid, error) {
	return r.getOne(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id)
}

func (r *BidRepository) GetForUpdate(ctx context.Context, id int64) (*model.Bid, error) {
	return r.getOne(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1 FOR UPDATE`, id)
}

func (r *BidRepository) GetByProjectAndContributor(ctx context.Context, projectID, contributorID int64) (*model.Bid, error) {
	return r.getOne(ctx, `
        SELECT `+bidColumns+` FROM bids
        WHERE project_id = $1 AND contributor_id = $2
        FOR UPDATE
    `, projectID, contributorID)
}

func (r *BidRepository) Accepted(ctx context.Context, projectID int64) (*model.Bid, error) {
	return r.getOne(ctx, `
        SELECT `+bidColumns+` FROM bids
        WHERE project_id = $1 AND status = 'accepted'
    `, projectID)
}

func (r *BidRepository) List(ctx context.Context, q engagement.BidQuery) ([]*model.Bid, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.ProjectID > 0 {
		add("project_id = $%d", q.ProjectID)
	}
	if q.ContributorID > 0 {
		add("contributor_id = $%d", q.ContributorID)
	}
	if q.Status != "" {
		add("status = $%d", q.Status)
	}
	if q.ExcludeRejected {
		where = append(where, "status <> 'rejected'")
	}

	query := `SELECT ` + bidColumns + ` FROM bids`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list bids", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var bids []*model.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// Update overwrites the mutable fields and refreshes updated_at.
// Reopen re-files a rejected bid as pending. created_at moves to now so the
// bid lists as a new one.
func (r *BidRepository) Reopen(ctx context.Context, b *model.Bid) error {
	r.logger.Debug("Reopening rejected bid", zap.Int64("id", b.ID))
	err := r.db.QueryRow(ctx, `
        UPDATE bids
        SET amount = $1, timeline_days = $2, proposal_text = $3, status = 'pending',
            created_at = NOW(), updated_at = NOW()
        WHERE id = $4 AND status = 'rejected'
        RETURNING status, created_at, updated_at
    `, b.Amount, b.TimelineDays, b.ProposalText, b.ID).Scan(&b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		err = translate(err)
		if !errors.Is(err, engagement.ErrNoRecord) {
			r.logger.Error("Failed to reopen bid", zap.Int64("id", b.ID), zap.Error(err))
		}
		return err
	}
	r.logger.Info("Bid reopened", zap.Int64("id", b.ID))
	return nil
}

func (r *BidRepository) Update(ctx context.Context, b *model.Bid) error {
	err := r.db.QueryRow(ctx, `
        UPDATE bids
        SET amount = $1, timeline_days = $2, proposal_text = $3, status = $4, updated_at = NOW()
        WHERE id = $5
        RETURNING updated_at
    `, b.Amount, b.TimelineDays, b.ProposalText, b.Status, b.ID).Scan(&b.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update bid", zap.Int64("id", b.ID), zap.Error(err))
		return translate(err)
	}
	r.logger.Info("Bid updated", zap.Int64("id", b.ID), zap.String("status", b.Status))
	return nil
}

func (r *BidRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE bids SET status = $1, updated_at = NOW() WHERE id = $2
    `, status, id)
	if err != nil {
		r.logger.Error("Failed to update bid status", zap.Int64("id", id), zap.Error(err))
		return translate(err)
	}
	r.logger.Info("Bid status updated", zap.Int64("id", id), zap.String("status", status))
	return mustAffect(tag)
}
