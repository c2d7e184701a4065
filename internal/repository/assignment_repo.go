package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/service/engagement"
)

type AssignmentRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewAssignmentRepository(db Querier, logger *zap.Logger) *AssignmentRepository {
	return &AssignmentRepository{db: db, logger: logger}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO assignments (project_id, bid_id, contributor_id)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `, a.ProjectID, a.BidID, a.ContributorID).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert assignment", zap.Int64("project_id", a.ProjectID), zap.Error(err))
		return translate(err)
	}
	r.logger.Info("Assignment created",
		zap.Int64("id", a.ID),
		zap.Int64("project_id", a.ProjectID),
		zap.Int64("bid_id", a.BidID),
	)
	return nil
}

func (r *AssignmentRepository) getOne(ctx context.Context, where string, arg int64) (*model.Assignment, error) {
	var a model.Assignment
	err := r.db.QueryRow(ctx, `
        SELECT id, project_id, bid_id, contributor_id, created_at
        FROM assignments WHERE `+where+` = $1
    `, arg).Scan(&a.ID, &a.ProjectID, &a.BidID, &a.ContributorID, &a.CreatedAt)
	if err != nil {
		err = translate(err)
		if !errors.Is(err, engagement.ErrNoRecord) {
			r.logger.Error("Failed to get assignment", zap.String("by", where), zap.Error(err))
		}
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id int64) (*model.Assignment, error) {
	return r.getOne(ctx, "id", id)
}

func (r *AssignmentRepository) GetByProject(ctx context.Context, projectID int64) (*model.Assignment, error) {
	return r.getOne(ctx, "project_id", projectID)
}
