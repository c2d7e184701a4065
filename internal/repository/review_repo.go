package repository

import (
	"context"

	"go.uber.org/zap"

	"gigmarket/internal/model"
)

type ReviewRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewReviewRepository(db Querier, logger *zap.Logger) *ReviewRepository {
	return &ReviewRepository{db: db, logger: logger}
}

func (r *ReviewRepository) Create(ctx context.Context, rv *model.Review) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO reviews (project_id, reviewer_id, reviewee_id, stars, comment)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at
    `, rv.ProjectID, rv.ReviewerID, rv.RevieweeID, rv.Stars, rv.Comment).Scan(&rv.ID, &rv.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert review",
			zap.Int64("project_id", rv.ProjectID),
			zap.Int64("reviewer_id", rv.ReviewerID),
			zap.Error(err),
		)
		return translate(err)
	}
	r.logger.Info("Review inserted successfully",
		zap.Int64("id", rv.ID),
		zap.Int64("reviewee_id", rv.RevieweeID),
		zap.Int("stars", rv.Stars),
	)
	return nil
}

func (r *ReviewRepository) Exists(ctx context.Context, projectID, reviewerID, revieweeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM reviews
            WHERE project_id = $1 AND reviewer_id = $2 AND reviewee_id = $3
        )
    `, projectID, reviewerID, revieweeID).Scan(&exists)
	return exists, translate(err)
}

func (r *ReviewRepository) ListByReviewee(ctx context.Context, revieweeID int64) ([]*model.Review, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, project_id, reviewer_id, reviewee_id, stars, comment, created_at
        FROM reviews
        WHERE reviewee_id = $1
        ORDER BY created_at DESC, id DESC
    `, revieweeID)
	if err != nil {
		r.logger.Error("Failed to list reviews", zap.Int64("reviewee_id", revieweeID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.ProjectID,
			&rv.ReviewerID,
			&rv.RevieweeID,
			&rv.Stars,
			&rv.Comment,
			&rv.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &rv)
	}
	return out, rows.Err()
}

func (r *ReviewRepository) RatingFor(ctx context.Context, revieweeID int64) (float64, int, error) {
	var (
		mean  float64
		count int
	)
	err := r.db.QueryRow(ctx, `
        SELECT COALESCE(AVG(stars), 0)::DOUBLE PRECISION, COUNT(*)
        FROM reviews
        WHERE reviewee_id = $1
    `, revieweeID).Scan(&mean, &count)
	if err != nil {
		return 0, 0, translate(err)
	}
	return mean, count, nil
}
