package engagement

import (
	"context"
	"errors"
	"strings"

	"gigmarket/internal/model"
	"gigmarket/pkg/rbac"
)

type ReviewInput struct {
	ProjectID int64
	Stars     int
	Comment   string
}

// SubmitReview lets the client of a completed project review its contributor,
// once, and refreshes the contributor's mean rating.
func (s *Service) SubmitReview(ctx context.Context, p Principal, in ReviewInput) (*model.Review, error) {
	if err := p.require(rbac.PermissionReview); err != nil {
		return nil, err
	}
	if in.ProjectID <= 0 {
		return nil, validationf("project_id is required")
	}
	if in.Stars < 1 || in.Stars > 5 {
		return nil, validationf("stars must be between 1 and 5")
	}

	var review *model.Review
	err := s.inTx(ctx, "submit_review", func(ctx context.Context, tx Tx) error {
		project, err := tx.Projects().GetByID(ctx, in.ProjectID)
		if err != nil {
			return lookup(err, "project")
		}
		if project.ClientID != p.UserID {
			return forbidden("only the project's client can review it")
		}
		if project.Status != model.ProjectStatusCompleted {
			return conflict("project must be completed before it can be reviewed")
		}
		assignment, err := tx.Assignments().GetByProject(ctx, project.ID)
		if err != nil {
			return lookup(err, "assignment")
		}

		exists, err := tx.Reviews().Exists(ctx, project.ID, p.UserID, assignment.ContributorID)
		if err != nil {
			return err
		}
		if exists {
			return conflict("review already submitted")
		}

		review = &model.Review{
			ProjectID:  project.ID,
			ReviewerID: p.UserID,
			RevieweeID: assignment.ContributorID,
			Stars:      in.Stars,
			Comment:    strings.TrimSpace(in.Comment),
		}
		if err := tx.Reviews().Create(ctx, review); err != nil {
			if errors.Is(err, ErrDuplicateRecord) {
				return conflict("review already submitted")
			}
			return err
		}

		rating, count, err := tx.Reviews().RatingFor(ctx, review.RevieweeID)
		if err != nil {
			return err
		}
		return tx.Users().UpdateRating(ctx, review.RevieweeID, rating, count)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// ListReviews returns the reviews userID has received.
func (s *Service) ListReviews(ctx context.Context, p Principal, userID int64) ([]*model.Review, error) {
	if err := p.require(rbac.PermissionReadEngagement); err != nil {
		return nil, err
	}
	if userID <= 0 {
		return nil, validationf("user_id is required")
	}
	var reviews []*model.Review
	err := s.inTx(ctx, "list_reviews", func(ctx context.Context, tx Tx) error {
		var err error
		reviews, err = tx.Reviews().ListByReviewee(ctx, userID)
		return err
	})
	return reviews, err
}
