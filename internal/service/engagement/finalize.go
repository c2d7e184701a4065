package engagement

import (
	"context"
	"errors"

	"gigmarket/internal/model"
	"gigmarket/pkg/rbac"
)

// FinalizeProject completes an in-progress project once every milestone
// under its assignment is approved.
func (s *Service) FinalizeProject(ctx context.Context, p Principal, projectID int64) error {
	if err := p.require(rbac.PermissionManageProject); err != nil {
		return err
	}
	return s.inTx(ctx, "finalize_project", func(ctx context.Context, tx Tx) error {
		project, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return lookup(err, "project")
		}
		if !p.ownsProject(project.ClientID) {
			return forbidden("only the project's client can finalize it")
		}
		if project.Status != model.ProjectStatusInProgress {
			return conflict("only in-progress projects can be finalized, project is " + project.Status)
		}

		assignment, err := tx.Assignments().GetByProject(ctx, project.ID)
		if errors.Is(err, ErrNoRecord) {
			return validationf("project has no milestones")
		}
		if err != nil {
			return err
		}
		milestones, err := tx.Milestones().ListByAssignment(ctx, assignment.ID)
		if err != nil {
			return err
		}
		if len(milestones) == 0 {
			return validationf("project has no milestones")
		}
		approved := 0
		for _, m := range milestones {
			if m.Status == model.MilestoneStatusApproved {
				approved++
			}
		}
		if approved != len(milestones) {
			return validationf("%d of %d milestones approved; all must be approved to finalize", approved, len(milestones))
		}

		if err := tx.Projects().UpdateStatus(ctx, project.ID, model.ProjectStatusCompleted); err != nil {
			return err
		}
		s.notify(ctx, tx, assignment.ContributorID, model.NotificationProjectCompleted, map[string]any{
			"project_id": project.ID,
			"title":      project.Title,
		})
		return nil
	})
}
