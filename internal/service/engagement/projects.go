package engagement

import (
	"context"
	"errors"
	"strings"

	"gigmarket/internal/definition"
	"gigmarket/internal/model"
	"gigmarket/pkg/rbac"
)

type CreateProjectInput struct {
	Title       string
	Description string
	// Scope and Milestones override anything embedded in Description.
	Scope      *string
	BudgetMin  float64
	BudgetMax  float64
	Deadline   string
	Skills     []string
	Milestones []model.MilestoneTemplate
}

// ProjectView is a project plus its description in the legacy embedded form.
type ProjectView struct {
	*model.Project
	RawDescription string `json:"raw_description"`
}

func (in *CreateProjectInput) normalize() (*model.Project, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationf("title is required")
	}
	if in.BudgetMin < 0 || in.BudgetMax < 0 {
		return nil, validationf("budget must not be negative")
	}
	if in.BudgetMax == 0 {
		return nil, validationf("budget_max is required")
	}
	if in.BudgetMin > in.BudgetMax {
		return nil, validationf("budget_min must not exceed budget_max")
	}
	deadline, ok := definition.NormalizeDate(in.Deadline)
	if !ok {
		return nil, validationf("deadline must be a date (YYYY-MM-DD or MM/DD/YYYY)")
	}

	def := definition.Parse(in.Description)
	scope := def.Scope
	if in.Scope != nil {
		scope = strings.TrimSpace(*in.Scope)
	}
	templates := def.Milestones
	if len(in.Milestones) > 0 {
		templates = definition.Normalize(in.Milestones)
		for _, t := range templates {
			if _, ok := definition.NormalizeDate(t.Due); !ok {
				return nil, validationf("milestone %q has an invalid due date %q", t.Title, t.Due)
			}
		}
	}
	if templates == nil {
		templates = []model.MilestoneTemplate{}
	}

	p := &model.Project{
		Title:              title,
		Description:        def.Summary,
		MilestoneTemplates: templates,
		BudgetMin:          in.BudgetMin,
		BudgetMax:          in.BudgetMax,
		Deadline:           deadline,
		Skills:             normalizeSkills(in.Skills),
		Status:             model.ProjectStatusOpen,
	}
	if scope != "" {
		p.Scope = &scope
	}
	return p, nil
}

func normalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// CreateProject posts a new open project owned by the caller. Scope and
// milestone blocks embedded in the description are lifted into structured
// fields here, once.
func (s *Service) CreateProject(ctx context.Context, p Principal, in CreateProjectInput) (*model.Project, error) {
	if err := p.require(rbac.PermissionCreateProject); err != nil {
		return nil, err
	}
	project, err := in.normalize()
	if err != nil {
		return nil, err
	}
	project.ClientID = p.UserID

	err = s.inTx(ctx, "create_project", func(ctx context.Context, tx Tx) error {
		return tx.Projects().Create(ctx, project)
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, p Principal, id int64) (*ProjectView, error) {
	if err := p.require(rbac.PermissionReadEngagement); err != nil {
		return nil, err
	}
	var view *ProjectView
	err := s.inTx(ctx, "get_project", func(ctx context.Context, tx Tx) error {
		project, err := tx.Projects().GetByID(ctx, id)
		if err != nil {
			return lookup(err, "project")
		}
		def := definition.Resolve(project)
		view = &ProjectView{
			Project:        project,
			RawDescription: definition.Compose(def.Summary, def.Scope, def.Milestones),
		}
		return nil
	})
	return view, err
}

func (s *Service) ListProjects(ctx context.Context, p Principal, filter ProjectFilter) ([]*model.Project, error) {
	if err := p.require(rbac.PermissionReadEngagement); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	var projects []*model.Project
	err := s.inTx(ctx, "list_projects", func(ctx context.Context, tx Tx) error {
		var err error
		projects, err = tx.Projects().List(ctx, filter)
		return err
	})
	return projects, err
}

// CancelProject moves any non-completed project to canceled and rejects its
// pending bids.
func (s *Service) CancelProject(ctx context.Context, p Principal, projectID int64) error {
	if err := p.require(rbac.PermissionManageProject); err != nil {
		return err
	}
	return s.inTx(ctx, "cancel_project", func(ctx context.Context, tx Tx) error {
		project, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return lookup(err, "project")
		}
		if !p.ownsProject(project.ClientID) {
			return forbidden("only the project's client can cancel it")
		}
		if !model.CanTransition(project.Status, model.ProjectStatusCanceled) {
			return conflict("project is already " + project.Status)
		}

		pending, err := tx.Bids().List(ctx, BidQuery{ProjectID: project.ID, Status: model.BidStatusPending})
		if err != nil {
			return err
		}
		for _, b := range pending {
			if err := tx.Bids().UpdateStatus(ctx, b.ID, model.BidStatusRejected); err != nil {
				return err
			}
		}
		if err := tx.Projects().UpdateStatus(ctx, project.ID, model.ProjectStatusCanceled); err != nil {
			return err
		}

		payload := map[string]any{"project_id": project.ID, "title": project.Title}
		for _, b := range pending {
			s.notify(ctx, tx, b.ContributorID, model.NotificationProjectCanceled, payload)
		}
		assignment, err := tx.Assignments().GetByProject(ctx, project.ID)
		switch {
		case err == nil:
			s.notify(ctx, tx, assignment.ContributorID, model.NotificationProjectCanceled, payload)
		case !errors.Is(err, ErrNoRecord):
			return err
		}
		return nil
	})
}
