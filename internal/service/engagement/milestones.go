package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gigmarket/internal/definition"
	"gigmarket/internal/model"
	"gigmarket/internal/progress"
	"gigmarket/pkg/rbac"
)

// MilestoneQuery selects milestones by project or by assignment; exactly one
// must be set.
type MilestoneQuery struct {
	ProjectID    int64
	AssignmentID int64
}

type MilestoneView struct {
	*model.Milestone
	Progress     int                         `json:"progress"`
	Deliverables []model.DeliverableTemplate `json:"deliverables"`
}

type CreateMilestoneInput struct {
	ProjectID int64
	Title     string
	DueDate   string
}

type SubmitMilestoneInput struct {
	Notes *model.SubmissionNotes
	URL   *string
}

type MilestonePatch struct {
	Title   *string
	DueDate *string
}

// engagementScope is a milestone's assignment and project, loaded together
// for authorization.
type engagementScope struct {
	project    *model.Project
	assignment *model.Assignment
}

func (e *engagementScope) isParty(p Principal) bool {
	return p.ownsProject(e.project.ClientID) || p.UserID == e.assignment.ContributorID
}

func loadScope(ctx context.Context, tx Tx, assignmentID int64) (*engagementScope, error) {
	assignment, err := tx.Assignments().GetByID(ctx, assignmentID)
	if err != nil {
		return nil, lookup(err, "assignment")
	}
	project, err := tx.Projects().GetByID(ctx, assignment.ProjectID)
	if err != nil {
		return nil, lookup(err, "project")
	}
	return &engagementScope{project: project, assignment: assignment}, nil
}

func (s *Service) ListMilestones(ctx context.Context, p Principal, q MilestoneQuery) ([]*MilestoneView, error) {
	if err := p.require(rbac.PermissionReadEngagement); err != nil {
		return nil, err
	}
	if (q.ProjectID > 0) == (q.AssignmentID > 0) {
		return nil, validationf("exactly one of project_id or assignment_id is required")
	}

	var views []*MilestoneView
	err := s.inTx(ctx, "list_milestones", func(ctx context.Context, tx Tx) error {
		assignmentID := q.AssignmentID
		if q.ProjectID > 0 {
			project, err := tx.Projects().GetByID(ctx, q.ProjectID)
			if err != nil {
				return lookup(err, "project")
			}
			assignment, err := tx.Assignments().GetByProject(ctx, project.ID)
			if errors.Is(err, ErrNoRecord) {
				if !p.ownsProject(project.ClientID) {
					return forbidden("not a party to this project")
				}
				views = []*MilestoneView{}
				return nil
			}
			if err != nil {
				return err
			}
			assignmentID = assignment.ID
		}

		scope, err := loadScope(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if !scope.isParty(p) {
			return forbidden("not a party to this project")
		}

		milestones, err := tx.Milestones().ListByAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		def := definition.Resolve(scope.project)
		views = make([]*MilestoneView, 0, len(milestones))
		for _, m := range milestones {
			views = append(views, viewOf(def, m))
		}
		return nil
	})
	return views, err
}

func viewOf(def definition.Definition, m *model.Milestone) *MilestoneView {
	view := &MilestoneView{Milestone: m, Deliverables: []model.DeliverableTemplate{}}
	title, due := m.Title, m.DueDate
	if m.TemplateTitle != "" {
		title, due = m.TemplateTitle, m.TemplateDue
	}
	var tmpl *model.MilestoneTemplate
	if t, ok := def.Find(title, due); ok {
		tmpl = &t
		if t.Deliverables != nil {
			view.Deliverables = t.Deliverables
		}
	}
	view.Progress = progress.Compute(m.Status, m.SubmissionNotes, tmpl)
	return view
}

// CreateMilestone adds a milestone to an in-progress project's assignment.
func (s *Service) CreateMilestone(ctx context.Context, p Principal, in CreateMilestoneInput) (*model.Milestone, error) {
	if err := p.require(rbac.PermissionManageProject); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if in.ProjectID <= 0 || title == "" {
		return nil, validationf("project_id and title are required")
	}
	due, ok := definition.NormalizeDate(in.DueDate)
	if !ok {
		return nil, validationf("due_date must be a date")
	}

	var milestone *model.Milestone
	err := s.inTx(ctx, "create_milestone", func(ctx context.Context, tx Tx) error {
		project, err := tx.Projects().GetForUpdate(ctx, in.ProjectID)
		if err != nil {
			return lookup(err, "project")
		}
		if !p.ownsProject(project.ClientID) {
			return forbidden("only the project's client can add milestones")
		}
		if project.Status != model.ProjectStatusInProgress {
			return conflict("milestones can only be added to an in-progress project")
		}
		assignment, err := tx.Assignments().GetByProject(ctx, project.ID)
		if err != nil {
			return lookup(err, "assignment")
		}

		exists, err := tx.Milestones().Exists(ctx, assignment.ID, title, due)
		if err != nil {
			return err
		}
		if exists {
			return conflict("a milestone with this title and due date already exists")
		}

		milestone = &model.Milestone{
			AssignmentID: assignment.ID,
			Title:        title,
			DueDate:      due,
			Status:       model.MilestoneStatusOpen,
		}
		if err := tx.Milestones().Create(ctx, milestone); err != nil {
			if errors.Is(err, ErrDuplicateRecord) {
				return conflict("a milestone with this title and due date already exists")
			}
			return err
		}

		s.notify(ctx, tx, assignment.ContributorID, model.NotificationMilestoneCreated, milestonePayload(project, milestone))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return milestone, nil
}

func milestonePayload(project *model.Project, m *model.Milestone) map[string]any {
	return map[string]any{
		"milestone_id": m.ID,
		"project_id":   project.ID,
		"title":        m.Title,
		"due_date":     m.DueDate,
	}
}

// transition loads a milestone with its scope under lock and hands it to fn.
func (s *Service) transition(ctx context.Context, op string, milestoneID int64,
	fn func(ctx context.Context, tx Tx, scope *engagementScope, m *model.Milestone) error,
) (*model.Milestone, error) {
	var milestone *model.Milestone
	err := s.inTx(ctx, op, func(ctx context.Context, tx Tx) error {
		m, err := tx.Milestones().GetForUpdate(ctx, milestoneID)
		if err != nil {
			return lookup(err, "milestone")
		}
		scope, err := loadScope(ctx, tx, m.AssignmentID)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, scope, m); err != nil {
			return err
		}
		milestone = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return milestone, nil
}

// SubmitMilestone records the assigned contributor's delivery. A submitted
// milestone may be resubmitted; an approved one may not.
func (s *Service) SubmitMilestone(ctx context.Context, p Principal, milestoneID int64, in SubmitMilestoneInput) (*model.Milestone, error) {
	if err := p.require(rbac.PermissionSubmitMilestone); err != nil {
		return nil, err
	}
	var notes *string
	if in.Notes != nil {
		encoded, err := json.Marshal(in.Notes)
		if err != nil {
			return nil, validationf("submission_notes: %v", err)
		}
		raw := string(encoded)
		notes = &raw
	}

	return s.transition(ctx, "submit_milestone", milestoneID, func(ctx context.Context, tx Tx, scope *engagementScope, m *model.Milestone) error {
		if p.UserID != scope.assignment.ContributorID {
			return forbidden("only the assigned contributor can submit this milestone")
		}
		if scope.project.Status != model.ProjectStatusInProgress {
			return conflict("project is " + scope.project.Status)
		}
		if m.Status == model.MilestoneStatusApproved {
			return conflict("milestone is already approved")
		}

		now := time.Now().UTC()
		m.Status = model.MilestoneStatusSubmitted
		if notes != nil {
			m.SubmissionNotes = notes
		}
		if in.URL != nil {
			url := strings.TrimSpace(*in.URL)
			m.SubmissionURL = &url
		}
		m.SubmittedAt = &now
		if err := tx.Milestones().Update(ctx, m); err != nil {
			return err
		}

		payload := milestonePayload(scope.project, m)
		payload["progress"] = viewOf(definition.Resolve(scope.project), m).Progress
		s.notify(ctx, tx, scope.project.ClientID, model.NotificationMilestoneSubmitted, payload)
		return nil
	})
}

func (s *Service) ApproveMilestone(ctx context.Context, p Principal, milestoneID int64) (*model.Milestone, error) {
	return s.review(ctx, p, "approve_milestone", milestoneID, model.MilestoneStatusApproved, model.NotificationMilestoneApproved)
}

// ReturnMilestone sends a submission back for changes. Notes are kept so the
// contributor can see what was returned.
func (s *Service) ReturnMilestone(ctx context.Context, p Principal, milestoneID int64) (*model.Milestone, error) {
	return s.review(ctx, p, "return_milestone", milestoneID, model.MilestoneStatusOpen, model.NotificationMilestoneReturned)
}

// review moves a submitted milestone to approved or back to open.
func (s *Service) review(ctx context.Context, p Principal, op string, milestoneID int64, to, kind string) (*model.Milestone, error) {
	if err := p.require(rbac.PermissionReviewMilestone); err != nil {
		return nil, err
	}
	return s.transition(ctx, op, milestoneID, func(ctx context.Context, tx Tx, scope *engagementScope, m *model.Milestone) error {
		if !p.ownsProject(scope.project.ClientID) {
			return forbidden("only the project's client can review milestones")
		}
		if m.Status != model.MilestoneStatusSubmitted {
			return conflict("milestone must be submitted, it is " + m.Status)
		}

		m.Status = to
		if err := tx.Milestones().Update(ctx, m); err != nil {
			return err
		}
		s.notify(ctx, tx, scope.assignment.ContributorID, kind, milestonePayload(scope.project, m))
		return nil
	})
}

func (patch *MilestonePatch) normalize() error {
	if patch.Title == nil && patch.DueDate == nil {
		return validationf("nothing to update")
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return validationf("title must not be empty")
		}
		patch.Title = &title
	}
	if patch.DueDate != nil {
		due, ok := definition.NormalizeDate(*patch.DueDate)
		if !ok {
			return validationf("due_date must be a date")
		}
		patch.DueDate = &due
	}
	return nil
}

// UpdateMilestone edits title or due date. The client's edits apply at once
// and clear any pending change request; the contributor's are stored as a
// change request for the client instead. applied reports which happened.
func (s *Service) UpdateMilestone(ctx context.Context, p Principal, milestoneID int64, patch MilestonePatch) (m *model.Milestone, applied bool, err error) {
	if err := p.authenticated(); err != nil {
		return nil, false, err
	}
	if err := patch.normalize(); err != nil {
		return nil, false, err
	}

	m, err = s.transition(ctx, "update_milestone", milestoneID, func(ctx context.Context, tx Tx, scope *engagementScope, m *model.Milestone) error {
		if !scope.isParty(p) {
			return forbidden("not a party to this project")
		}
		if m.Status == model.MilestoneStatusApproved {
			return conflict("approved milestones cannot be edited")
		}

		if p.ownsProject(scope.project.ClientID) {
			applied = true
			return s.applyMilestonePatch(ctx, tx, scope, m, patch)
		}

		m.ChangeRequest = &model.MilestoneChange{
			Title:       patch.Title,
			DueDate:     patch.DueDate,
			RequestedBy: p.UserID,
			RequestedAt: time.Now().UTC(),
		}
		if err := tx.Milestones().Update(ctx, m); err != nil {
			return err
		}
		payload := milestonePayload(scope.project, m)
		payload["requested_title"] = patch.Title
		payload["requested_due_date"] = patch.DueDate
		s.notify(ctx, tx, scope.project.ClientID, model.NotificationMilestoneChangeRequested, payload)
		return nil
	})
	return m, applied, err
}

func (s *Service) applyMilestonePatch(ctx context.Context, tx Tx, scope *engagementScope, m *model.Milestone, patch MilestonePatch) error {
	title, due := m.Title, m.DueDate
	if patch.Title != nil {
		title = *patch.Title
	}
	if patch.DueDate != nil {
		due = *patch.DueDate
	}
	if title != m.Title || due != m.DueDate {
		exists, err := tx.Milestones().Exists(ctx, m.AssignmentID, title, due)
		if err != nil {
			return err
		}
		if exists {
			return conflict("a milestone with this title and due date already exists")
		}
	}

	m.Title, m.DueDate = title, due
	m.ChangeRequest = nil
	if err := tx.Milestones().Update(ctx, m); err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			return conflict("a milestone with this title and due date already exists")
		}
		return err
	}
	s.notify(ctx, tx, scope.assignment.ContributorID, model.NotificationMilestoneUpdated, milestonePayload(scope.project, m))
	return nil
}
