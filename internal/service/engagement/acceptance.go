package engagement

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gigmarket/internal/definition"
	"gigmarket/internal/model"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/metrics"
	"gigmarket/pkg/rbac"
)

const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

const (
	closingMessage = "Thank you for your proposal. The client has chosen to go with another bid on this project."
	welcomeMessage = "Your bid has been accepted. Welcome aboard! Milestones for this project are now available."
)

// Decision summarizes what DecideBid changed.
type Decision struct {
	Bid               *model.Bid        `json:"bid"`
	Assignment        *model.Assignment `json:"assignment,omitempty"`
	RejectedBidIDs    []int64           `json:"rejected_bid_ids,omitempty"`
	MilestonesCreated int               `json:"milestones_created"`
}

// DecideBid accepts or rejects a bid on the caller's project.
//
// Acceptance happens in one transaction: the project and bid rows are
// locked, every other pending bid is rejected, the assignment is created (or
// reused), milestones are materialized from the project's templates, the
// project moves to in_progress and the bid to accepted. Accepting an already
// accepted bid changes nothing and sends nothing.
func (s *Service) DecideBid(ctx context.Context, p Principal, bidID int64, action string) (*Decision, error) {
	if err := p.require(rbac.PermissionDecideBid); err != nil {
		return nil, err
	}
	if action != ActionAccept && action != ActionReject {
		return nil, validationf("action must be %q or %q", ActionAccept, ActionReject)
	}

	var decision *Decision
	err := s.inTx(ctx, action+"_bid", func(ctx context.Context, tx Tx) error {
		// project before bid: the lock order PlaceBid also uses
		unlocked, err := tx.Bids().GetByID(ctx, bidID)
		if err != nil {
			return lookup(err, "bid")
		}
		project, err := tx.Projects().GetForUpdate(ctx, unlocked.ProjectID)
		if err != nil {
			return lookup(err, "project")
		}
		bid, err := tx.Bids().GetForUpdate(ctx, bidID)
		if err != nil {
			return lookup(err, "bid")
		}
		if !p.ownsProject(project.ClientID) {
			return forbidden("only the project's client can decide on its bids")
		}

		if action == ActionReject {
			decision, err = s.reject(ctx, tx, project, bid)
		} else {
			decision, err = s.accept(ctx, tx, project, bid)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return decision, nil
}

func (s *Service) reject(ctx context.Context, tx Tx, project *model.Project, bid *model.Bid) (*Decision, error) {
	switch bid.Status {
	case model.BidStatusAccepted:
		return nil, conflict("bid is already accepted")
	case model.BidStatusRejected:
		return &Decision{Bid: bid}, nil
	}

	if err := tx.Bids().UpdateStatus(ctx, bid.ID, model.BidStatusRejected); err != nil {
		return nil, err
	}
	bid.Status = model.BidStatusRejected

	s.notifyRejected(ctx, tx, project, bid)
	return &Decision{Bid: bid, RejectedBidIDs: []int64{bid.ID}}, nil
}

func (s *Service) accept(ctx context.Context, tx Tx, project *model.Project, bid *model.Bid) (*Decision, error) {
	switch project.Status {
	case model.ProjectStatusCompleted, model.ProjectStatusCanceled:
		return nil, conflict("project is " + project.Status)
	}
	if bid.Status == model.BidStatusRejected {
		return nil, conflict("bid was rejected")
	}

	accepted, err := tx.Bids().Accepted(ctx, project.ID)
	switch {
	case err == nil && accepted.ID != bid.ID:
		return nil, conflict("another bid on this project is already accepted")
	case err != nil && !errors.Is(err, ErrNoRecord):
		return nil, err
	}
	repeat := bid.Status == model.BidStatusAccepted

	// Competing bids are rejected before the target bid changes state.
	competing, err := tx.Bids().List(ctx, BidQuery{ProjectID: project.ID, Status: model.BidStatusPending})
	if err != nil {
		return nil, err
	}
	var rejected []*model.Bid
	for _, other := range competing {
		if other.ID == bid.ID {
			continue
		}
		if err := tx.Bids().UpdateStatus(ctx, other.ID, model.BidStatusRejected); err != nil {
			return nil, err
		}
		other.Status = model.BidStatusRejected
		rejected = append(rejected, other)
	}

	assignment, err := s.ensureAssignment(ctx, tx, project, bid)
	if err != nil {
		return nil, err
	}

	created, err := s.materializeMilestones(ctx, tx, project, assignment)
	if err != nil {
		return nil, err
	}

	if project.Status == model.ProjectStatusOpen {
		if err := tx.Projects().UpdateStatus(ctx, project.ID, model.ProjectStatusInProgress); err != nil {
			return nil, err
		}
		project.Status = model.ProjectStatusInProgress
	}

	if !repeat {
		if err := tx.Bids().UpdateStatus(ctx, bid.ID, model.BidStatusAccepted); err != nil {
			return nil, err
		}
		bid.Status = model.BidStatusAccepted
	}

	decision := &Decision{Bid: bid, Assignment: assignment, MilestonesCreated: created}
	for _, other := range rejected {
		decision.RejectedBidIDs = append(decision.RejectedBidIDs, other.ID)
		s.notifyRejected(ctx, tx, project, other)
	}
	if !repeat {
		s.notify(ctx, tx, bid.ContributorID, model.NotificationBidAccepted, map[string]any{
			"bid_id":        bid.ID,
			"project_id":    project.ID,
			"assignment_id": assignment.ID,
			"title":         project.Title,
		})
		s.message(ctx, tx, project.ClientID, bid.ContributorID, project.ID, welcomeMessage)
	}
	metrics.IncrementBidAcceptance(repeat)
	return decision, nil
}

func (s *Service) ensureAssignment(ctx context.Context, tx Tx, project *model.Project, bid *model.Bid) (*model.Assignment, error) {
	assignment, err := tx.Assignments().GetByProject(ctx, project.ID)
	if err == nil {
		if assignment.BidID != bid.ID {
			return nil, conflict("project is already assigned to another bid")
		}
		return assignment, nil
	}
	if !errors.Is(err, ErrNoRecord) {
		return nil, err
	}

	assignment = &model.Assignment{
		ProjectID:     project.ID,
		BidID:         bid.ID,
		ContributorID: bid.ContributorID,
	}
	if err := tx.Assignments().Create(ctx, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

// materializeMilestones creates an open milestone per template, skipping any
// (assignment, title, due) that already exists and templates without a
// usable due date.
func (s *Service) materializeMilestones(ctx context.Context, tx Tx, project *model.Project, assignment *model.Assignment) (int, error) {
	def := definition.Resolve(project)
	existing, err := tx.Milestones().ListByAssignment(ctx, assignment.ID)
	if err != nil {
		return 0, err
	}
	// a milestone covers its own title/due and, once renamed, its template's
	seen := make(map[[2]string]bool, 2*len(existing))
	for _, m := range existing {
		seen[[2]string{m.Title, m.DueDate}] = true
		if m.TemplateTitle != "" {
			seen[[2]string{m.TemplateTitle, m.TemplateDue}] = true
		}
	}

	created := 0
	for _, tmpl := range def.Milestones {
		due, ok := definition.NormalizeDate(tmpl.Due)
		if !ok {
			logger.WithTrace(ctx, s.logger).Warn("Skipping milestone template with invalid due date",
				zap.Int64("project_id", project.ID),
				zap.String("title", tmpl.Title),
				zap.String("due", tmpl.Due),
			)
			continue
		}

		key := [2]string{tmpl.Title, due}
		if seen[key] {
			continue
		}

		m := &model.Milestone{
			AssignmentID:  assignment.ID,
			Title:         tmpl.Title,
			DueDate:       due,
			Status:        model.MilestoneStatusOpen,
			TemplateTitle: tmpl.Title,
			TemplateDue:   due,
		}
		if err := tx.Milestones().Create(ctx, m); err != nil {
			return created, err
		}
		seen[key] = true
		created++
	}
	if created > 0 {
		metrics.AddMilestonesMaterialized(created)
	}
	return created, nil
}

func (s *Service) notifyRejected(ctx context.Context, tx Tx, project *model.Project, bid *model.Bid) {
	s.notify(ctx, tx, bid.ContributorID, model.NotificationBidRejected, map[string]any{
		"bid_id":     bid.ID,
		"project_id": project.ID,
		"title":      project.Title,
	})
	s.message(ctx, tx, project.ClientID, bid.ContributorID, project.ID, closingMessage)
}
