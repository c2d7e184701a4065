package engagement

import (
	"context"
	"errors"
	"strings"

	"gigmarket/internal/model"
	"gigmarket/pkg/rbac"
)

type PlaceBidInput struct {
	ProjectID    int64
	Amount       float64
	TimelineDays int
	ProposalText string
}

type BidFilter struct {
	ProjectID     int64
	ContributorID int64
	Status        string
	// Mine lists the caller's own bids; rejected ones are hidden unless
	// Status asks for them.
	Mine bool
}

// BidPatch holds the fields a contributor may change on a live bid.
type BidPatch struct {
	Amount       *float64
	TimelineDays *int
	ProposalText *string
}

func (in *PlaceBidInput) validate() error {
	var missing []string
	if in.ProjectID <= 0 {
		missing = append(missing, "project_id")
	}
	if in.Amount <= 0 {
		missing = append(missing, "amount")
	}
	if in.TimelineDays <= 0 {
		missing = append(missing, "timeline_days")
	}
	if strings.TrimSpace(in.ProposalText) == "" {
		missing = append(missing, "proposal_text")
	}
	if len(missing) > 0 {
		return validationf("missing or invalid fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// PlaceBid records the caller's bid on an open project. A previously
// rejected bid by the same contributor is reopened in place and keeps its id.
func (s *Service) PlaceBid(ctx context.Context, p Principal, in PlaceBidInput) (*model.Bid, error) {
	if err := p.require(rbac.PermissionPlaceBid); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	proposal := strings.TrimSpace(in.ProposalText)

	var bid *model.Bid
	err := s.inTx(ctx, "place_bid", func(ctx context.Context, tx Tx) error {
		project, err := tx.Projects().GetForUpdate(ctx, in.ProjectID)
		if err != nil {
			return lookup(err, "project")
		}
		if project.ClientID == p.UserID {
			return forbidden("cannot bid on your own project")
		}
		if project.Status != model.ProjectStatusOpen {
			return conflict("project is not open for bids")
		}

		existing, err := tx.Bids().GetByProjectAndContributor(ctx, project.ID, p.UserID)
		switch {
		case err == nil && existing.Status != model.BidStatusRejected:
			return conflict("already have a pending or accepted bid")
		case err == nil:
			existing.Amount = in.Amount
			existing.TimelineDays = in.TimelineDays
			existing.ProposalText = proposal
			existing.Status = model.BidStatusPending
			if err := tx.Bids().Reopen(ctx, existing); err != nil {
				return err
			}
			bid = existing
		case errors.Is(err, ErrNoRecord):
			bid = &model.Bid{
				ProjectID:     project.ID,
				ContributorID: p.UserID,
				Amount:        in.Amount,
				TimelineDays:  in.TimelineDays,
				ProposalText:  proposal,
				Status:        model.BidStatusPending,
			}
			if err := tx.Bids().Create(ctx, bid); err != nil {
				if errors.Is(err, ErrDuplicateRecord) {
					return conflict("already have a pending or accepted bid")
				}
				return err
			}
		default:
			return err
		}

		s.notify(ctx, tx, project.ClientID, model.NotificationBidPending, map[string]any{
			"bid_id":         bid.ID,
			"project_id":     project.ID,
			"contributor_id": p.UserID,
			"amount":         bid.Amount,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// ListBids applies visibility: a project's client (or an admin) sees every
// bid on it, everyone else only their own.
func (s *Service) ListBids(ctx context.Context, p Principal, filter BidFilter) ([]*model.Bid, error) {
	if err := p.require(rbac.PermissionReadEngagement); err != nil {
		return nil, err
	}

	q := BidQuery{ProjectID: filter.ProjectID, ContributorID: filter.ContributorID, Status: filter.Status}
	var bids []*model.Bid
	// own lists hide rejected bids unless a status is asked for
	ownOnly := func() {
		q.ContributorID = p.UserID
		q.ExcludeRejected = filter.Status == ""
	}
	err := s.inTx(ctx, "list_bids", func(ctx context.Context, tx Tx) error {
		switch {
		case filter.Mine:
			ownOnly()
		case filter.ProjectID > 0:
			project, err := tx.Projects().GetByID(ctx, filter.ProjectID)
			if err != nil {
				return lookup(err, "project")
			}
			if !p.ownsProject(project.ClientID) {
				ownOnly()
			}
		case !p.IsAdmin():
			ownOnly()
		}

		var err error
		bids, err = tx.Bids().List(ctx, q)
		return err
	})
	return bids, err
}

func (patch *BidPatch) validate() error {
	if patch.Amount == nil && patch.TimelineDays == nil && patch.ProposalText == nil {
		return validationf("nothing to update")
	}
	if patch.Amount != nil && *patch.Amount <= 0 {
		return validationf("amount must be positive")
	}
	if patch.TimelineDays != nil && *patch.TimelineDays <= 0 {
		return validationf("timeline_days must be positive")
	}
	if patch.ProposalText != nil && strings.TrimSpace(*patch.ProposalText) == "" {
		return validationf("proposal_text must not be empty")
	}
	return nil
}

// UpdateBid edits the caller's pending bid.
func (s *Service) UpdateBid(ctx context.Context, p Principal, bidID int64, patch BidPatch) (*model.Bid, error) {
	if err := p.authenticated(); err != nil {
		return nil, err
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}

	var bid *model.Bid
	err := s.inTx(ctx, "update_bid", func(ctx context.Context, tx Tx) error {
		var err error
		bid, err = tx.Bids().GetForUpdate(ctx, bidID)
		if err != nil {
			return lookup(err, "bid")
		}
		if bid.ContributorID != p.UserID {
			return forbidden("only the bid's contributor can update it")
		}
		switch bid.Status {
		case model.BidStatusAccepted:
			return conflict("accepted bids cannot be changed")
		case model.BidStatusRejected:
			return conflict("bid was rejected; place a new bid instead")
		}

		if patch.Amount != nil {
			bid.Amount = *patch.Amount
		}
		if patch.TimelineDays != nil {
			bid.TimelineDays = *patch.TimelineDays
		}
		if patch.ProposalText != nil {
			bid.ProposalText = strings.TrimSpace(*patch.ProposalText)
		}
		if err := tx.Bids().Update(ctx, bid); err != nil {
			return err
		}

		project, err := tx.Projects().GetByID(ctx, bid.ProjectID)
		if err != nil {
			return lookup(err, "project")
		}
		s.notify(ctx, tx, project.ClientID, model.NotificationBidUpdated, map[string]any{
			"bid_id":         bid.ID,
			"project_id":     bid.ProjectID,
			"contributor_id": bid.ContributorID,
			"amount":         bid.Amount,
			"timeline_days":  bid.TimelineDays,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}
