package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/service/engagement"
)

type BidService interface {
	PlaceBid(ctx context.Context, p engagement.Principal, in engagement.PlaceBidInput) (*model.Bid, error)
	ListBids(ctx context.Context, p engagement.Principal, filter engagement.BidFilter) ([]*model.Bid, error)
	DecideBid(ctx context.Context, p engagement.Principal, bidID int64, action string) (*engagement.Decision, error)
	UpdateBid(ctx context.Context, p engagement.Principal, bidID int64, patch engagement.BidPatch) (*model.Bid, error)
}

type BidHandler struct {
	svc    BidService
	logger *zap.Logger
}

func NewBidHandler(svc BidService, logger *zap.Logger) *BidHandler {
	return &BidHandler{svc: svc, logger: logger}
}

// Place handles POST /bids
func (h *BidHandler) Place(c *gin.Context) {
	p := principal(c)
	h.logger.Info("PlaceBid request received",
		zap.Int64("user_id", p.UserID),
		zap.String("client_ip", c.ClientIP()),
	)

	var req struct {
		ProjectID    int64   `json:"project_id"`
		Amount       float64 `json:"amount"`
		TimelineDays int     `json:"timeline_days"`
		ProposalText string  `json:"proposal_text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("PlaceBid: invalid request body", zap.Error(err))
		badRequest(c, "invalid request body")
		return
	}

	bid, err := h.svc.PlaceBid(c.Request.Context(), p, engagement.PlaceBidInput{
		ProjectID:    req.ProjectID,
		Amount:       req.Amount,
		TimelineDays: req.TimelineDays,
		ProposalText: req.ProposalText,
	})
	if err != nil {
		writeError(c, h.logger, "PlaceBid", err)
		return
	}

	h.logger.Info("PlaceBid: success",
		zap.Int64("bid_id", bid.ID),
		zap.Int64("project_id", bid.ProjectID),
	)
	c.JSON(http.StatusCreated, gin.H{"bid_id": bid.ID, "status": bid.Status})
}

// List handles GET /bids?project_id=&contributor_id=&status=&mine=
func (h *BidHandler) List(c *gin.Context) {
	var (
		filter engagement.BidFilter
		err    error
	)
	if filter.ProjectID, err = queryInt64(c, "project_id"); err != nil {
		h.logger.Warn("ListBids: invalid project_id", zap.String("project_id", c.Query("project_id")))
		badRequest(c, err.Error())
		return
	}
	if filter.ContributorID, err = queryInt64(c, "contributor_id"); err != nil {
		h.logger.Warn("ListBids: invalid contributor_id", zap.String("contributor_id", c.Query("contributor_id")))
		badRequest(c, err.Error())
		return
	}
	filter.Status = c.Query("status")
	filter.Mine = c.Query("mine") == "true"

	bids, err := h.svc.ListBids(c.Request.Context(), principal(c), filter)
	if err != nil {
		writeError(c, h.logger, "ListBids", err)
		return
	}
	if bids == nil {
		bids = []*model.Bid{}
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// Decide handles PUT /bids {bid_id, action: accept|reject}
func (h *BidHandler) Decide(c *gin.Context) {
	var req struct {
		BidID  int64  `json:"bid_id" binding:"required"`
		Action string `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("DecideBid: bid_id and action are required", zap.Error(err))
		badRequest(c, "bid_id and action are required")
		return
	}

	p := principal(c)
	h.logger.Info("DecideBid request received",
		zap.Int64("user_id", p.UserID),
		zap.Int64("bid_id", req.BidID),
		zap.String("action", req.Action),
		zap.String("client_ip", c.ClientIP()),
	)

	decision, err := h.svc.DecideBid(c.Request.Context(), p, req.BidID, req.Action)
	if err != nil {
		writeError(c, h.logger, "DecideBid", err)
		return
	}

	h.logger.Info("DecideBid: success",
		zap.Int64("bid_id", req.BidID),
		zap.String("action", req.Action),
		zap.String("status", decision.Bid.Status),
		zap.Int("rejected_count", len(decision.RejectedBidIDs)),
		zap.Int("milestones_created", decision.MilestonesCreated),
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "decision": decision})
}

// Update handles PATCH /bids
func (h *BidHandler) Update(c *gin.Context) {
	var req struct {
		BidID        int64    `json:"bid_id" binding:"required"`
		Amount       *float64 `json:"amount"`
		TimelineDays *int     `json:"timeline_days"`
		ProposalText *string  `json:"proposal_text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("UpdateBid: bid_id is required", zap.Error(err))
		badRequest(c, "bid_id is required")
		return
	}

	p := principal(c)
	h.logger.Info("UpdateBid request received",
		zap.Int64("user_id", p.UserID),
		zap.Int64("bid_id", req.BidID),
		zap.String("client_ip", c.ClientIP()),
	)

	bid, err := h.svc.UpdateBid(c.Request.Context(), p, req.BidID, engagement.BidPatch{
		Amount:       req.Amount,
		TimelineDays: req.TimelineDays,
		ProposalText: req.ProposalText,
	})
	if err != nil {
		writeError(c, h.logger, "UpdateBid", err)
		return
	}

	h.logger.Info("UpdateBid: success", zap.Int64("bid_id", bid.ID))
	c.JSON(http.StatusOK, gin.H{"success": true, "bid": bid})
}
