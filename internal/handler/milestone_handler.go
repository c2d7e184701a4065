package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/service/engagement"
)

const (
	actionSubmit  = "submit"
	actionApprove = "approve"
	actionReturn  = "return"
)

type MilestoneService interface {
	ListMilestones(ctx context.Context, p engagement.Principal, q engagement.MilestoneQuery) ([]*engagement.MilestoneView, error)
	CreateMilestone(ctx context.Context, p engagement.Principal, in engagement.CreateMilestoneInput) (*model.Milestone, error)
	SubmitMilestone(ctx context.Context, p engagement.Principal, milestoneID int64, in engagement.SubmitMilestoneInput) (*model.Milestone, error)
	ApproveMilestone(ctx context.Context, p engagement.Principal, milestoneID int64) (*model.Milestone, error)
	ReturnMilestone(ctx context.Context, p engagement.Principal, milestoneID int64) (*model.Milestone, error)
	UpdateMilestone(ctx context.Context, p engagement.Principal, milestoneID int64, patch engagement.MilestonePatch) (*model.Milestone, bool, error)
}

type MilestoneHandler struct {
	svc    MilestoneService
	logger *zap.Logger
}

func NewMilestoneHandler(svc MilestoneService, logger *zap.Logger) *MilestoneHandler {
	return &MilestoneHandler{svc: svc, logger: logger}
}

// List handles GET /milestones?project_id=|assignment_id=
func (h *MilestoneHandler) List(c *gin.Context) {
	var (
		q   engagement.MilestoneQuery
		err error
	)
	if q.ProjectID, err = queryInt64(c, "project_id"); err != nil {
		h.logger.Warn("ListMilestones: invalid project_id", zap.String("project_id", c.Query("project_id")))
		badRequest(c, err.Error())
		return
	}
	if q.AssignmentID, err = queryInt64(c, "assignment_id"); err != nil {
		h.logger.Warn("ListMilestones: invalid assignment_id", zap.String("assignment_id", c.Query("assignment_id")))
		badRequest(c, err.Error())
		return
	}

	views, err := h.svc.ListMilestones(c.Request.Context(), principal(c), q)
	if err != nil {
		writeError(c, h.logger, "ListMilestones", err)
		return
	}
	if views == nil {
		views = []*engagement.MilestoneView{}
	}
	c.JSON(http.StatusOK, gin.H{"milestones": views})
}

// Create handles POST /milestones
func (h *MilestoneHandler) Create(c *gin.Context) {
	var req struct {
		ProjectID int64  `json:"project_id"`
		Title     string `json:"title"`
		DueDate   string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("CreateMilestone: invalid request body", zap.Error(err))
		badRequest(c, "invalid request body")
		return
	}

	p := principal(c)
	h.logger.Info("CreateMilestone request received",
		zap.Int64("user_id", p.UserID),
		zap.Int64("project_id", req.ProjectID),
		zap.String("client_ip", c.ClientIP()),
	)

	m, err := h.svc.CreateMilestone(c.Request.Context(), p, engagement.CreateMilestoneInput{
		ProjectID: req.ProjectID,
		Title:     req.Title,
		DueDate:   req.DueDate,
	})
	if err != nil {
		writeError(c, h.logger, "CreateMilestone", err)
		return
	}

	h.logger.Info("CreateMilestone: success",
		zap.Int64("milestone_id", m.ID),
		zap.Int64("assignment_id", m.AssignmentID),
	)
	c.JSON(http.StatusCreated, gin.H{"milestone_id": m.ID})
}

type transitionRequest struct {
	MilestoneID     int64           `json:"milestone_id" binding:"required"`
	Action          string          `json:"action" binding:"required"`
	SubmissionNotes json.RawMessage `json:"submission_notes"`
	SubmissionURL   *string         `json:"submission_url"`
}

// Transition handles PUT /milestones {milestone_id, action: submit|approve|return}
func (h *MilestoneHandler) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("TransitionMilestone: milestone_id and action are required", zap.Error(err))
		badRequest(c, "milestone_id and action are required")
		return
	}

	ctx := c.Request.Context()
	p := principal(c)
	h.logger.Info("TransitionMilestone request received",
		zap.Int64("user_id", p.UserID),
		zap.Int64("milestone_id", req.MilestoneID),
		zap.String("action", req.Action),
		zap.String("client_ip", c.ClientIP()),
	)

	var (
		m   *model.Milestone
		err error
	)
	switch req.Action {
	case actionSubmit:
		notes, perr := decodeNotes(req.SubmissionNotes)
		if perr != nil {
			h.logger.Warn("TransitionMilestone: invalid submission_notes",
				zap.Int64("milestone_id", req.MilestoneID),
				zap.Error(perr),
			)
			badRequest(c, perr.Error())
			return
		}
		m, err = h.svc.SubmitMilestone(ctx, p, req.MilestoneID, engagement.SubmitMilestoneInput{
			Notes: notes,
			URL:   req.SubmissionURL,
		})
	case actionApprove:
		m, err = h.svc.ApproveMilestone(ctx, p, req.MilestoneID)
	case actionReturn:
		m, err = h.svc.ReturnMilestone(ctx, p, req.MilestoneID)
	default:
		h.logger.Warn("TransitionMilestone: unknown action", zap.String("action", req.Action))
		badRequest(c, "action must be submit, approve or return")
		return
	}
	if err != nil {
		writeError(c, h.logger, "TransitionMilestone", err)
		return
	}

	h.logger.Info("TransitionMilestone: success",
		zap.Int64("milestone_id", m.ID),
		zap.String("action", req.Action),
		zap.String("status", m.Status),
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "milestone": m})
}

// decodeNotes accepts either a plain text note or the structured
// {text, deliverables} form.
func decodeNotes(raw json.RawMessage) (*model.SubmissionNotes, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, errors.New("submission_notes is malformed")
		}
		return &model.SubmissionNotes{Text: text}, nil
	}
	var notes model.SubmissionNotes
	if err := json.Unmarshal(raw, &notes); err != nil {
		return nil, errors.New("submission_notes must be text or {text, deliverables}")
	}
	return &notes, nil
}

// Update handles PATCH /milestones. A contributor's edit is stored as a
// change request and reported with applied=false.
func (h *MilestoneHandler) Update(c *gin.Context) {
	var req struct {
		MilestoneID int64   `json:"milestone_id" binding:"required"`
		Title       *string `json:"title"`
		DueDate     *string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("UpdateMilestone: milestone_id is required", zap.Error(err))
		badRequest(c, "milestone_id is required")
		return
	}

	p := principal(c)
	h.logger.Info("UpdateMilestone request received",
		zap.Int64("user_id", p.UserID),
		zap.Int64("milestone_id", req.MilestoneID),
		zap.String("client_ip", c.ClientIP()),
	)

	m, applied, err := h.svc.UpdateMilestone(c.Request.Context(), p, req.MilestoneID, engagement.MilestonePatch{
		Title:   req.Title,
		DueDate: req.DueDate,
	})
	if err != nil {
		writeError(c, h.logger, "UpdateMilestone", err)
		return
	}

	h.logger.Info("UpdateMilestone: success",
		zap.Int64("milestone_id", req.MilestoneID),
		zap.Bool("applied", applied),
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "applied": applied, "milestone": m})
}
