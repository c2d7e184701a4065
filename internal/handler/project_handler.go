package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/service/engagement"
)

type ProjectService interface {
	CreateProject(ctx context.Context, p engagement.Principal, in engagement.CreateProjectInput) (*model.Project, error)
	GetProject(ctx context.Context, p engagement.Principal, id int64) (*engagement.ProjectView, error)
	ListProjects(ctx context.Context, p engagement.Principal, filter engagement.ProjectFilter) ([]*model.Project, error)
	FinalizeProject(ctx context.Context, p engagement.Principal, projectID int64) error
	CancelProject(ctx context.Context, p engagement.Principal, projectID int64) error
}

type ProjectHandler struct {
	svc    ProjectService
	logger *zap.Logger
}

func NewProjectHandler(svc ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, logger: logger}
}

type createProjectRequest struct {
	Title       string                    `json:"title"`
	Description string                    `json:"description"`
	Scope       *string                   `json:"scope"`
	BudgetMin   *float64                  `json:"budget_min"`
	BudgetMax   *float64                  `json:"budget_max"`
	Deadline    string                    `json:"deadline"`
	Skills      []string                  `json:"skills"`
	Milestones  []model.MilestoneTemplate `json:"milestones"`
}

// Create handles POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	p := principal(c)
	h.logger.Info("CreateProject request received",
		zap.Int64("user_id", p.UserID),
		zap.String("client_ip", c.ClientIP()),
	)

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("CreateProject: invalid request body", zap.Error(err))
		badRequest(c, "invalid request body: budgets must be numbers")
		return
	}
	if req.BudgetMin == nil || req.BudgetMax == nil {
		h.logger.Warn("CreateProject: budget_min and budget_max are required")
		badRequest(c, "budget_min and budget_max are required")
		return
	}

	project, err := h.svc.CreateProject(c.Request.Context(), p, engagement.CreateProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Scope:       req.Scope,
		BudgetMin:   *req.BudgetMin,
		BudgetMax:   *req.BudgetMax,
		Deadline:    req.Deadline,
		Skills:      req.Skills,
		Milestones:  req.Milestones,
	})
	if err != nil {
		writeError(c, h.logger, "CreateProject", err)
		return
	}

	h.logger.Info("CreateProject: success",
		zap.Int64("project_id", project.ID),
		zap.Int("milestone_templates", len(project.MilestoneTemplates)),
	)
	c.JSON(http.StatusCreated, gin.H{"project_id": project.ID})
}

// Get handles GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	view, err := h.svc.GetProject(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, h.logger, "GetProject", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// List handles GET /projects?client_id=&status=&limit=&offset=
func (h *ProjectHandler) List(c *gin.Context) {
	var (
		filter engagement.ProjectFilter
		err    error
	)
	if filter.ClientID, err = queryInt64(c, "client_id"); err != nil {
		badRequest(c, err.Error())
		return
	}
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		badRequest(c, err.Error())
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		badRequest(c, err.Error())
		return
	}
	filter.Status = c.Query("status")

	projects, err := h.svc.ListProjects(c.Request.Context(), principal(c), filter)
	if err != nil {
		writeError(c, h.logger, "ListProjects", err)
		return
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

type projectIDRequest struct {
	ProjectID int64 `json:"project_id" binding:"required"`
}

// Finalize handles POST /projects/finalize
func (h *ProjectHandler) Finalize(c *gin.Context) {
	h.closeProject(c, "FinalizeProject", h.svc.FinalizeProject)
}

// Cancel handles POST /projects/cancel
func (h *ProjectHandler) Cancel(c *gin.Context) {
	h.closeProject(c, "CancelProject", h.svc.CancelProject)
}

func (h *ProjectHandler) closeProject(c *gin.Context, op string,
	fn func(ctx context.Context, p engagement.Principal, projectID int64) error,
) {
	var req projectIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn(op+": project_id is required", zap.Error(err))
		badRequest(c, "project_id is required")
		return
	}

	p := principal(c)
	h.logger.Info(op+" request received",
		zap.Int64("user_id", p.UserID),
		zap.Int64("project_id", req.ProjectID),
		zap.String("client_ip", c.ClientIP()),
	)
	if err := fn(c.Request.Context(), p, req.ProjectID); err != nil {
		writeError(c, h.logger, op, err)
		return
	}

	h.logger.Info(op+": success", zap.Int64("project_id", req.ProjectID))
	c.JSON(http.StatusOK, gin.H{"success": true})
}
