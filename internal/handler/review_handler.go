package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/service/engagement"
)

type ReviewService interface {
	SubmitReview(ctx context.Context, p engagement.Principal, in engagement.ReviewInput) (*model.Review, error)
	ListReviews(ctx context.Context, p engagement.Principal, userID int64) ([]*model.Review, error)
}

type ReviewHandler struct {
	svc    ReviewService
	logger *zap.Logger
}

func NewReviewHandler(svc ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{svc: svc, logger: logger}
}

// Create handles POST /reviews
func (h *ReviewHandler) Create(c *gin.Context) {
	var req struct {
		ProjectID int64  `json:"project_id"`
		Stars     int    `json:"stars"`
		Comment   string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	review, err := h.svc.SubmitReview(c.Request.Context(), principal(c), engagement.ReviewInput{
		ProjectID: req.ProjectID,
		Stars:     req.Stars,
		Comment:   req.Comment,
	})
	if err != nil {
		writeError(c, h.logger, "SubmitReview", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"review_id": review.ID})
}

// List handles GET /reviews?user_id=
func (h *ReviewHandler) List(c *gin.Context) {
	userID, err := queryInt64(c, "user_id")
	if err != nil || userID == 0 {
		badRequest(c, "user_id is required")
		return
	}

	reviews, err := h.svc.ListReviews(c.Request.Context(), principal(c), userID)
	if err != nil {
		writeError(c, h.logger, "ListReviews", err)
		return
	}
	if reviews == nil {
		reviews = []*model.Review{}
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}
