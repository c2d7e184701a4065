package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/service/engagement"
)

type NotificationService interface {
	ListNotifications(ctx context.Context, p engagement.Principal, unreadOnly bool, limit int) ([]*model.Notification, error)
	MarkNotificationRead(ctx context.Context, p engagement.Principal, id int64) error
}

type NotificationHandler struct {
	svc    NotificationService
	logger *zap.Logger
}

func NewNotificationHandler(svc NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// List handles GET /notifications?unread=true&limit=
func (h *NotificationHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	items, err := h.svc.ListNotifications(c.Request.Context(), principal(c), c.Query("unread") == "true", limit)
	if err != nil {
		writeError(c, h.logger, "ListNotifications", err)
		return
	}
	if items == nil {
		items = []*model.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// MarkRead handles POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.MarkNotificationRead(c.Request.Context(), principal(c), id); err != nil {
		writeError(c, h.logger, "MarkNotificationRead", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
