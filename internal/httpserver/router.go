package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gigmarket/internal/handler"
	"gigmarket/pkg/otel"
	"gigmarket/pkg/rbac"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Auth          *handler.AuthHandler
	Projects      *handler.ProjectHandler
	Bids          *handler.BidHandler
	Milestones    *handler.MilestoneHandler
	Reviews       *handler.ReviewHandler
	Notifications *handler.NotificationHandler
	Admin         *handler.AdminHandler
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, jwtSecret string, db Pinger, logger *zap.Logger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), MetricsMiddleware(), LoggingMiddleware(logger))

	registerProbes(r, db)

	// Public
	r.POST("/register", h.Auth.Register)
	r.POST("/login", h.Auth.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/projects", h.Projects.List)
		auth.GET("/projects/:id", h.Projects.Get)
		auth.POST("/projects", RequirePermission(rbac.PermissionCreateProject), h.Projects.Create)
		auth.POST("/projects/finalize", RequirePermission(rbac.PermissionManageProject), h.Projects.Finalize)
		auth.POST("/projects/cancel", RequirePermission(rbac.PermissionManageProject), h.Projects.Cancel)

		auth.GET("/bids", h.Bids.List)
		auth.POST("/bids", RequirePermission(rbac.PermissionPlaceBid), h.Bids.Place)
		auth.PUT("/bids", RequirePermission(rbac.PermissionDecideBid), h.Bids.Decide)
		auth.PATCH("/bids", RequirePermission(rbac.PermissionPlaceBid), h.Bids.Update)

		// submit / approve / return share one route; the service checks the action's permission
		auth.GET("/milestones", h.Milestones.List)
		auth.POST("/milestones", RequirePermission(rbac.PermissionManageProject), h.Milestones.Create)
		auth.PUT("/milestones", h.Milestones.Transition)
		auth.PATCH("/milestones", h.Milestones.Update)

		auth.GET("/reviews", h.Reviews.List)
		auth.POST("/reviews", RequirePermission(rbac.PermissionReview), h.Reviews.Create)

		auth.GET("/notifications", h.Notifications.List)
		auth.POST("/notifications/:id/read", h.Notifications.MarkRead)
	}

	admin := r.Group("/admin")
	admin.Use(AuthMiddleware(jwtSecret), RequirePermission(rbac.PermissionReplayOutbox))
	{
		admin.GET("/outbox/failed", h.Admin.FailedOutboxEvents)
		admin.POST("/outbox/replay", h.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)
	}

	return &Router{Engine: r}
}

// registerProbes adds health, readiness and metrics endpoints.
func registerProbes(r *gin.Engine, db Pinger) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// NewProbeRouter serves only the probes; the worker uses it.
func NewProbeRouter(db Pinger) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	registerProbes(r, db)
	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
