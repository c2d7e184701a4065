package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gigmarket/internal/service/engagement"
	"gigmarket/pkg/logger"
)

// PrincipalKey is the gin context key the auth middleware stores the caller under.
const PrincipalKey = "principal"

// principal returns the authenticated caller, or the zero Principal which
// every engagement operation rejects as unauthenticated.
func principal(c *gin.Context) engagement.Principal {
	if v, ok := c.Get(PrincipalKey); ok {
		if p, ok := v.(engagement.Principal); ok {
			return p
		}
	}
	return engagement.Principal{}
}

// StatusFor maps an engagement error kind onto an HTTP status.
func StatusFor(err error) int {
	switch engagement.KindOf(err) {
	case engagement.KindValidation:
		return http.StatusBadRequest
	case engagement.KindAuthentication:
		return http.StatusUnauthorized
	case engagement.KindForbidden:
		return http.StatusForbidden
	case engagement.KindNotFound:
		return http.StatusNotFound
	case engagement.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status for err's kind. Internal errors are
// logged with their cause; rejected requests at warn with the public reason.
func writeError(c *gin.Context, log *zap.Logger, op string, err error) {
	status := StatusFor(err)
	l := logger.WithTrace(c.Request.Context(), log)
	if status == http.StatusInternalServerError {
		l.Error(op+": failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	} else {
		l.Warn(op+": rejected",
			zap.Int("status", status),
			zap.String("reason", engagement.PublicMessage(err)),
		)
	}
	c.JSON(status, gin.H{"error": engagement.PublicMessage(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// queryInt64 parses an optional numeric query parameter; absent means 0.
func queryInt64(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return v, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	v, err := queryInt64(c, name)
	return int(v), err
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}
