package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"research-chat/internal/middleware"
	"research-chat/internal/observability"
	"research-chat/internal/telemetry"
)

// Auditor is satisfied by telemetry.AuditEmitter.
type Auditor interface {
	Emit(ctx context.Context, level, text, resource, requestID, userID string)
}

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(observability.RequestIDKey); id != "" {
		return id
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(observability.RequestIDKey, requestID)
	return requestID
}

// userIDFromContext is empty on routes outside the auth group.
func userIDFromContext(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

func audit(c *gin.Context, a Auditor, text, resource string) {
	if a == nil {
		return
	}
	a.Emit(c.Request.Context(), telemetry.LevelInfo, text, resource, requestIDFromContext(c), userIDFromContext(c))
}
