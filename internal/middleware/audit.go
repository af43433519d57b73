package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stageflow/stageflow-api/internal/models"
	"github.com/stageflow/stageflow-api/internal/repository"
)

// Audit appends an audit row after each successful request on the
// wrapped routes. Failed requests (4xx/5xx) are skipped; the services
// already log those with more context.
func Audit(repo *repository.UserRepository, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		status := c.Writer.Status()
		if status >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if claims, ok := c.Get(ContextUserKey); ok {
			user := claims.(*models.JWTClaims)
			entry.UserID = &user.UserID
		}
		entry.NewValues, _ = json.Marshal(gin.H{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  status,
			"latency": time.Since(start).Milliseconds(),
		})

		// Fire and forget; an audit failure must not fail the request.
		_ = repo.CreateAuditLog(c.Request.Context(), entry)
	}
}
