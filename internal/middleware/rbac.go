package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/stageflow/stageflow-api/internal/models"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
)

// RequireRoles gates a route group on the caller's role. It is a coarse
// pre-filter only: resource-level decisions stay in the authz package,
// so routes usually allow every role that can possibly reach a resource
// and let the service layer narrow it down.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			abort(c, appErrors.ErrUnauthorized)
			return
		}
		claims := claimsValue.(*models.JWTClaims)
		if _, ok := allowed[claims.Role]; !ok {
			abort(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
