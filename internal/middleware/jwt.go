package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stageflow/stageflow-api/internal/service"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
	"github.com/stageflow/stageflow-api/pkg/response"
)

// ContextUserKey is where validated JWT claims are stored on the gin
// context for downstream handlers.
const ContextUserKey = "currentUser"

// JWT rejects requests that do not carry a valid Bearer access token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing or malformed authorization header"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// bearerToken pulls the token out of an "Authorization: Bearer x" header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || token == "" || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return token, true
}

func abort(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}
