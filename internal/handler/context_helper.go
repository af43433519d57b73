package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/stageflow/stageflow-api/internal/authz"
	"github.com/stageflow/stageflow-api/internal/middleware"
	"github.com/stageflow/stageflow-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// principalFromContext converts stored claims into the access control
// principal. The zero Principal matches no rule, so an absent or
// malformed claim simply yields a forbidden decision downstream.
func principalFromContext(c *gin.Context) authz.Principal {
	claims := claimsFromContext(c)
	if claims == nil {
		return authz.Principal{}
	}
	return authz.Principal{UserID: claims.UserID, Role: claims.Role}
}
