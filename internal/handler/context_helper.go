package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/middleware"
	"github.com/noah-isme/project-submission-api/internal/models"
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

// actorFromContext returns the authenticated caller. ok is false when the
// request carries no claims.
func actorFromContext(c *gin.Context) (access.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return access.Actor{}, false
	}
	return access.Actor{
		ID:         claims.UserID,
		Role:       claims.Role,
		Department: claims.Department,
		Level:      claims.Level,
	}, true
}
