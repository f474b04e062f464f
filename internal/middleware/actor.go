package middleware

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/project-submission-api/internal/models"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
	"github.com/noah-isme/project-submission-api/pkg/response"
)

// UserLoader fetches the stored account behind a token.
type UserLoader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// LoadActor replaces the role and scope carried in the token with the stored
// account's current values. Deactivated or deleted accounts are rejected even
// while their access token is unexpired. It must run after JWT.
func LoadActor(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists"))
			} else {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account"))
			}
			c.Abort()
			return
		}
		if !user.Active {
			response.Error(c, appErrors.ErrInactiveAccount)
			c.Abort()
			return
		}
		if !user.Role.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account has an unknown role"))
			c.Abort()
			return
		}

		current := *claims
		current.Role = user.Role
		current.Email = user.Email
		current.FullName = user.FullName
		current.Department = user.Department
		current.Level = user.Level
		c.Set(ContextUserKey, &current)
		c.Next()
	}
}
