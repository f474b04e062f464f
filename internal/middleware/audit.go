package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/project-submission-api/internal/service"
)

// ClientInfo attaches the caller's address and user agent to the request
// context so activity entries written further down carry them.
func ClientInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithClientInfo(c.Request.Context(), c.ClientIP(), c.GetHeader("User-Agent"))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
