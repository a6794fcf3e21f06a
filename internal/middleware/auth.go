package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/TeaToe17/jalev1/pkg/errors"
	"github.com/TeaToe17/jalev1/pkg/utils"
)

// AuthMiddleware validates the Bearer token and stores the numeric user
// id in the context. Identity itself is issued by the external auth
// service; this subsystem only verifies the signature. Failures flow
// through the error middleware like any other AppError.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Error(apperrors.Unauthorized("Authorization header required"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.Error(apperrors.Unauthorized("Invalid authorization header format"))
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1], jwtSecret)
		if err != nil {
			c.Error(apperrors.Unauthorized("Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("userId", claims.UserID)
		c.Next()
	}
}
