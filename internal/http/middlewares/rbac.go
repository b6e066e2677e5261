package middlewares

import (
	"net/http"

	"github.com/geocoder89/estategate/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(allowed ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFromContext(c)

		if !ok {
			abortUnauthorized(c, "Missing identity context")
			return
		}
		if !id.Role.In(allowed...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":      "forbidden",
					"message":   "Unauthorized",
					"requestId": c.GetString(string(CtxRequestID)),
				},
			})
			return
		}
		c.Next()
	}
}
