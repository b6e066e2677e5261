package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/estategate/internal/actorctx"
	"github.com/geocoder89/estategate/internal/domain/user"
	"github.com/geocoder89/estategate/internal/service"
	"github.com/gin-gonic/gin"
)

// Authenticator resolves a bearer token to an identity. Kept small so tests can fake it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (user.Identity, error)
}

type AuthMiddleware struct {
	authn Authenticator
	log   *slog.Logger
}

func NewAuthMiddleware(authn Authenticator, log *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{authn: authn, log: log}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":      "unauthorized",
			"message":   message,
			"requestId": c.GetString(string(CtxRequestID)),
		},
	})
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if raw == "" {
			abortUnauthorized(c, "Missing or invalid access token")
			return
		}

		id, err := m.authn.Authenticate(c.Request.Context(), raw)
		if err != nil {
			if !errors.Is(err, service.ErrUnauthenticated) {
				m.log.ErrorContext(c.Request.Context(), "authenticate failed", "err", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{
						"code":      "internal_error",
						"message":   "Could not authenticate request",
						"requestId": c.GetString(string(CtxRequestID)),
					},
				})
				return
			}
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		c.Set(string(CtxIdentity), id)
		c.Request = c.Request.WithContext(actorctx.WithIdentity(c.Request.Context(), id))

		c.Next()
	}
}

// IdentityFromContext returns the caller stored by RequireAuth.
func IdentityFromContext(c *gin.Context) (user.Identity, bool) {
	v, ok := c.Get(string(CtxIdentity))
	if !ok {
		return user.Identity{}, false
	}
	id, ok := v.(user.Identity)
	return id, ok && id.UserID != ""
}
