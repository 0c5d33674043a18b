package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"notify-service/internal/auth"
	"notify-service/pkg/response"
)

const identityKey = "identity"

type AuthMiddleware struct {
	verifier auth.Verifier
	logger   *slog.Logger
}

func NewAuthMiddleware(verifier auth.Verifier, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// RequireAuth authenticates the Authorization header and stores the
// resolved identity in the request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

		identity, err := am.verifier.Verify(c.Request.Context(), credential)
		if err != nil {
			am.logger.Warn("request auth rejected", "path", c.Request.URL.Path, "error", err)
			response.Error(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireRole additionally restricts the route to one role. Must run after
// RequireAuth.
func (am *AuthMiddleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok || identity.Role != role {
			response.Error(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity stored by RequireAuth.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := v.(auth.Identity)
	return identity, ok
}
