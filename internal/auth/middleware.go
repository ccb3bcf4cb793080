package auth

import (
	"net/http"
	"strings"
	"time"

	"bus-booking/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	HeaderAuthorization = "Authorization"
	bearerPrefix        = "Bearer "

	// Gin context keys; logger.Middleware reads user_id for the access log.
	GinUserID = "user_id"
	GinRole   = "role"
)

// RequireAccessToken admits requests carrying a valid access token and puts
// the caller's identity on the request context. Role checks live in rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c.GetHeader(HeaderAuthorization))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			logger.FromGin(c).Debug("access token rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.Role)
		ctx = logger.With(ctx, logger.From(ctx).With("user_id", claims.UserID))
		c.Request = c.Request.WithContext(ctx)
		c.Set(GinUserID, claims.UserID)
		c.Set(GinRole, claims.Role)

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	return tok, tok != ""
}
