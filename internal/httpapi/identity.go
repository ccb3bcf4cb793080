package httpapi

import (
	"net/http"

	"bus-booking/internal/audit"
	"bus-booking/internal/auth"
	"bus-booking/internal/rbac"
	"bus-booking/internal/tickets"

	"github.com/gin-gonic/gin"
)

// userID reads the caller set by auth.RequireAccessToken, aborting with 401
// when it is missing.
func userID(c *gin.Context) (string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}
	return uid, true
}

func actorFrom(c *gin.Context) audit.Actor {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	return audit.Actor{UserID: uid, Role: role, IP: c.ClientIP()}
}

func viewerFrom(c *gin.Context) tickets.Viewer {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	return tickets.Viewer{UserID: uid, Staff: rbac.IsStaff(role)}
}
