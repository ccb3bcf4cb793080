package httpapi

import (
	"net/http"
	"time"

	"bus-booking/internal/auth"
	"bus-booking/internal/users"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth     *auth.Manager
	Accounts Accounts
	Wallets  Wallets
	Fleet    Fleet
	Seats    Seats
	Tickets  Tickets
	Booking  Booker
	Cancel   Canceller
	Reports  Reports
	Receipts Receipts
	BusGate  *BusGate
	Clock    func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// --- Auth ---

type authResponse struct {
	User   users.User     `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

func (h Handlers) Register(c *gin.Context) {
	var req users.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	u, err := h.Accounts.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), u.ID, u.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse{User: u, Tokens: pair})
}

// Login checks credentials and issues a JWT token pair.
func (h Handlers) Login(c *gin.Context) {
	var req users.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	u, err := h.Accounts.Authenticate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), u.ID, u.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{User: u, Tokens: pair})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new pair, re-reading the role.
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		badRequest(c, "refresh_token required")
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, h.now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	u, err := h.Accounts.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), u.ID, u.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{User: u, Tokens: pair})
}

func (h Handlers) Me(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	u, err := h.Accounts.Get(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
