package httpapi

import (
	"net/http"
	"strings"

	"bus-booking/internal/fleet"
	"bus-booking/internal/reporting"
	"bus-booking/internal/tickets"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Admin handlers. RBAC (staff only) is applied by the route group.

type reasonRequest struct {
	Reason string `json:"reason"`
}

type creditRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (h Handlers) CreateRoute(c *gin.Context) {
	var req fleet.CreateRouteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	r, err := h.Fleet.CreateRoute(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h Handlers) CreateBus(c *gin.Context) {
	var req fleet.BusInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	b, err := h.Fleet.CreateBus(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h Handlers) UpdateBus(c *gin.Context) {
	var req fleet.BusInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	b, err := h.Fleet.UpdateBus(c.Request.Context(), actorFrom(c), c.Param("bus_id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h Handlers) ListBuses(c *gin.Context) {
	buses, err := h.Fleet.ListBuses(c.Request.Context(), strings.ToLower(c.Query("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buses": buses})
}

func (h Handlers) CancelBus(c *gin.Context) {
	var req reasonRequest
	// body is optional
	_ = c.ShouldBindJSON(&req)
	out, err := h.Cancel.CancelBus(c.Request.Context(), actorFrom(c), c.Param("bus_id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) BusBookings(c *gin.Context) {
	out, err := h.Reports.BusBookings(c.Request.Context(), reporting.BusBookingsRequest{
		BusID:  c.Param("bus_id"),
		Status: tickets.Status(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) AdminCancelTicket(c *gin.Context) {
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	out, err := h.Cancel.AdminCancelTicket(c.Request.Context(), actorFrom(c), c.Param("ticket_id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CompleteTicket(c *gin.Context) {
	t, err := h.Tickets.Complete(c.Request.Context(), actorFrom(c), c.Param("ticket_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// AdminCredit performs an admin-only wallet credit.
func (h Handlers) AdminCredit(c *gin.Context) {
	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	w, entry, err := h.Wallets.AdminCredit(c.Request.Context(), actorFrom(c), c.Param("user_id"), req.Amount, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, postingResponse{Wallet: w, Transaction: entry})
}
