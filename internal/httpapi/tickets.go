package httpapi

import (
	"net/http"
	"strings"

	"bus-booking/internal/booking"
	"bus-booking/internal/tickets"

	"github.com/gin-gonic/gin"
)

// BookTicket runs one booking. The per-bus gate sheds load before the
// request queues on the bus row lock.
func (h Handlers) BookTicket(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req booking.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	req.UserID = uid

	release, admitted := h.BusGate.Acquire(c.Request.Context(), req.BusID)
	if !admitted {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many bookings in progress for this bus, retry shortly"})
		return
	}
	defer release()

	res, err := h.Booking.Book(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h Handlers) ListTickets(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	filter := tickets.ListFilter(strings.ToLower(strings.TrimSpace(c.DefaultQuery("filter", string(tickets.FilterAll)))))
	out, err := h.Tickets.ListForUser(c.Request.Context(), uid, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) GetTicket(c *gin.Context) {
	t, err := h.Tickets.Get(c.Request.Context(), viewerFrom(c), c.Param("ticket_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) TicketReceipt(c *gin.Context) {
	id := c.Param("ticket_id")
	pdf, err := h.Receipts.Receipt(c.Request.Context(), viewerFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="ticket-`+id+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h Handlers) CancelTicket(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	out, err := h.Cancel.Cancel(c.Request.Context(), uid, c.Param("ticket_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) UpdatePassenger(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req tickets.PassengerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	p, err := h.Tickets.UpdatePassenger(c.Request.Context(), uid, c.Param("ticket_id"), c.Param("passenger_id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
