package httpapi

import (
	"net/http"
	"strings"
	"time"

	"bus-booking/internal/fleet"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

func (h Handlers) SearchBuses(c *gin.Context) {
	q := fleet.SearchQuery{
		Origin:      c.Query("origin"),
		Destination: c.Query("destination"),
		Sort:        fleet.SortOrder(strings.TrimSpace(c.Query("sort"))),
	}
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return
		}
		q.Date = d
	}
	matches, err := h.Fleet.Search(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": matches})
}

func (h Handlers) GetBus(c *gin.Context) {
	d, err := h.Fleet.GetBus(c.Request.Context(), c.Param("bus_id"), false)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h Handlers) SeatMap(c *gin.Context) {
	m, err := h.Seats.SeatMap(c.Request.Context(), c.Param("bus_id"), c.Query("segment_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
