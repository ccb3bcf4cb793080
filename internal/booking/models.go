package booking

import (
	"bus-booking/internal/pricing"
	"bus-booking/internal/tickets"

	"github.com/shopspring/decimal"
)

// Request is one booking attempt. SeatNumbers is a comma-delimited list;
// one passenger is required per seat. SegmentID is required on routes with
// declared segments and must be empty otherwise.
type Request struct {
	UserID      string                   `json:"-"`
	BusID       string                   `json:"bus_id"`
	SegmentID   string                   `json:"segment_id,omitempty"`
	SeatClass   string                   `json:"seat_class"`
	SeatNumbers string                   `json:"seat_numbers"`
	Passengers  []tickets.PassengerInput `json:"passengers"`
}

// Result is a committed booking.
type Result struct {
	Ticket         tickets.Ticket  `json:"ticket"`
	Quote          pricing.Quote   `json:"quote"`
	Balance        decimal.Decimal `json:"wallet_balance"`
	AvailableSeats int             `json:"available_seats"`
}
