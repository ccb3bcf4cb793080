package pricing

import (
	"bus-booking/internal/fleet"

	"github.com/shopspring/decimal"
)

// Request describes a booking to price. Segment is nil for a whole-route
// booking on a simple bus.
type Request struct {
	Bus       fleet.Bus
	Class     fleet.SeatClass
	Segment   *fleet.Segment
	SeatCount int
}

// Quote is the priced booking. All amounts are rounded to 2 decimal places.
type Quote struct {
	Class      fleet.SeatClass `json:"seat_class"`
	SeatFare   decimal.Decimal `json:"seat_fare"`
	Multiplier decimal.Decimal `json:"multiplier"`
	SeatCount  int             `json:"seat_count"`
	Total      decimal.Decimal `json:"total"`
}
