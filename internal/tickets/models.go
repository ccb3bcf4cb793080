package tickets

import (
	"time"

	"bus-booking/internal/fleet"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusBooked    Status = "BOOKED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool { return s == StatusCancelled || s == StatusCompleted }

// Ticket is one booking of one or more seats on a bus, optionally on a
// segment of a multi-stop route. Status moves BOOKED -> CANCELLED or
// BOOKED -> COMPLETED and never back.
type Ticket struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	BusID       string `json:"bus_id"`
	SegmentID   string `json:"segment_id,omitempty"`
	StartStopID string `json:"start_stop_id"`
	EndStopID   string `json:"end_stop_id"`
	StartSeq    int    `json:"start_sequence"`
	EndSeq      int    `json:"end_sequence"`
	// DepartureOffset is the boarding stop's offset from the bus departure.
	DepartureOffset time.Duration   `json:"-"`
	SeatNumbers     []int           `json:"seat_numbers"`
	SeatClass       fleet.SeatClass `json:"seat_class"`
	PassengerCount  int             `json:"passenger_count"`
	TotalFare       decimal.Decimal `json:"total_fare"`
	RefundAmount    decimal.Decimal `json:"refund_amount"`
	Status          Status          `json:"status"`
	BookedAt        time.Time       `json:"booked_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// Populated by read paths.
	BusNumber     string      `json:"bus_number,omitempty"`
	DepartureTime time.Time   `json:"departure_time,omitempty"`
	Passengers    []Passenger `json:"passengers,omitempty"`
}

// EffectiveDeparture is when this ticket's passengers board.
func (t Ticket) EffectiveDeparture(busDeparture time.Time) time.Time {
	return busDeparture.Add(t.DepartureOffset)
}

type Passenger struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
	IDNumber string `json:"id_number,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// PassengerInput is used both when booking and when editing a passenger.
type PassengerInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Age      int    `json:"age" validate:"gte=1,lte=120"`
	Gender   string `json:"gender" validate:"oneof=M F O"`
	IDNumber string `json:"id_number" validate:"max=50"`
	Phone    string `json:"phone" validate:"omitempty,numeric,min=10,max=15"`
}

type ListFilter string

const (
	FilterAll      ListFilter = "all"
	FilterUpcoming ListFilter = "upcoming"
	FilterPast     ListFilter = "past"
)

// Listing splits a user's tickets by whether the journey is still ahead.
type Listing struct {
	Upcoming []Ticket `json:"upcoming"`
	Past     []Ticket `json:"past"`
}

// Viewer is the caller reading a ticket. Staff can read any ticket.
type Viewer struct {
	UserID string
	Staff  bool
}
