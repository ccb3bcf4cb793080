package fleet

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type SeatClass string

const (
	SeatClassGeneral SeatClass = "GENERAL"
	SeatClassSleeper SeatClass = "SLEEPER"
	SeatClassLuxury  SeatClass = "LUXURY"
)

// Route is an ordered list of stops. A simple route has two stops and no
// declared segments.
type Route struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Stops       []Stop    `json:"stops,omitempty"`
	Segments    []Segment `json:"segments,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stop offsets are relative to the bus departure time.
type Stop struct {
	ID              string        `json:"id"`
	RouteID         string        `json:"route_id"`
	City            string        `json:"city"`
	Sequence        int           `json:"sequence"`
	ArrivalOffset   time.Duration `json:"-"`
	DepartureOffset time.Duration `json:"-"`
}

func (s Stop) MarshalJSON() ([]byte, error) {
	type plain Stop
	return json.Marshal(struct {
		plain
		ArrivalOffsetMinutes   int64 `json:"arrival_offset_minutes"`
		DepartureOffsetMinutes int64 `json:"departure_offset_minutes"`
	}{plain(s), int64(s.ArrivalOffset / time.Minute), int64(s.DepartureOffset / time.Minute)})
}

// Segment is a bookable sub-journey between two stops of one route.
type Segment struct {
	ID             string          `json:"id"`
	RouteID        string          `json:"route_id"`
	StartStopID    string          `json:"start_stop_id"`
	EndStopID      string          `json:"end_stop_id"`
	StartSeq       int             `json:"start_sequence"`
	EndSeq         int             `json:"end_sequence"`
	StartCity      string          `json:"start_city,omitempty"`
	EndCity        string          `json:"end_city,omitempty"`
	FareMultiplier decimal.Decimal `json:"fare_multiplier"`
	// DepartureOffset is the start stop's departure offset.
	DepartureOffset time.Duration `json:"-"`
}

// Bus is one scheduled journey over a route.
// Invariant: 0 <= AvailableSeats <= TotalSeats.
type Bus struct {
	ID             string              `json:"id"`
	RouteID        string              `json:"route_id"`
	BusNumber      string              `json:"bus_number"`
	DepartureTime  time.Time           `json:"departure_time"`
	ArrivalTime    time.Time           `json:"arrival_time"`
	TotalSeats     int                 `json:"total_seats"`
	AvailableSeats int                 `json:"available_seats"`
	Fare           decimal.Decimal     `json:"fare"`
	SleeperFare    decimal.NullDecimal `json:"sleeper_fare"`
	LuxuryFare     decimal.NullDecimal `json:"luxury_fare"`
	HasGeneral     bool                `json:"has_general_seats"`
	HasSleeper     bool                `json:"has_sleeper_seats"`
	HasLuxury      bool                `json:"has_luxury_seats"`
	IsActive       bool                `json:"is_active"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (b Bus) IsFull() bool { return b.AvailableSeats == 0 }

// BusDetail is a bus with its route layout.
type BusDetail struct {
	Bus   Bus   `json:"bus"`
	Route Route `json:"route"`
}

// CreateRouteInput declares stops in travel order. Segments refer to stops by
// their position in Stops.
type CreateRouteInput struct {
	Name     string         `json:"name" validate:"required,max=120"`
	Stops    []StopInput    `json:"stops" validate:"min=2,dive"`
	Segments []SegmentInput `json:"segments" validate:"dive"`
}

type StopInput struct {
	City                   string `json:"city" validate:"required,max=80"`
	ArrivalOffsetMinutes   int    `json:"arrival_offset_minutes" validate:"gte=0"`
	DepartureOffsetMinutes int    `json:"departure_offset_minutes" validate:"gte=0"`
}

type SegmentInput struct {
	StartSequence  int             `json:"start_sequence" validate:"gte=0"`
	EndSequence    int             `json:"end_sequence" validate:"gtfield=StartSequence"`
	FareMultiplier decimal.Decimal `json:"fare_multiplier"`
}

// BusInput creates or replaces a bus. Optional fields fall back to defaults:
// available seats to total seats, missing class fares to a multiple of the base fare.
type BusInput struct {
	RouteID        string           `json:"route_id" validate:"required,uuid"`
	BusNumber      string           `json:"bus_number" validate:"required,max=20"`
	DepartureTime  time.Time        `json:"departure_time" validate:"required"`
	ArrivalTime    time.Time        `json:"arrival_time" validate:"required,gtfield=DepartureTime"`
	TotalSeats     int              `json:"total_seats" validate:"gte=1,lte=500"`
	AvailableSeats *int             `json:"available_seats,omitempty" validate:"omitempty,gte=0"`
	Fare           decimal.Decimal  `json:"fare"`
	SleeperFare    *decimal.Decimal `json:"sleeper_fare,omitempty"`
	LuxuryFare     *decimal.Decimal `json:"luxury_fare,omitempty"`
	HasGeneral     *bool            `json:"has_general_seats,omitempty"`
	HasSleeper     bool             `json:"has_sleeper_seats"`
	HasLuxury      bool             `json:"has_luxury_seats"`
	IsActive       *bool            `json:"is_active,omitempty"`
}

type SortOrder string

const (
	SortDepartureEarly SortOrder = "departure_early"
	SortDepartureLate  SortOrder = "departure_late"
	SortFareLow        SortOrder = "fare_low"
	SortFareHigh       SortOrder = "fare_high"
)

type SearchQuery struct {
	Origin      string
	Destination string
	// Date filters on the bus departure date (UTC). Zero means any date.
	Date time.Time
	Sort SortOrder
}

// Match is one searchable journey: a bus and the stop pair that satisfies the query.
type Match struct {
	Bus       Bus             `json:"bus"`
	RouteName string          `json:"route_name"`
	StartStop Stop            `json:"start_stop"`
	EndStop   Stop            `json:"end_stop"`
	SegmentID string          `json:"segment_id,omitempty"`
	Fare      decimal.Decimal `json:"fare"`
	// DepartureTime is the bus departure plus the start stop offset.
	DepartureTime time.Time `json:"departure_time"`
}
