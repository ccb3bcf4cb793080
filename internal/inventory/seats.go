package inventory

import (
	"sort"
	"strconv"
	"strings"

	"bus-booking/internal/apperr"
	"bus-booking/internal/fleet"
)

// Span is a stop-sequence range on a route, start < end.
type Span struct {
	StartSeq int `json:"start_sequence"`
	EndSeq   int `json:"end_sequence"`
}

// Overlaps uses inclusive bounds: ranges that share a stop overlap.
func (s Span) Overlaps(o Span) bool {
	return s.StartSeq <= o.EndSeq && s.EndSeq >= o.StartSeq
}

// Holding is the seat footprint of one BOOKED ticket.
type Holding struct {
	Span
	PassengerCount int
	Seats          []int
}

// SegmentAvailability is total minus the passengers of holdings overlapping span.
func SegmentAvailability(total int, span Span, holdings []Holding) int {
	used := 0
	for _, h := range holdings {
		if h.Overlaps(span) {
			used += h.PassengerCount
		}
	}
	if used >= total {
		return 0
	}
	return total - used
}

// Decrement takes count seats off the scalar counter, clamped to [0, total].
func Decrement(available, count, total int) int {
	return fleet.ClampSeats(available-count, total)
}

// Increment returns count seats to the scalar counter, clamped to [0, total].
func Increment(available, count, total int) int {
	return fleet.ClampSeats(available+count, total)
}

// ParseSeatNumbers parses a comma-delimited seat list. Every seat must be a
// number within 1..total and appear once. The result is sorted.
func ParseSeatNumbers(list string, total int) ([]int, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, apperr.New(apperr.ErrValidation, "at least one seat required")
	}
	parts := strings.Split(list, ",")
	seen := make(map[int]bool, len(parts))
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, apperr.New(apperr.ErrValidation, "seat %q is not a number", p)
		}
		if n < 1 || (total > 0 && n > total) {
			return nil, apperr.New(apperr.ErrValidation, "seat %d is out of range", n)
		}
		if seen[n] {
			return nil, apperr.New(apperr.ErrValidation, "seat %d listed twice", n)
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// FormatSeatNumbers is the stored form of a seat list.
func FormatSeatNumbers(seats []int) string {
	parts := make([]string, len(seats))
	for i, n := range seats {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// Seat is one entry of a seat map.
type Seat struct {
	Number int  `json:"number"`
	Booked bool `json:"booked"`
}

// SeatMap is the per-seat view of a bus, optionally scoped to a segment.
type SeatMap struct {
	BusID      string `json:"bus_id"`
	SegmentID  string `json:"segment_id,omitempty"`
	TotalSeats int    `json:"total_seats"`
	Available  int    `json:"available"`
	Seats      []Seat `json:"seats"`
}

// buildSeatMap flags the seats held by holdings that overlap span. A nil span
// counts every holding.
func buildSeatMap(total int, span *Span, holdings []Holding) []Seat {
	taken := make(map[int]bool)
	for _, h := range holdings {
		if span != nil && !h.Overlaps(*span) {
			continue
		}
		for _, n := range h.Seats {
			taken[n] = true
		}
	}
	seats := make([]Seat, total)
	for i := range seats {
		seats[i] = Seat{Number: i + 1, Booked: taken[i+1]}
	}
	return seats
}
