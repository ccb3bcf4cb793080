package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/internal/fleet"
	"bus-booking/pkg/utils"
)

// BookedPassengersTx sums passengers of BOOKED tickets on busID whose stop
// range overlaps span. Callers hold the bus lock so the sum stays valid until commit.
func BookedPassengersTx(ctx context.Context, q utils.Querier, busID string, span Span) (int, error) {
	const query = `
SELECT COALESCE(SUM(passenger_count), 0)
FROM tickets
WHERE bus_id = $1 AND status = 'BOOKED' AND start_seq <= $2 AND end_seq >= $3
`
	var n int
	if err := q.QueryRowContext(ctx, query, busID, span.EndSeq, span.StartSeq).Scan(&n); err != nil {
		return 0, fmt.Errorf("sum booked passengers: %w", err)
	}
	return n, nil
}

// CheckTx verifies that count more passengers fit on a bus locked by
// fleet.LockBusTx. segment is nil for a simple bus, which uses the scalar
// counter; otherwise overlapping BOOKED tickets decide.
func CheckTx(ctx context.Context, tx *sql.Tx, bus fleet.Bus, segment *fleet.Segment, count int) error {
	if bus.IsFull() {
		return apperr.New(apperr.ErrCapacityExceeded, "bus %s is full", bus.BusNumber)
	}
	if segment == nil {
		if bus.AvailableSeats < count {
			return apperr.New(apperr.ErrCapacityExceeded, "only %d seats left", bus.AvailableSeats)
		}
		return nil
	}
	used, err := BookedPassengersTx(ctx, tx, bus.ID, Span{StartSeq: segment.StartSeq, EndSeq: segment.EndSeq})
	if err != nil {
		return err
	}
	if left := fleet.ClampSeats(bus.TotalSeats-used, bus.TotalSeats); left < count {
		return apperr.New(apperr.ErrCapacityExceeded,
			"only %d seats left between %s and %s", left, segment.StartCity, segment.EndCity)
	}
	return nil
}

// TakeTx takes count seats off the scalar counter of a locked bus.
func TakeTx(ctx context.Context, tx *sql.Tx, bus fleet.Bus, count int, now time.Time) (int, error) {
	next := Decrement(bus.AvailableSeats, count, bus.TotalSeats)
	if err := fleet.SetAvailableSeatsTx(ctx, tx, bus.ID, next, now); err != nil {
		return 0, fmt.Errorf("decrement seats: %w", err)
	}
	return next, nil
}

// ReleaseTx returns count seats to a locked bus.
func ReleaseTx(ctx context.Context, tx *sql.Tx, bus fleet.Bus, count int, now time.Time) (int, error) {
	next := Increment(bus.AvailableSeats, count, bus.TotalSeats)
	if err := fleet.SetAvailableSeatsTx(ctx, tx, bus.ID, next, now); err != nil {
		return 0, fmt.Errorf("release seats: %w", err)
	}
	return next, nil
}

func listHoldings(ctx context.Context, q utils.Querier, busID string) ([]Holding, error) {
	const query = `
SELECT seat_numbers, start_seq, end_seq, passenger_count
FROM tickets
WHERE bus_id = $1 AND status = 'BOOKED'
`
	rows, err := q.QueryContext(ctx, query, busID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Holding, 0)
	for rows.Next() {
		var (
			h     Holding
			seats string
		)
		if err := rows.Scan(&seats, &h.StartSeq, &h.EndSeq, &h.PassengerCount); err != nil {
			return nil, err
		}
		// Stored lists were validated on booking; bounds are not rechecked here.
		h.Seats, _ = ParseSeatNumbers(seats, 0)
		out = append(out, h)
	}
	return out, rows.Err()
}

// Service answers read-only availability questions.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service { return &Service{db: db} }

// SeatMap lists seats 1..total with their booked flag. With a segment, only
// overlapping tickets count and Available is the segment availability;
// otherwise Available is the scalar counter.
func (s *Service) SeatMap(ctx context.Context, busID, segmentID string) (SeatMap, error) {
	bus, err := fleet.GetBus(ctx, s.db, busID)
	if err != nil {
		return SeatMap{}, err
	}
	if !bus.IsActive {
		return SeatMap{}, apperr.New(apperr.ErrNotFound, "bus not found")
	}

	var span *Span
	if segmentID != "" {
		seg, err := fleet.GetSegment(ctx, s.db, bus.RouteID, segmentID)
		if err != nil {
			return SeatMap{}, err
		}
		span = &Span{StartSeq: seg.StartSeq, EndSeq: seg.EndSeq}
	}

	holdings, err := listHoldings(ctx, s.db, bus.ID)
	if err != nil {
		return SeatMap{}, err
	}

	m := SeatMap{
		BusID:      bus.ID,
		SegmentID:  segmentID,
		TotalSeats: bus.TotalSeats,
		Available:  bus.AvailableSeats,
		Seats:      buildSeatMap(bus.TotalSeats, span, holdings),
	}
	if span != nil {
		m.Available = SegmentAvailability(bus.TotalSeats, *span, holdings)
	}
	return m, nil
}
