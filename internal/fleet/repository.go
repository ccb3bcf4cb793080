package fleet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/pkg/utils"
)

type scanner interface {
	Scan(dest ...any) error
}

const busColumns = `id, route_id, bus_number, departure_time, arrival_time, total_seats, available_seats,
fare, sleeper_fare, luxury_fare, has_general_seats, has_sleeper_seats, has_luxury_seats, is_active,
created_at, updated_at`

func scanBus(row scanner) (Bus, error) {
	var b Bus
	err := row.Scan(
		&b.ID,
		&b.RouteID,
		&b.BusNumber,
		&b.DepartureTime,
		&b.ArrivalTime,
		&b.TotalSeats,
		&b.AvailableSeats,
		&b.Fare,
		&b.SleeperFare,
		&b.LuxuryFare,
		&b.HasGeneral,
		&b.HasSleeper,
		&b.HasLuxury,
		&b.IsActive,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Bus{}, apperr.New(apperr.ErrNotFound, "bus not found")
	}
	return b, err
}

func GetBus(ctx context.Context, q utils.Querier, id string) (Bus, error) {
	return scanBus(q.QueryRowContext(ctx, `SELECT `+busColumns+` FROM buses WHERE id = $1`, id))
}

// LockBusTx locks the bus row. Every booking and cancellation takes this lock
// first, so seat checks and counter updates on one bus serialize.
func LockBusTx(ctx context.Context, tx *sql.Tx, id string) (Bus, error) {
	return scanBus(tx.QueryRowContext(ctx, `SELECT `+busColumns+` FROM buses WHERE id = $1 FOR UPDATE`, id))
}

// SetAvailableSeatsTx writes the scalar seat counter. Callers clamp first.
func SetAvailableSeatsTx(ctx context.Context, tx *sql.Tx, busID string, available int, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE buses SET available_seats = $1, updated_at = $2 WHERE id = $3`,
		available, now, busID)
	return err
}

func DeactivateBusTx(ctx context.Context, tx *sql.Tx, busID string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE buses SET is_active = FALSE, updated_at = $1 WHERE id = $2`,
		now, busID)
	return err
}

func insertBus(ctx context.Context, q utils.Querier, b Bus) error {
	const query = `
INSERT INTO buses (
  id, route_id, bus_number, departure_time, arrival_time, total_seats, available_seats,
  fare, sleeper_fare, luxury_fare, has_general_seats, has_sleeper_seats, has_luxury_seats, is_active,
  created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
`
	_, err := q.ExecContext(ctx, query,
		b.ID, b.RouteID, b.BusNumber, b.DepartureTime, b.ArrivalTime, b.TotalSeats, b.AvailableSeats,
		b.Fare, b.SleeperFare, b.LuxuryFare, b.HasGeneral, b.HasSleeper, b.HasLuxury, b.IsActive,
		b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func updateBus(ctx context.Context, q utils.Querier, b Bus) error {
	const query = `
UPDATE buses SET
  route_id = $2, bus_number = $3, departure_time = $4, arrival_time = $5, total_seats = $6,
  available_seats = $7, fare = $8, sleeper_fare = $9, luxury_fare = $10, has_general_seats = $11,
  has_sleeper_seats = $12, has_luxury_seats = $13, is_active = $14, updated_at = $15
WHERE id = $1
`
	_, err := q.ExecContext(ctx, query,
		b.ID, b.RouteID, b.BusNumber, b.DepartureTime, b.ArrivalTime, b.TotalSeats,
		b.AvailableSeats, b.Fare, b.SleeperFare, b.LuxuryFare, b.HasGeneral,
		b.HasSleeper, b.HasLuxury, b.IsActive, b.UpdatedAt,
	)
	return err
}

func listBuses(ctx context.Context, q utils.Querier, active *bool) ([]Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses`
	var args []any
	if active != nil {
		query += ` WHERE is_active = $1`
		args = append(args, *active)
	}
	query += ` ORDER BY departure_time`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Bus, 0)
	for rows.Next() {
		b, err := scanBus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func routeExists(ctx context.Context, q utils.Querier, routeID string) (bool, error) {
	var ok bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM routes WHERE id = $1)`, routeID).Scan(&ok)
	return ok, err
}

// countBookedTickets counts BOOKED tickets on a bus. Callers hold the bus lock.
func countBookedTickets(ctx context.Context, tx *sql.Tx, busID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE bus_id = $1 AND status = 'BOOKED'`, busID).Scan(&n)
	return n, err
}

func getRoute(ctx context.Context, q utils.Querier, id string) (Route, error) {
	var r Route
	err := q.QueryRowContext(ctx,
		`SELECT id, name, origin, destination, created_at FROM routes WHERE id = $1`, id,
	).Scan(&r.ID, &r.Name, &r.Origin, &r.Destination, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Route{}, apperr.New(apperr.ErrNotFound, "route not found")
	}
	return r, err
}

func insertRoute(ctx context.Context, tx *sql.Tx, r Route) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO routes (id, name, origin, destination, created_at) VALUES ($1,$2,$3,$4,$5)`,
		r.ID, r.Name, r.Origin, r.Destination, r.CreatedAt)
	return err
}

func insertStop(ctx context.Context, tx *sql.Tx, s Stop) error {
	const q = `
INSERT INTO route_stops (id, route_id, city, sequence, arrival_offset_seconds, departure_offset_seconds)
VALUES ($1,$2,$3,$4,$5,$6)
`
	_, err := tx.ExecContext(ctx, q,
		s.ID, s.RouteID, s.City, s.Sequence,
		int64(s.ArrivalOffset/time.Second), int64(s.DepartureOffset/time.Second))
	return err
}

func insertSegment(ctx context.Context, tx *sql.Tx, s Segment) error {
	const q = `
INSERT INTO route_segments (id, route_id, start_stop_id, end_stop_id, fare_multiplier)
VALUES ($1,$2,$3,$4,$5)
`
	_, err := tx.ExecContext(ctx, q, s.ID, s.RouteID, s.StartStopID, s.EndStopID, s.FareMultiplier)
	return err
}

// ListStops returns the route's stops in travel order.
func ListStops(ctx context.Context, q utils.Querier, routeID string) ([]Stop, error) {
	const query = `
SELECT id, route_id, city, sequence, arrival_offset_seconds, departure_offset_seconds
FROM route_stops
WHERE route_id = $1
ORDER BY sequence
`
	rows, err := q.QueryContext(ctx, query, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Stop, 0)
	for rows.Next() {
		var (
			s          Stop
			arr, depar int64
		)
		if err := rows.Scan(&s.ID, &s.RouteID, &s.City, &s.Sequence, &arr, &depar); err != nil {
			return nil, err
		}
		s.ArrivalOffset = time.Duration(arr) * time.Second
		s.DepartureOffset = time.Duration(depar) * time.Second
		out = append(out, s)
	}
	return out, rows.Err()
}

const segmentSelect = `
SELECT seg.id, seg.route_id, seg.start_stop_id, seg.end_stop_id, s1.sequence, s2.sequence,
       s1.city, s2.city, seg.fare_multiplier, s1.departure_offset_seconds
FROM route_segments seg
JOIN route_stops s1 ON s1.id = seg.start_stop_id
JOIN route_stops s2 ON s2.id = seg.end_stop_id
`

func scanSegment(row scanner) (Segment, error) {
	var (
		s      Segment
		offset int64
	)
	err := row.Scan(&s.ID, &s.RouteID, &s.StartStopID, &s.EndStopID, &s.StartSeq, &s.EndSeq,
		&s.StartCity, &s.EndCity, &s.FareMultiplier, &offset)
	if errors.Is(err, sql.ErrNoRows) {
		return Segment{}, apperr.New(apperr.ErrNotFound, "segment not found on this route")
	}
	s.DepartureOffset = time.Duration(offset) * time.Second
	return s, err
}

// GetSegment loads a segment and checks that it belongs to routeID.
func GetSegment(ctx context.Context, q utils.Querier, routeID, segmentID string) (Segment, error) {
	return scanSegment(q.QueryRowContext(ctx,
		segmentSelect+`WHERE seg.id = $1 AND seg.route_id = $2`, segmentID, routeID))
}

func ListSegments(ctx context.Context, q utils.Querier, routeID string) ([]Segment, error) {
	rows, err := q.QueryContext(ctx, segmentSelect+`WHERE seg.route_id = $1 ORDER BY s1.sequence, s2.sequence`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Segment, 0)
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func CountSegments(ctx context.Context, q utils.Querier, routeID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM route_segments WHERE route_id = $1`, routeID).Scan(&n)
	return n, err
}

// searchCandidates returns every (bus, start stop, end stop) triple of active
// buses where the start stop matches origin and a later stop matches destination.
func searchCandidates(ctx context.Context, q utils.Querier, origin, destination string, date time.Time) ([]candidate, error) {
	query := `
SELECT b.id, b.route_id, b.bus_number, b.departure_time, b.arrival_time, b.total_seats, b.available_seats,
       b.fare, b.sleeper_fare, b.luxury_fare, b.has_general_seats, b.has_sleeper_seats, b.has_luxury_seats, b.is_active,
       b.created_at, b.updated_at,
       r.name,
       s1.id, s1.city, s1.sequence, s1.arrival_offset_seconds, s1.departure_offset_seconds,
       s2.id, s2.city, s2.sequence, s2.arrival_offset_seconds, s2.departure_offset_seconds,
       seg.id, seg.fare_multiplier
FROM buses b
JOIN routes r ON r.id = b.route_id
JOIN route_stops s1 ON s1.route_id = b.route_id
JOIN route_stops s2 ON s2.route_id = b.route_id AND s2.sequence > s1.sequence
LEFT JOIN route_segments seg
  ON seg.route_id = b.route_id AND seg.start_stop_id = s1.id AND seg.end_stop_id = s2.id
WHERE b.is_active AND s1.city ILIKE $1 AND s2.city ILIKE $2`
	args := []any{likePattern(origin), likePattern(destination)}
	if !date.IsZero() {
		day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		args = append(args, day, day.Add(24*time.Hour))
		query += fmt.Sprintf(` AND b.departure_time >= $%d AND b.departure_time < $%d`, len(args)-1, len(args))
	}
	query += ` ORDER BY b.departure_time, b.id, s1.sequence, s2.sequence`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]candidate, 0)
	for rows.Next() {
		var (
			c                      candidate
			sArr, sDep, eArr, eDep int64
			segID                  sql.NullString
		)
		b := &c.bus
		if err := rows.Scan(
			&b.ID, &b.RouteID, &b.BusNumber, &b.DepartureTime, &b.ArrivalTime, &b.TotalSeats, &b.AvailableSeats,
			&b.Fare, &b.SleeperFare, &b.LuxuryFare, &b.HasGeneral, &b.HasSleeper, &b.HasLuxury, &b.IsActive,
			&b.CreatedAt, &b.UpdatedAt,
			&c.routeName,
			&c.start.ID, &c.start.City, &c.start.Sequence, &sArr, &sDep,
			&c.end.ID, &c.end.City, &c.end.Sequence, &eArr, &eDep,
			&segID, &c.multiplier,
		); err != nil {
			return nil, err
		}
		c.start.RouteID, c.end.RouteID = b.RouteID, b.RouteID
		c.start.ArrivalOffset = time.Duration(sArr) * time.Second
		c.start.DepartureOffset = time.Duration(sDep) * time.Second
		c.end.ArrivalOffset = time.Duration(eArr) * time.Second
		c.end.DepartureOffset = time.Duration(eDep) * time.Second
		c.segmentID = segID.String
		out = append(out, c)
	}
	return out, rows.Err()
}
