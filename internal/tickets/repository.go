package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/internal/fleet"
	"bus-booking/internal/inventory"
	"bus-booking/pkg/utils"

	"github.com/shopspring/decimal"
)

type scanner interface {
	Scan(dest ...any) error
}

const ticketColumns = `t.id, t.user_id, t.bus_id, t.segment_id, t.start_stop_id, t.end_stop_id, t.start_seq, t.end_seq,
t.departure_offset_seconds, t.seat_numbers, t.seat_class, t.passenger_count, t.total_fare, t.refund_amount,
t.status, t.booked_at, t.updated_at`

func scanTicket(row scanner, extra ...any) (Ticket, error) {
	var (
		t         Ticket
		segmentID sql.NullString
		offset    int64
		seats     string
		class     string
		status    string
	)
	dest := []any{
		&t.ID, &t.UserID, &t.BusID, &segmentID, &t.StartStopID, &t.EndStopID, &t.StartSeq, &t.EndSeq,
		&offset, &seats, &class, &t.PassengerCount, &t.TotalFare, &t.RefundAmount,
		&status, &t.BookedAt, &t.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ticket{}, apperr.New(apperr.ErrNotFound, "ticket not found")
		}
		return Ticket{}, err
	}
	t.SegmentID = segmentID.String
	t.DepartureOffset = time.Duration(offset) * time.Second
	t.SeatNumbers, _ = inventory.ParseSeatNumbers(seats, 0)
	t.SeatClass = fleet.SeatClass(class)
	t.Status = Status(status)
	return t, nil
}

func GetTicket(ctx context.Context, q utils.Querier, id string) (Ticket, error) {
	return scanTicket(q.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets t WHERE t.id = $1`, id))
}

// LockTicketTx locks a ticket row. Take the bus lock first.
func LockTicketTx(ctx context.Context, tx *sql.Tx, id string) (Ticket, error) {
	return scanTicket(tx.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets t WHERE t.id = $1 FOR UPDATE`, id))
}

// LockBookedByBusTx locks every BOOKED ticket on a bus ordered by owner, so
// callers that settle them in turn lock wallets in user_id order.
func LockBookedByBusTx(ctx context.Context, tx *sql.Tx, busID string) ([]Ticket, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets t WHERE t.bus_id = $1 AND t.status = 'BOOKED' ORDER BY t.user_id, t.id FOR UPDATE`,
		busID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListByBus returns a bus's tickets, optionally filtered by status.
func ListByBus(ctx context.Context, q utils.Querier, busID string, status Status) ([]Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.bus_id = $1`
	args := []any{busID}
	if status != "" {
		query += ` AND t.status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY t.booked_at, t.id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func listByUser(ctx context.Context, q utils.Querier, userID string) ([]Ticket, error) {
	query := `SELECT ` + ticketColumns + `, b.bus_number, b.departure_time
FROM tickets t
JOIN buses b ON b.id = t.bus_id
WHERE t.user_id = $1
ORDER BY t.booked_at DESC, t.id`
	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Ticket, 0)
	for rows.Next() {
		var (
			busNumber string
			departure time.Time
		)
		t, err := scanTicket(rows, &busNumber, &departure)
		if err != nil {
			return nil, err
		}
		t.BusNumber = busNumber
		t.DepartureTime = t.EffectiveDeparture(departure)
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertTx stores a new ticket with its passengers.
func InsertTx(ctx context.Context, tx *sql.Tx, t Ticket) error {
	for _, p := range t.Passengers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO passengers (id, name, age, gender, id_number, phone) VALUES ($1,$2,$3,$4,$5,$6)`,
			p.ID, p.Name, p.Age, p.Gender, p.IDNumber, p.Phone,
		); err != nil {
			return fmt.Errorf("insert passenger: %w", err)
		}
	}

	const q = `
INSERT INTO tickets (
  id, user_id, bus_id, segment_id, start_stop_id, end_stop_id, start_seq, end_seq,
  departure_offset_seconds, seat_numbers, seat_class, passenger_count, total_fare, refund_amount,
  status, booked_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
)
`
	segmentID := sql.NullString{String: t.SegmentID, Valid: t.SegmentID != ""}
	if _, err := tx.ExecContext(ctx, q,
		t.ID, t.UserID, t.BusID, segmentID, t.StartStopID, t.EndStopID, t.StartSeq, t.EndSeq,
		int64(t.DepartureOffset/time.Second), inventory.FormatSeatNumbers(t.SeatNumbers), string(t.SeatClass),
		t.PassengerCount, t.TotalFare, t.RefundAmount,
		string(t.Status), t.BookedAt, t.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}

	for _, p := range t.Passengers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ticket_passengers (ticket_id, passenger_id) VALUES ($1,$2)`, t.ID, p.ID,
		); err != nil {
			return fmt.Errorf("link passenger: %w", err)
		}
	}
	return nil
}

// MarkCancelledTx moves a locked BOOKED ticket to CANCELLED.
func MarkCancelledTx(ctx context.Context, tx *sql.Tx, id string, refund decimal.Decimal, now time.Time) error {
	return transition(ctx, tx, id, StatusCancelled, refund, now)
}

// MarkCompletedTx moves a locked BOOKED ticket to COMPLETED.
func MarkCompletedTx(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	return transition(ctx, tx, id, StatusCompleted, decimal.Zero, now)
}

func transition(ctx context.Context, tx *sql.Tx, id string, to Status, refund decimal.Decimal, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = $1, refund_amount = $2, updated_at = $3 WHERE id = $4 AND status = 'BOOKED'`,
		string(to), refund, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return apperr.New(apperr.ErrInvalidTransition, "ticket is no longer booked")
	}
	return nil
}

func listPassengers(ctx context.Context, q utils.Querier, ticketID string) ([]Passenger, error) {
	const query = `
SELECT p.id, p.name, p.age, p.gender, p.id_number, p.phone
FROM passengers p
JOIN ticket_passengers tp ON tp.passenger_id = p.id
WHERE tp.ticket_id = $1
ORDER BY p.name, p.id
`
	rows, err := q.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Passenger, 0)
	for rows.Next() {
		var p Passenger
		if err := rows.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.IDNumber, &p.Phone); err != nil {
			return nil, err
		}
		p.Gender = strings.TrimSpace(p.Gender)
		out = append(out, p)
	}
	return out, rows.Err()
}

func updatePassenger(ctx context.Context, tx *sql.Tx, ticketID string, p Passenger) error {
	const q = `
UPDATE passengers SET name = $1, age = $2, gender = $3, id_number = $4, phone = $5
WHERE id = $6 AND id IN (SELECT passenger_id FROM ticket_passengers WHERE ticket_id = $7)
`
	res, err := tx.ExecContext(ctx, q, p.Name, p.Age, p.Gender, p.IDNumber, p.Phone, p.ID, ticketID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.New(apperr.ErrNotFound, "passenger not found on this ticket")
	}
	return nil
}
