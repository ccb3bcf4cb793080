package inventory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/internal/dbtest"
	"bus-booking/internal/fleet"

	"github.com/DATA-DOG/go-sqlmock"
)

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func withTx(t *testing.T, db *sql.DB, fn func(tx *sql.Tx) error) error {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func TestCheckTx_SegmentOverlapBlocks(t *testing.T) {
	db, mock := dbtest.New(t)
	bus := fleet.Bus{ID: "b1", BusNumber: "KA-01", TotalSeats: 40, AvailableSeats: 30}
	seg := &fleet.Segment{StartSeq: 0, EndSeq: 3, StartCity: "A", EndCity: "D"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(passenger_count\), 0\)`).
		WithArgs("b1", 3, 0).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(38))
	mock.ExpectRollback()

	err := withTx(t, db, func(tx *sql.Tx) error {
		return CheckTx(context.Background(), tx, bus, seg, 3)
	})
	if !errors.Is(err, apperr.ErrCapacityExceeded) {
		t.Fatalf("expected capacity exceeded, got %v", err)
	}
}

func TestCheckAndTakeTx_SimpleBus(t *testing.T) {
	db, mock := dbtest.New(t)
	bus := fleet.Bus{ID: "b1", TotalSeats: 40, AvailableSeats: 2}

	mock.ExpectBegin()
	mock.ExpectRollback()
	err := withTx(t, db, func(tx *sql.Tx) error {
		return CheckTx(context.Background(), tx, bus, nil, 3)
	})
	if !errors.Is(err, apperr.ErrCapacityExceeded) {
		t.Fatalf("expected capacity exceeded, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE buses SET available_seats = \$1`).
		WithArgs(0, testNow, "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	var left int
	err = withTx(t, db, func(tx *sql.Tx) error {
		if err := CheckTx(context.Background(), tx, bus, nil, 2); err != nil {
			return err
		}
		var err error
		left, err = TakeTx(context.Background(), tx, bus, 2, testNow)
		return err
	})
	if err != nil || left != 0 {
		t.Fatalf("expected 0 left, got %d %v", left, err)
	}
}

func TestCheckTx_FullBus(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	err := withTx(t, db, func(tx *sql.Tx) error {
		return CheckTx(context.Background(), tx, fleet.Bus{ID: "b1", TotalSeats: 40}, &fleet.Segment{EndSeq: 1}, 1)
	})
	if !errors.Is(err, apperr.ErrCapacityExceeded) {
		t.Fatalf("expected capacity exceeded, got %v", err)
	}
}

func TestService_SeatMapForSegment(t *testing.T) {
	db, mock := dbtest.New(t)
	svc := NewService(db)

	busCols := []string{"id", "route_id", "bus_number", "departure_time", "arrival_time", "total_seats", "available_seats",
		"fare", "sleeper_fare", "luxury_fare", "has_general_seats", "has_sleeper_seats", "has_luxury_seats", "is_active",
		"created_at", "updated_at"}
	mock.ExpectQuery(`FROM buses WHERE id = \$1`).WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(busCols).AddRow("b1", "r1", "KA-01", testNow, testNow.Add(8*time.Hour), 40, 35,
			"500.00", nil, nil, true, false, false, true, testNow, testNow))
	mock.ExpectQuery(`FROM route_segments seg`).WithArgs("seg-ad", "r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "route_id", "start_stop_id", "end_stop_id", "s1", "s2", "c1", "c2", "mult", "off"}).
			AddRow("seg-ad", "r1", "sa", "sd", 0, 3, "A", "D", "1.00", 0))
	mock.ExpectQuery(`SELECT seat_numbers, start_seq, end_seq, passenger_count`).WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"seat_numbers", "start_seq", "end_seq", "passenger_count"}).
			AddRow("1,2,3,4,5", 1, 2, 5))

	m, err := svc.SeatMap(context.Background(), "b1", "seg-ad")
	if err != nil {
		t.Fatalf("seat map: %v", err)
	}
	if m.Available != 35 {
		t.Fatalf("expected 35 available, got %d", m.Available)
	}
	if len(m.Seats) != 40 || !m.Seats[4].Booked || m.Seats[5].Booked {
		t.Fatalf("unexpected seats %+v", m.Seats[:6])
	}
}
