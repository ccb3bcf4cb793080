package dbtest

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

// New returns a sqlmock-backed *sql.DB and fails the test on unmet expectations.
func New(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sql expectations: %v", err)
		}
		_ = db.Close()
	})
	return db, mock
}

// Decimal matches a decimal argument by value, ignoring scale ("90" == "90.00").
func Decimal(want string) sqlmock.Argument {
	return decimalArg{want: decimal.RequireFromString(want)}
}

type decimalArg struct{ want decimal.Decimal }

func (a decimalArg) Match(v driver.Value) bool {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case float64:
		return decimal.NewFromFloat(x).Equal(a.want)
	case int64:
		return decimal.NewFromInt(x).Equal(a.want)
	default:
		return false
	}
	got, err := decimal.NewFromString(s)
	return err == nil && got.Equal(a.want)
}

// BusFixture is a buses row for sqlmock.
type BusFixture struct {
	ID, RouteID, Number string
	Departure           time.Time
	Total, Available    int
	Fare                string
	Active              bool
}

// BusRows renders fixtures in the column order of fleet's bus queries.
func BusRows(buses ...BusFixture) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "route_id", "bus_number", "departure_time", "arrival_time",
		"total_seats", "available_seats", "fare", "sleeper_fare", "luxury_fare", "has_general_seats",
		"has_sleeper_seats", "has_luxury_seats", "is_active", "created_at", "updated_at"})
	for _, b := range buses {
		rows.AddRow(b.ID, b.RouteID, b.Number, b.Departure, b.Departure.Add(8*time.Hour),
			b.Total, b.Available, b.Fare, nil, nil, true,
			false, false, b.Active, b.Departure.Add(-720*time.Hour), b.Departure.Add(-720*time.Hour))
	}
	return rows
}

// TicketFixture is a tickets row for sqlmock.
type TicketFixture struct {
	ID, UserID, BusID, SegmentID string
	StartSeq, EndSeq             int
	OffsetSeconds                int64
	Seats                        string
	Passengers                   int
	Fare                         string
	Status                       string
	BookedAt                     time.Time
}

// TicketRows renders fixtures in the column order of the tickets queries.
func TicketRows(ts ...TicketFixture) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "user_id", "bus_id", "segment_id", "start_stop_id", "end_stop_id",
		"start_seq", "end_seq", "departure_offset_seconds", "seat_numbers", "seat_class", "passenger_count",
		"total_fare", "refund_amount", "status", "booked_at", "updated_at"})
	for _, t := range ts {
		var seg driver.Value
		if t.SegmentID != "" {
			seg = t.SegmentID
		}
		rows.AddRow(t.ID, t.UserID, t.BusID, seg, "stop-start", "stop-end",
			t.StartSeq, t.EndSeq, t.OffsetSeconds, t.Seats, "GENERAL", t.Passengers,
			t.Fare, "0.00", t.Status, t.BookedAt, t.BookedAt)
	}
	return rows
}
