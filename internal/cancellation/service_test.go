package cancellation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/internal/audit"
	"bus-booking/internal/dbtest"
	"bus-booking/internal/notify"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

var (
	testNow = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

	peekTicket   = `FROM tickets t WHERE t.id = \$1$`
	lockTicket   = regexp.QuoteMeta(`FROM tickets t WHERE t.id = $1 FOR UPDATE`)
	lockBus      = regexp.QuoteMeta(`FROM buses WHERE id = $1 FOR UPDATE`)
	lockWallet   = regexp.QuoteMeta(`FROM wallets WHERE user_id = $1 FOR UPDATE`)
	closeTicket  = regexp.QuoteMeta(`UPDATE tickets SET status = $1`)
	releaseSeats = regexp.QuoteMeta(`UPDATE buses SET available_seats = $1`)
)

type fakeSender struct {
	mu     sync.Mutex
	events []notify.Event
}

func (f *fakeSender) Send(ctx context.Context, e notify.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *audit.MemoryRepo, *fakeSender) {
	t.Helper()
	db, mock := dbtest.New(t)
	repo := audit.NewMemoryRepo()
	sender := &fakeSender{}
	svc := NewService(db, 6*time.Hour, audit.NewService(repo), sender)
	svc.clock = func() time.Time { return testNow }
	return svc, mock, repo, sender
}

func ticket(status string) dbtest.TicketFixture {
	return dbtest.TicketFixture{
		ID: "t1", UserID: "u1", BusID: "b1", StartSeq: 0, EndSeq: 1,
		Seats: "4,5", Passengers: 2, Fare: "800.00", Status: status, BookedAt: testNow.Add(-72 * time.Hour),
	}
}

func busAt(departure time.Time, available int, active bool) *sqlmock.Rows {
	return dbtest.BusRows(dbtest.BusFixture{
		ID: "b1", RouteID: "r1", Number: "KA-01", Departure: departure,
		Total: 40, Available: available, Fare: "400.00", Active: active,
	})
}

func walletRow(user, balance string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "balance", "created_at", "updated_at"}).
		AddRow("w-"+user, user, balance, testNow, testNow)
}

func expectSettle(mock sqlmock.Sqlmock, ticketID, user, refund string, seatsAfter int) {
	mock.ExpectQuery(lockWallet).WithArgs(user).WillReturnRows(walletRow(user, "0.00"))
	mock.ExpectExec(`UPDATE wallets SET balance`).
		WithArgs(dbtest.Decimal(refund), testNow, "w-"+user).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO wallet_transactions`).
		WithArgs(sqlmock.AnyArg(), "w-"+user, dbtest.Decimal(refund), "REFUND", sqlmock.AnyArg(), ticketID, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(releaseSeats).WithArgs(seatsAfter, testNow, "b1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(closeTicket).
		WithArgs("CANCELLED", dbtest.Decimal(refund), testNow, ticketID).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestCancel_RefundTiers(t *testing.T) {
	cases := []struct {
		hours  int
		pct    int
		refund string
	}{
		{30, 100, "800"},
		{15, 75, "600"},
		{8, 50, "400"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%dh", tc.hours), func(t *testing.T) {
			svc, mock, _, sender := newTestService(t)
			dep := testNow.Add(time.Duration(tc.hours) * time.Hour)

			mock.ExpectBegin()
			mock.ExpectQuery(peekTicket).WithArgs("t1").WillReturnRows(dbtest.TicketRows(ticket("BOOKED")))
			mock.ExpectQuery(lockBus).WithArgs("b1").WillReturnRows(busAt(dep, 30, true))
			mock.ExpectQuery(lockTicket).WithArgs("t1").WillReturnRows(dbtest.TicketRows(ticket("BOOKED")))
			expectSettle(mock, "t1", "u1", tc.refund, 32)
			mock.ExpectCommit()

			out, err := svc.Cancel(context.Background(), "u1", "t1")
			if err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if out.RefundPercent != tc.pct || !out.Refund.Equal(decimal.RequireFromString(tc.refund)) {
				t.Fatalf("expected %d%% / %s, got %d%% / %s", tc.pct, tc.refund, out.RefundPercent, out.Refund)
			}
			if out.AvailableSeats != 32 {
				t.Fatalf("expected 32 seats after release, got %d", out.AvailableSeats)
			}
			if len(sender.events) != 1 || sender.events[0].Type != notify.EventTicketCancelled {
				t.Fatalf("expected cancellation notification, got %+v", sender.events)
			}
		})
	}
}

func TestCancel_SegmentTicketUsesBoardingTime(t *testing.T) {
	svc, mock, _, _ := newTestService(t)
	// Bus leaves in 5h, so a whole-route ticket would be inside the cutoff;
	// this passenger boards 4h later, 9h from now.
	dep := testNow.Add(5 * time.Hour)
	fx := ticket("BOOKED")
	fx.OffsetSeconds = 4 * 3600

	mock.ExpectBegin()
	mock.ExpectQuery(peekTicket).WithArgs("t1").WillReturnRows(dbtest.TicketRows(fx))
	mock.ExpectQuery(lockBus).WithArgs("b1").WillReturnRows(busAt(dep, 30, true))
	mock.ExpectQuery(lockTicket).WithArgs("t1").WillReturnRows(dbtest.TicketRows(fx))
	expectSettle(mock, "t1", "u1", "400", 32)
	mock.ExpectCommit()

	out, err := svc.Cancel(context.Background(), "u1", "t1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out.RefundPercent != 50 {
		t.Fatalf("expected 50%%, got %d", out.RefundPercent)
	}
}

func TestCancel_AlreadyCancelledIsRejected(t *testing.T) {
	svc, mock, _, sender := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(peekTicket).WithArgs("t1").WillReturnRows(dbtest.TicketRows(ticket("CANCELLED")))
	mock.ExpectQuery(lockBus).WithArgs("b1").WillReturnRows(busAt(testNow.Add(48*time.Hour), 32, true))
	mock.ExpectQuery(lockTicket).WithArgs("t1").WillReturnRows(dbtest.TicketRows(ticket("CANCELLED")))
	mock.ExpectRollback()

	if _, err := svc.Cancel(context.Background(), "u1", "t1"); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if len(sender.events) != 0 {
		t.Fatalf("no notification expected")
	}
}

func TestCancel_InsideCutoff(t *testing.T) {
	svc, mock, _, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(peekTicket).WithArgs("t1").WillReturnRows(dbtest.TicketRows(ticket("BOOKED")))
	mock.ExpectQuery(lockBus).WithArgs("b1").WillReturnRows(busAt(testNow.Add(6*time.Hour), 30, true))
	mock.ExpectQuery(lockTicket).WithArgs("t1").WillReturnRows(dbtest.TicketRows(ticket("BOOKED")))
	mock.ExpectRollback()

	if _, err := svc.Cancel(context.Background(), "u1", "t1"); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestCancel_OtherUsersTicket(t *testing.T) {
	svc, mock, _, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(peekTicket).WithArgs("t1").WillReturnRows(dbtest.TicketRows(ticket("BOOKED")))
	mock.ExpectRollback()

	if _, err := svc.Cancel(context.Background(), "someone-else", "t1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancel_RefundFailureRollsBack(t *testing.T) {
	svc, mock, _, sender := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(peekTicket).WithArgs("t1").WillReturnRows(dbtest.TicketRows(ticket("BOOKED")))
	mock.ExpectQuery(lockBus).WithArgs("b1").WillReturnRows(busAt(testNow.Add(30*time.Hour), 30, true))
	mock.ExpectQuery(lockTicket).WithArgs("t1").WillReturnRows(dbtest.TicketRows(ticket("BOOKED")))
	mock.ExpectQuery(lockWallet).WithArgs("u1").WillReturnRows(walletRow("u1", "0.00"))
	mock.ExpectExec(`UPDATE wallets SET balance`).WillReturnError(errors.New("serialization failure"))
	mock.ExpectRollback()

	if _, err := svc.Cancel(context.Background(), "u1", "t1"); err == nil {
		t.Fatalf("expected error")
	}
	if len(sender.events) != 0 {
		t.Fatalf("no notification expected")
	}
}

func TestAdminCancelTicket_BypassesCutoff(t *testing.T) {
	svc, mock, repo, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(peekTicket).WithArgs("t1").WillReturnRows(dbtest.TicketRows(ticket("BOOKED")))
	mock.ExpectQuery(lockBus).WithArgs("b1").WillReturnRows(busAt(testNow.Add(2*time.Hour), 30, true))
	mock.ExpectQuery(lockTicket).WithArgs("t1").WillReturnRows(dbtest.TicketRows(ticket("BOOKED")))
	expectSettle(mock, "t1", "u1", "200", 32)
	mock.ExpectCommit()

	out, err := svc.AdminCancelTicket(context.Background(), audit.Actor{UserID: "admin-1", Role: "staff"}, "t1", "passenger request")
	if err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if out.RefundPercent != 25 {
		t.Fatalf("expected 25%%, got %d", out.RefundPercent)
	}
	evs := repo.ForTicket("t1")
	if len(evs) != 1 || evs[0].Type != audit.EventTypeTicketCancel || evs[0].Message != "passenger request" {
		t.Fatalf("expected ticket cancel audit, got %+v", evs)
	}
}

func TestCancelBus_RefundsEveryBookedTicketInFull(t *testing.T) {
	svc, mock, repo, sender := newTestService(t)
	second := ticket("BOOKED")
	second.ID, second.UserID, second.Seats, second.Passengers, second.Fare = "t2", "u2", "9", 1, "400.00"

	mock.ExpectBegin()
	mock.ExpectQuery(lockBus).WithArgs("b1").WillReturnRows(busAt(testNow.Add(3*time.Hour), 37, true))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE buses SET is_active = FALSE`)).WithArgs(testNow, "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM tickets t WHERE t.bus_id = \$1 AND t.status = 'BOOKED' ORDER BY t.user_id, t.id FOR UPDATE`).WithArgs("b1").
		WillReturnRows(dbtest.TicketRows(ticket("BOOKED"), second))
	expectSettle(mock, "t1", "u1", "800", 39)
	expectSettle(mock, "t2", "u2", "400", 40)
	mock.ExpectCommit()

	out, err := svc.CancelBus(context.Background(), audit.Actor{UserID: "admin-1", Role: "staff"}, "b1", "breakdown")
	if err != nil {
		t.Fatalf("cancel bus: %v", err)
	}
	if len(out.Cancelled) != 2 || !out.TotalRefund.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if evs := repo.ByType(audit.EventTypeBusCancel); len(evs) != 1 || evs[0].BusID != "b1" || len(repo.Events()) != 1 {
		t.Fatalf("expected bus cancel audit, got %+v", evs)
	}
	// one per ticket plus the bus event
	if len(sender.events) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(sender.events))
	}
}

func TestCancelBus_AlreadyInactive(t *testing.T) {
	svc, mock, _, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockBus).WithArgs("b1").WillReturnRows(busAt(testNow.Add(3*time.Hour), 40, false))
	mock.ExpectRollback()

	if _, err := svc.CancelBus(context.Background(), audit.Actor{UserID: "admin-1"}, "b1", ""); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}
