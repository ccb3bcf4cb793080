package wallet

import (
	"context"
	"errors"
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
	testNow    = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lockWallet = regexp.QuoteMeta(`FROM wallets WHERE user_id = $1 FOR UPDATE`)
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

func newTestService(t *testing.T, auditSvc *audit.Service) (*Service, sqlmock.Sqlmock, *fakeSender) {
	t.Helper()
	db, mock := dbtest.New(t)
	sender := &fakeSender{}
	svc := NewService(db, Settings{
		Currency:   "INR",
		MinDeposit: decimal.NewFromInt(100),
		MaxDeposit: decimal.NewFromInt(10000),
	}, auditSvc, sender)
	svc.clock = func() time.Time { return testNow }
	return svc, mock, sender
}

func walletRow(balance string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "balance", "created_at", "updated_at"}).
		AddRow("w1", "u1", balance, testNow, testNow)
}

func expectPosting(mock sqlmock.Sqlmock, before, after, amount string, kind Kind) {
	mock.ExpectBegin()
	mock.ExpectQuery(lockWallet).WithArgs("u1").WillReturnRows(walletRow(before))
	mock.ExpectExec(`UPDATE wallets SET balance`).
		WithArgs(dbtest.Decimal(after), testNow, "w1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO wallet_transactions`).
		WithArgs(sqlmock.AnyArg(), "w1", dbtest.Decimal(amount), string(kind), sqlmock.AnyArg(), sqlmock.AnyArg(), testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestService_DepositThenWithdrawRoundTrip(t *testing.T) {
	svc, mock, sender := newTestService(t, nil)
	ctx := context.Background()
	hundred := decimal.NewFromInt(100)

	expectPosting(mock, "250.00", "350.00", "100", KindDeposit)
	expectPosting(mock, "350.00", "250.00", "100", KindWithdraw)

	w, dep, err := svc.Deposit(ctx, "u1", hundred, "")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if dep.Kind != KindDeposit || !dep.Amount.Equal(hundred) {
		t.Fatalf("unexpected deposit entry %+v", dep)
	}
	if !w.Balance.Equal(decimal.NewFromInt(350)) {
		t.Fatalf("expected 350, got %s", w.Balance)
	}

	w, wd, err := svc.Withdraw(ctx, "u1", hundred)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if wd.Kind != KindWithdraw || !wd.Amount.Equal(hundred) {
		t.Fatalf("unexpected withdraw entry %+v", wd)
	}
	if !w.Balance.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected balance back at 250, got %s", w.Balance)
	}

	if len(sender.events) != 1 || sender.events[0].Type != notify.EventWalletDeposit {
		t.Fatalf("expected one deposit notification, got %+v", sender.events)
	}
}

func TestService_WithdrawInsufficientRollsBack(t *testing.T) {
	svc, mock, _ := newTestService(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(lockWallet).WithArgs("u1").WillReturnRows(walletRow("40.00"))
	mock.ExpectRollback()

	_, _, err := svc.Withdraw(context.Background(), "u1", decimal.NewFromInt(50))
	if !errors.Is(err, apperr.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestService_DepositRejectsNonPositiveWithoutTouchingDB(t *testing.T) {
	svc, _, sender := newTestService(t, nil)

	for _, amt := range []string{"0", "-5"} {
		_, _, err := svc.Deposit(context.Background(), "u1", decimal.RequireFromString(amt), "")
		if !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("amount %s: expected validation error, got %v", amt, err)
		}
	}
	if len(sender.events) != 0 {
		t.Fatalf("no notification expected on failure")
	}
}

func TestService_InsertFailureRollsBack(t *testing.T) {
	svc, mock, _ := newTestService(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(lockWallet).WithArgs("u1").WillReturnRows(walletRow("10.00"))
	mock.ExpectExec(`UPDATE wallets SET balance`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO wallet_transactions`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if _, _, err := svc.Deposit(context.Background(), "u1", decimal.NewFromInt(5), ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AddFundsBounds(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	for _, amt := range []int64{99, 10001} {
		_, _, err := svc.AddFunds(context.Background(), "u1", decimal.NewFromInt(amt))
		if !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("amount %d: expected validation error, got %v", amt, err)
		}
	}
}

func TestService_AdminCreditAudits(t *testing.T) {
	repo := audit.NewMemoryRepo()
	svc, mock, _ := newTestService(t, audit.NewService(repo))

	expectPosting(mock, "0.00", "500.00", "500", KindDeposit)

	_, _, err := svc.AdminCredit(context.Background(), audit.Actor{UserID: "admin-1", Role: "staff"}, "u1", decimal.NewFromInt(500), "goodwill")
	if err != nil {
		t.Fatalf("admin credit: %v", err)
	}
	evs := repo.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypeWalletCredit || evs[0].UserID != "u1" {
		t.Fatalf("expected wallet credit audit, got %+v", evs)
	}

	if _, _, err := svc.AdminCredit(context.Background(), audit.Actor{UserID: "admin-1"}, "u1", decimal.NewFromInt(1), " "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected reason to be required, got %v", err)
	}
}

func TestService_HistoryFiltersByKind(t *testing.T) {
	svc, mock, _ := newTestService(t, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM wallets WHERE user_id = $1`)).
		WithArgs("u1").WillReturnRows(walletRow("10.00"))
	mock.ExpectQuery(`FROM wallet_transactions\s+WHERE wallet_id = \$1 AND kind = \$2 ORDER BY created_at DESC, id DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("w1", "REFUND", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "wallet_id", "amount", "kind", "description", "ticket_id", "created_at"}).
			AddRow("tx1", "w1", "75.00", "REFUND", "Refund", "t1", testNow).
			AddRow("tx2", "w1", "25.00", "REFUND", "Refund", nil, testNow))

	got, err := svc.History(context.Background(), "u1", HistoryFilter{Kind: KindRefund})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 2 || got[0].TicketID != "t1" || got[1].TicketID != "" {
		t.Fatalf("unexpected history %+v", got)
	}

	if _, err := svc.History(context.Background(), "u1", HistoryFilter{Kind: "BONUS"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_GetMissingWallet(t *testing.T) {
	svc, mock, _ := newTestService(t, nil)
	mock.ExpectQuery(`FROM wallets`).WithArgs("ghost").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := svc.Get(context.Background(), "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_HasSufficientBalance(t *testing.T) {
	svc, mock, _ := newTestService(t, nil)
	mock.ExpectQuery(`FROM wallets`).WithArgs("u1").WillReturnRows(walletRow("250.00"))
	mock.ExpectQuery(`FROM wallets`).WithArgs("u1").WillReturnRows(walletRow("250.00"))

	ok, err := svc.HasSufficientBalance(context.Background(), "u1", decimal.RequireFromString("250.00"))
	if err != nil || !ok {
		t.Fatalf("exact balance: ok=%v err=%v", ok, err)
	}
	ok, err = svc.HasSufficientBalance(context.Background(), "u1", decimal.RequireFromString("250.01"))
	if err != nil || ok {
		t.Fatalf("over balance: ok=%v err=%v", ok, err)
	}
}
