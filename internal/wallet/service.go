package wallet

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/internal/audit"
	"bus-booking/internal/notify"
	"bus-booking/pkg/logger"
	"bus-booking/pkg/utils"

	"github.com/shopspring/decimal"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Settings are the wallet policy knobs from config.
type Settings struct {
	Currency   string
	MinDeposit decimal.Decimal
	MaxDeposit decimal.Decimal
}

// Service is the Ledger Store.
//
// Money invariants:
// - No balance update without a ledger entry in the same transaction
// - Ledger entries are append-only
// - Debits never take the balance below zero
type Service struct {
	db       *sql.DB
	settings Settings
	audit    *audit.Service
	notifier notify.Sender
	clock    func() time.Time
}

func NewService(db *sql.DB, settings Settings, auditSvc *audit.Service, notifier notify.Sender) *Service {
	if settings.Currency == "" {
		settings.Currency = "INR"
	}
	return &Service{db: db, settings: settings, audit: auditSvc, notifier: notifier, clock: time.Now}
}

func (s *Service) Get(ctx context.Context, userID string) (Wallet, error) {
	if userID == "" {
		return Wallet{}, apperr.New(apperr.ErrValidation, "user id required")
	}
	w, err := getByUser(ctx, s.db, userID)
	if err != nil {
		return Wallet{}, err
	}
	w.Currency = s.settings.Currency
	return w, nil
}

func (s *Service) HasSufficientBalance(ctx context.Context, userID string, amount decimal.Decimal) (bool, error) {
	w, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return HasSufficientBalance(w.Balance, amount), nil
}

// Deposit credits amount and records a DEPOSIT entry.
func (s *Service) Deposit(ctx context.Context, userID string, amount decimal.Decimal, description string) (Wallet, Transaction, error) {
	if description == "" {
		description = "Wallet deposit"
	}
	w, entry, err := s.post(ctx, userID, Posting{Kind: KindDeposit, Amount: amount, Description: description})
	if err != nil {
		return Wallet{}, Transaction{}, err
	}
	s.notify(ctx, notify.Event{
		Type:    notify.EventWalletDeposit,
		UserID:  userID,
		Amount:  amount.StringFixed(2),
		Message: description,
	})
	return w, entry, nil
}

// Withdraw debits amount and records a WITHDRAW entry. There are no partial
// withdrawals.
func (s *Service) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (Wallet, Transaction, error) {
	return s.post(ctx, userID, Posting{Kind: KindWithdraw, Amount: amount, Description: "Wallet withdrawal"})
}

// AddFunds is the user-facing top-up, bounded by the configured deposit range.
func (s *Service) AddFunds(ctx context.Context, userID string, amount decimal.Decimal) (Wallet, Transaction, error) {
	if amount.LessThan(s.settings.MinDeposit) || (s.settings.MaxDeposit.IsPositive() && amount.GreaterThan(s.settings.MaxDeposit)) {
		return Wallet{}, Transaction{}, apperr.New(apperr.ErrValidation,
			"deposit must be between %s and %s", s.settings.MinDeposit.StringFixed(2), s.settings.MaxDeposit.StringFixed(2))
	}
	return s.Deposit(ctx, userID, amount, "Wallet top-up")
}

// AdminCredit deposits into another user's wallet and leaves an audit record.
func (s *Service) AdminCredit(ctx context.Context, actor audit.Actor, userID string, amount decimal.Decimal, reason string) (Wallet, Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Wallet{}, Transaction{}, apperr.New(apperr.ErrValidation, "reason required")
	}
	w, entry, err := s.Deposit(ctx, userID, amount, "Admin credit: "+reason)
	if err != nil {
		return Wallet{}, Transaction{}, err
	}
	s.audit.Record(ctx, actor, audit.Event{
		Type:     audit.EventTypeWalletCredit,
		UserID:   userID,
		Message:  reason,
		Metadata: `{"amount":"` + amount.StringFixed(2) + `","transaction_id":"` + entry.ID + `"}`,
	})
	return w, entry, nil
}

func (s *Service) History(ctx context.Context, userID string, f HistoryFilter) ([]Transaction, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, apperr.New(apperr.ErrValidation, "unknown transaction kind %q", f.Kind)
	}
	if f.Limit <= 0 {
		f.Limit = defaultHistoryLimit
	}
	if f.Limit > maxHistoryLimit {
		f.Limit = maxHistoryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	w, err := getByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return listTransactions(ctx, s.db, w.ID, f)
}

func (s *Service) post(ctx context.Context, userID string, p Posting) (Wallet, Transaction, error) {
	if userID == "" {
		return Wallet{}, Transaction{}, apperr.New(apperr.ErrValidation, "user id required")
	}
	if err := ValidateAmount(p.Amount); err != nil {
		return Wallet{}, Transaction{}, err
	}

	now := s.clock().UTC()
	var (
		outWallet Wallet
		outEntry  Transaction
	)
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		w, err := LockByUserTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		outWallet, outEntry, err = PostTx(ctx, tx, w, p, now)
		return err
	})
	if err != nil {
		return Wallet{}, Transaction{}, err
	}
	outWallet.Currency = s.settings.Currency
	logger.From(ctx).Info("wallet posting",
		"wallet_id", outWallet.ID,
		"kind", string(p.Kind),
		"amount", p.Amount.StringFixed(2),
		"balance", outWallet.Balance.StringFixed(2),
	)
	return outWallet, outEntry, nil
}

func (s *Service) notify(ctx context.Context, e notify.Event) {
	if s.notifier != nil {
		s.notifier.Send(ctx, e)
	}
}
