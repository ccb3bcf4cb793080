package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, user_id, balance, created_at, updated_at`

func scanWallet(row *sql.Row) (Wallet, error) {
	var w Wallet
	if err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Wallet{}, apperr.New(apperr.ErrNotFound, "wallet not found")
		}
		return Wallet{}, err
	}
	return w, nil
}

func getByUser(ctx context.Context, q utils.Querier, userID string) (Wallet, error) {
	return scanWallet(q.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
}

// LockByUserTx locks the user's wallet row for the rest of tx. Money
// operations on one wallet serialize on this lock.
func LockByUserTx(ctx context.Context, tx *sql.Tx, userID string) (Wallet, error) {
	return scanWallet(tx.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID))
}

// CreateTx provisions a zero-balance wallet for a new user.
func CreateTx(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (Wallet, error) {
	w := Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	const q = `
INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5)
`
	if _, err := tx.ExecContext(ctx, q, w.ID, w.UserID, w.Balance, w.CreatedAt, w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// PostTx applies p to a wallet already locked by LockByUserTx and appends the
// matching ledger entry. The returned wallet carries the new balance.
func PostTx(ctx context.Context, tx *sql.Tx, w Wallet, p Posting, now time.Time) (Wallet, Transaction, error) {
	next, err := apply(w.Balance, p.Kind, p.Amount)
	if err != nil {
		return Wallet{}, Transaction{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, updated_at = $2 WHERE id = $3`,
		next, now, w.ID,
	); err != nil {
		return Wallet{}, Transaction{}, fmt.Errorf("update wallet balance: %w", err)
	}

	entry := Transaction{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		Amount:      p.Amount,
		Kind:        p.Kind,
		Description: p.Description,
		TicketID:    p.TicketID,
		CreatedAt:   now,
	}
	if err := insertTransaction(ctx, tx, entry); err != nil {
		return Wallet{}, Transaction{}, fmt.Errorf("insert wallet transaction: %w", err)
	}

	w.Balance = next
	w.UpdatedAt = now
	return w, entry, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, e Transaction) error {
	const q = `
INSERT INTO wallet_transactions (id, wallet_id, amount, kind, description, ticket_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	ticketID := sql.NullString{String: e.TicketID, Valid: e.TicketID != ""}
	_, err := tx.ExecContext(ctx, q,
		e.ID,
		e.WalletID,
		e.Amount,
		string(e.Kind),
		e.Description,
		ticketID,
		e.CreatedAt,
	)
	return err
}

func listTransactions(ctx context.Context, q utils.Querier, walletID string, f HistoryFilter) ([]Transaction, error) {
	query := `
SELECT id, wallet_id, amount, kind, description, ticket_id, created_at
FROM wallet_transactions
WHERE wallet_id = $1`
	args := []any{walletID}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Transaction, 0)
	for rows.Next() {
		var (
			t        Transaction
			kind     string
			ticketID sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Amount, &kind, &t.Description, &ticketID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Kind = Kind(kind)
		t.TicketID = ticketID.String
		out = append(out, t)
	}
	return out, rows.Err()
}
