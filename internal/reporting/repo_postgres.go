package reporting

import (
	"context"
	"database/sql"

	"bus-booking/internal/fleet"
	"bus-booking/internal/tickets"
	"bus-booking/internal/wallet"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) GetBus(ctx context.Context, busID string) (fleet.Bus, error) {
	return fleet.GetBus(ctx, r.db, busID)
}

func (r *PostgresRepo) ListBusTickets(ctx context.Context, busID string, status tickets.Status) ([]tickets.Ticket, error) {
	return tickets.ListByBus(ctx, r.db, busID, status)
}

func (r *PostgresRepo) ListUserTransactions(ctx context.Context, userID string) ([]wallet.Transaction, error) {
	const q = `
SELECT t.id, t.wallet_id, t.amount, t.kind, t.description, t.ticket_id, t.created_at
FROM wallet_transactions t
JOIN wallets w ON w.id = t.wallet_id
WHERE w.user_id = $1
ORDER BY t.created_at, t.id
`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]wallet.Transaction, 0)
	for rows.Next() {
		var (
			e        wallet.Transaction
			kind     string
			ticketID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.WalletID, &e.Amount, &kind, &e.Description, &ticketID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = wallet.Kind(kind)
		e.TicketID = ticketID.String
		out = append(out, e)
	}
	return out, rows.Err()
}
