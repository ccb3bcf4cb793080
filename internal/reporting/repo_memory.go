package reporting

import (
	"context"
	"sync"

	"bus-booking/internal/apperr"
	"bus-booking/internal/fleet"
	"bus-booking/internal/tickets"
	"bus-booking/internal/wallet"
)

// MemoryRepo is a simple in-memory reporting repository for tests.
// Transactions are keyed by user id.
type MemoryRepo struct {
	mu sync.Mutex

	Buses        []fleet.Bus
	Tickets      []tickets.Ticket
	Transactions map[string][]wallet.Transaction
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{Transactions: map[string][]wallet.Transaction{}} }

func (r *MemoryRepo) GetBus(ctx context.Context, busID string) (fleet.Bus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.Buses {
		if b.ID == busID {
			return b, nil
		}
	}
	return fleet.Bus{}, apperr.New(apperr.ErrNotFound, "bus not found")
}

func (r *MemoryRepo) ListBusTickets(ctx context.Context, busID string, status tickets.Status) ([]tickets.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tickets.Ticket, 0)
	for _, t := range r.Tickets {
		if t.BusID != busID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *MemoryRepo) ListUserTransactions(ctx context.Context, userID string) ([]wallet.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]wallet.Transaction(nil), r.Transactions[userID]...), nil
}
