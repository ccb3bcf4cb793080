package audit

import (
	"context"
	"sync"
)

// MemoryRepo keeps events in process. Tests set Err to simulate a failing store.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, e)
	return nil
}

// Events returns a snapshot in append order.
func (r *MemoryRepo) Events() []Event {
	return r.filter(func(Event) bool { return true })
}

// ByType returns the events of type t in append order.
func (r *MemoryRepo) ByType(t EventType) []Event {
	return r.filter(func(e Event) bool { return e.Type == t })
}

// ForTicket returns the events that target ticketID.
func (r *MemoryRepo) ForTicket(ticketID string) []Event {
	return r.filter(func(e Event) bool { return e.TicketID == ticketID })
}

func (r *MemoryRepo) filter(keep func(Event) bool) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
