package notify

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBookingConfirmed EventType = "booking.confirmed"
	EventTicketCancelled  EventType = "ticket.cancelled"
	EventWalletDeposit    EventType = "wallet.deposit"
	EventBusCancelled     EventType = "bus.cancelled"
)

// Event is the payload handed to the notification backend.
// Amounts are decimal strings so consumers never see floats.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	UserID     string            `json:"user_id,omitempty"`
	TicketID   string            `json:"ticket_id,omitempty"`
	BusID      string            `json:"bus_id,omitempty"`
	Amount     string            `json:"amount,omitempty"`
	Message    string            `json:"message,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func (e Event) withDefaults(now time.Time) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now.UTC()
	}
	return e
}
