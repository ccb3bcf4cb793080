package audit

import "time"

// Event is an immutable, append-only audit record of an administrative action.
//
// Invariants:
// - Events are never updated or deleted (enforced by table rules in Postgres).
// - Recording is best-effort; callers do not fail a committed operation on audit errors.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers, set depending on the event type.
	BusID    string `json:"bus_id,omitempty" db:"bus_id"`
	TicketID string `json:"ticket_id,omitempty" db:"ticket_id"`
	UserID   string `json:"user_id,omitempty" db:"user_id"`

	Message  string `json:"message,omitempty" db:"message"`
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeWalletCredit   EventType = "admin_wallet_credit"
	EventTypeTicketCancel   EventType = "admin_ticket_cancel"
	EventTypeTicketComplete EventType = "admin_ticket_complete"
	EventTypeBusCancel      EventType = "admin_bus_cancel"
	EventTypeBusChange      EventType = "admin_bus_change"
	EventTypeRouteCreate    EventType = "admin_route_create"
)

// Actor identifies who performed an administrative action.
type Actor struct {
	UserID string
	Role   string
	IP     string
}
