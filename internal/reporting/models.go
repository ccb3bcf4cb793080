package reporting

import (
	"bus-booking/internal/tickets"
	"bus-booking/internal/wallet"

	"github.com/shopspring/decimal"
)

// BusBookingsRequest asks for one bus's tickets. Empty Status means all.
type BusBookingsRequest struct {
	BusID  string         `json:"bus_id"`
	Status tickets.Status `json:"status,omitempty"`
}

type BusBookings struct {
	BusID     string           `json:"bus_id"`
	BusNumber string           `json:"bus_number"`
	Tickets   []tickets.Ticket `json:"tickets"`

	Total     int `json:"total"`
	Booked    int `json:"booked"`
	Cancelled int `json:"cancelled"`
	Completed int `json:"completed"`

	// Revenue counts BOOKED fares only.
	Revenue        decimal.Decimal `json:"revenue"`
	SeatsBooked    int             `json:"seats_booked"`
	AvailableSeats int             `json:"available_seats"`
}

// KindTotal aggregates one transaction kind.
type KindTotal struct {
	Kind   wallet.Kind     `json:"kind"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// WalletSummary is derived from immutable ledger entries only.
type WalletSummary struct {
	UserID       string          `json:"user_id"`
	Kinds        []KindTotal     `json:"kinds"`
	TotalCredit  decimal.Decimal `json:"total_credit"`
	TotalDebit   decimal.Decimal `json:"total_debit"`
	NetDelta     decimal.Decimal `json:"net_delta"`
	Transactions int             `json:"transactions"`
}
