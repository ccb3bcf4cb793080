package httpapi

import (
	"context"

	"bus-booking/internal/audit"
	"bus-booking/internal/booking"
	"bus-booking/internal/cancellation"
	"bus-booking/internal/fleet"
	"bus-booking/internal/inventory"
	"bus-booking/internal/reporting"
	"bus-booking/internal/tickets"
	"bus-booking/internal/users"
	"bus-booking/internal/wallet"

	"github.com/shopspring/decimal"
)

// The interfaces below are the slices of each service the handlers call.
// The concrete *Service types in the domain packages satisfy them.

type Accounts interface {
	Register(ctx context.Context, in users.RegisterInput) (users.User, error)
	Authenticate(ctx context.Context, in users.LoginInput) (users.User, error)
	Get(ctx context.Context, id string) (users.User, error)
}

type Wallets interface {
	Get(ctx context.Context, userID string) (wallet.Wallet, error)
	AddFunds(ctx context.Context, userID string, amount decimal.Decimal) (wallet.Wallet, wallet.Transaction, error)
	Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (wallet.Wallet, wallet.Transaction, error)
	History(ctx context.Context, userID string, f wallet.HistoryFilter) ([]wallet.Transaction, error)
	AdminCredit(ctx context.Context, actor audit.Actor, userID string, amount decimal.Decimal, reason string) (wallet.Wallet, wallet.Transaction, error)
}

type Fleet interface {
	CreateRoute(ctx context.Context, actor audit.Actor, in fleet.CreateRouteInput) (fleet.Route, error)
	CreateBus(ctx context.Context, actor audit.Actor, in fleet.BusInput) (fleet.Bus, error)
	UpdateBus(ctx context.Context, actor audit.Actor, id string, in fleet.BusInput) (fleet.Bus, error)
	GetBus(ctx context.Context, id string, includeInactive bool) (fleet.BusDetail, error)
	ListBuses(ctx context.Context, status string) ([]fleet.Bus, error)
	Search(ctx context.Context, q fleet.SearchQuery) ([]fleet.Match, error)
}

type Seats interface {
	SeatMap(ctx context.Context, busID, segmentID string) (inventory.SeatMap, error)
}

type Tickets interface {
	Get(ctx context.Context, viewer tickets.Viewer, id string) (tickets.Ticket, error)
	ListForUser(ctx context.Context, userID string, filter tickets.ListFilter) (tickets.Listing, error)
	UpdatePassenger(ctx context.Context, userID, ticketID, passengerID string, in tickets.PassengerInput) (tickets.Passenger, error)
	Complete(ctx context.Context, actor audit.Actor, ticketID string) (tickets.Ticket, error)
}

type Booker interface {
	Book(ctx context.Context, req booking.Request) (booking.Result, error)
}

type Canceller interface {
	Cancel(ctx context.Context, userID, ticketID string) (cancellation.Outcome, error)
	AdminCancelTicket(ctx context.Context, actor audit.Actor, ticketID, reason string) (cancellation.Outcome, error)
	CancelBus(ctx context.Context, actor audit.Actor, busID, reason string) (cancellation.BusOutcome, error)
}

type Reports interface {
	BusBookings(ctx context.Context, req reporting.BusBookingsRequest) (reporting.BusBookings, error)
	WalletSummary(ctx context.Context, userID string) (reporting.WalletSummary, error)
}

type Receipts interface {
	Receipt(ctx context.Context, viewer tickets.Viewer, ticketID string) ([]byte, error)
}
