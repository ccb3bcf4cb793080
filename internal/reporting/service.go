package reporting

import (
	"context"
	"errors"

	"bus-booking/internal/apperr"
	"bus-booking/internal/fleet"
	"bus-booking/internal/tickets"
	"bus-booking/internal/wallet"

	"github.com/shopspring/decimal"
)

// Repository abstracts data access for reporting.
// Implementations should read immutable sources where one exists (the wallet ledger).
type Repository interface {
	GetBus(ctx context.Context, busID string) (fleet.Bus, error)
	ListBusTickets(ctx context.Context, busID string, status tickets.Status) ([]tickets.Ticket, error)
	ListUserTransactions(ctx context.Context, userID string) ([]wallet.Transaction, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// kindOrder fixes the order of WalletSummary.Kinds.
var kindOrder = []wallet.Kind{wallet.KindDeposit, wallet.KindWithdraw, wallet.KindPayment, wallet.KindRefund}

func (s *Service) BusBookings(ctx context.Context, req BusBookingsRequest) (BusBookings, error) {
	if req.BusID == "" {
		return BusBookings{}, apperr.New(apperr.ErrValidation, "bus id required")
	}
	switch req.Status {
	case "", tickets.StatusBooked, tickets.StatusCancelled, tickets.StatusCompleted:
	default:
		return BusBookings{}, apperr.New(apperr.ErrValidation, "unknown status %q", req.Status)
	}
	if s.repo == nil {
		return BusBookings{}, errors.New("reporting: repository not configured")
	}

	bus, err := s.repo.GetBus(ctx, req.BusID)
	if err != nil {
		return BusBookings{}, err
	}
	rows, err := s.repo.ListBusTickets(ctx, req.BusID, req.Status)
	if err != nil {
		return BusBookings{}, err
	}

	out := BusBookings{
		BusID:          bus.ID,
		BusNumber:      bus.BusNumber,
		Tickets:        rows,
		Revenue:        decimal.Zero,
		AvailableSeats: bus.AvailableSeats,
	}
	for _, t := range rows {
		out.Total++
		switch t.Status {
		case tickets.StatusBooked:
			out.Booked++
			out.Revenue = out.Revenue.Add(t.TotalFare)
			out.SeatsBooked += t.PassengerCount
		case tickets.StatusCancelled:
			out.Cancelled++
		case tickets.StatusCompleted:
			out.Completed++
		}
	}
	return out, nil
}

func (s *Service) WalletSummary(ctx context.Context, userID string) (WalletSummary, error) {
	if userID == "" {
		return WalletSummary{}, apperr.New(apperr.ErrValidation, "user id required")
	}
	if s.repo == nil {
		return WalletSummary{}, errors.New("reporting: repository not configured")
	}

	entries, err := s.repo.ListUserTransactions(ctx, userID)
	if err != nil {
		return WalletSummary{}, err
	}

	byKind := make(map[wallet.Kind]*KindTotal, len(kindOrder))
	for _, k := range kindOrder {
		byKind[k] = &KindTotal{Kind: k, Amount: decimal.Zero}
	}
	out := WalletSummary{UserID: userID, TotalCredit: decimal.Zero, TotalDebit: decimal.Zero}
	for _, e := range entries {
		kt, ok := byKind[e.Kind]
		if !ok {
			continue
		}
		kt.Count++
		kt.Amount = kt.Amount.Add(e.Amount)
		out.Transactions++
		if e.Kind.Credit() {
			out.TotalCredit = out.TotalCredit.Add(e.Amount)
		} else {
			out.TotalDebit = out.TotalDebit.Add(e.Amount)
		}
	}
	for _, k := range kindOrder {
		out.Kinds = append(out.Kinds, *byKind[k])
	}
	out.NetDelta = out.TotalCredit.Sub(out.TotalDebit)
	return out, nil
}
