package cancellation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/internal/audit"
	"bus-booking/internal/fleet"
	"bus-booking/internal/inventory"
	"bus-booking/internal/notify"
	"bus-booking/internal/tickets"
	"bus-booking/internal/wallet"
	"bus-booking/pkg/logger"
	"bus-booking/pkg/utils"

	"github.com/shopspring/decimal"
)

// Outcome is one cancelled ticket.
type Outcome struct {
	Ticket         tickets.Ticket  `json:"ticket"`
	RefundPercent  int             `json:"refund_percent"`
	Refund         decimal.Decimal `json:"refund"`
	AvailableSeats int             `json:"available_seats"`
}

// BusOutcome is the result of cancelling a whole bus.
type BusOutcome struct {
	BusID       string          `json:"bus_id"`
	Cancelled   []Outcome       `json:"cancelled"`
	TotalRefund decimal.Decimal `json:"total_refund"`
}

type Service struct {
	db       *sql.DB
	cutoff   time.Duration
	audit    *audit.Service
	notifier notify.Sender
	clock    func() time.Time
}

func NewService(db *sql.DB, cutoff time.Duration, auditSvc *audit.Service, notifier notify.Sender) *Service {
	if cutoff <= 0 {
		cutoff = DefaultCutoff
	}
	return &Service{db: db, cutoff: cutoff, audit: auditSvc, notifier: notifier, clock: time.Now}
}

// Cancel is the passenger path. It is closed within the cutoff window.
func (s *Service) Cancel(ctx context.Context, userID, ticketID string) (Outcome, error) {
	if userID == "" {
		return Outcome{}, apperr.New(apperr.ErrValidation, "user id required")
	}
	out, err := s.cancelTicket(ctx, userID, ticketID, false)
	if err != nil {
		return Outcome{}, err
	}
	s.notifyCancelled(ctx, out, "Ticket cancelled")
	return out, nil
}

// AdminCancelTicket cancels regardless of the cutoff, refunding by the same
// tiers, so a departed ticket still gets the 25% band.
func (s *Service) AdminCancelTicket(ctx context.Context, actor audit.Actor, ticketID, reason string) (Outcome, error) {
	out, err := s.cancelTicket(ctx, "", ticketID, true)
	if err != nil {
		return Outcome{}, err
	}
	s.audit.Record(ctx, actor, audit.Event{
		Type:     audit.EventTypeTicketCancel,
		TicketID: out.Ticket.ID,
		BusID:    out.Ticket.BusID,
		UserID:   out.Ticket.UserID,
		Message:  strings.TrimSpace(reason),
		Metadata: fmt.Sprintf(`{"refund_percent":%d,"refund":"%s"}`, out.RefundPercent, out.Refund.StringFixed(2)),
	})
	s.notifyCancelled(ctx, out, "Ticket cancelled by operator")
	return out, nil
}

// CancelBus deactivates a bus and cancels every BOOKED ticket on it with a
// full refund, all in one transaction.
func (s *Service) CancelBus(ctx context.Context, actor audit.Actor, busID, reason string) (BusOutcome, error) {
	now := s.clock().UTC()
	out := BusOutcome{BusID: busID, Cancelled: []Outcome{}, TotalRefund: decimal.Zero}

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		bus, err := fleet.LockBusTx(ctx, tx, busID)
		if err != nil {
			return err
		}
		if !bus.IsActive {
			return apperr.New(apperr.ErrInvalidTransition, "bus %s is already cancelled", bus.BusNumber)
		}
		if err := fleet.DeactivateBusTx(ctx, tx, bus.ID, now); err != nil {
			return fmt.Errorf("deactivate bus: %w", err)
		}

		booked, err := tickets.LockBookedByBusTx(ctx, tx, bus.ID)
		if err != nil {
			return err
		}
		for _, t := range booked {
			o, err := settleTx(ctx, tx, bus, t, 100, now)
			if err != nil {
				return err
			}
			bus.AvailableSeats = o.AvailableSeats
			out.Cancelled = append(out.Cancelled, o)
			out.TotalRefund = out.TotalRefund.Add(o.Refund)
		}
		return nil
	})
	if err != nil {
		return BusOutcome{}, err
	}

	s.audit.Record(ctx, actor, audit.Event{
		Type:     audit.EventTypeBusCancel,
		BusID:    busID,
		Message:  strings.TrimSpace(reason),
		Metadata: fmt.Sprintf(`{"tickets":%d,"total_refund":"%s"}`, len(out.Cancelled), out.TotalRefund.StringFixed(2)),
	})
	for _, o := range out.Cancelled {
		s.notifyCancelled(ctx, o, "Bus cancelled by operator")
	}
	if s.notifier != nil {
		s.notifier.Send(ctx, notify.Event{Type: notify.EventBusCancelled, BusID: busID, Message: reason})
	}
	logger.From(ctx).Info("bus cancelled", "bus_id", busID, "tickets", len(out.Cancelled), "refund", out.TotalRefund.StringFixed(2))
	return out, nil
}

// cancelTicket runs one ticket cancellation. An empty userID skips the owner
// check; override skips the cutoff.
func (s *Service) cancelTicket(ctx context.Context, userID, ticketID string, override bool) (Outcome, error) {
	now := s.clock().UTC()
	var out Outcome

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		peek, err := tickets.GetTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if userID != "" && peek.UserID != userID {
			return apperr.New(apperr.ErrNotFound, "ticket not found")
		}

		bus, err := fleet.LockBusTx(ctx, tx, peek.BusID)
		if err != nil {
			return err
		}
		t, err := tickets.LockTicketTx(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if t.Status != tickets.StatusBooked {
			return apperr.New(apperr.ErrInvalidTransition, "ticket is already %s", strings.ToLower(string(t.Status)))
		}

		remaining := t.EffectiveDeparture(bus.DepartureTime).Sub(now)
		if !override && remaining <= s.cutoff {
			return apperr.New(apperr.ErrInvalidTransition,
				"cancellation closes %s before departure", s.cutoff)
		}

		out, err = settleTx(ctx, tx, bus, t, RefundPercentage(remaining), now)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	logger.From(ctx).Info("ticket cancelled",
		"ticket_id", out.Ticket.ID,
		"refund_percent", out.RefundPercent,
		"refund", out.Refund.StringFixed(2),
	)
	return out, nil
}

// settleTx refunds pct of the fare as a REFUND entry, returns the seats and
// closes the ticket. The bus and ticket must already be locked.
func settleTx(ctx context.Context, tx *sql.Tx, bus fleet.Bus, t tickets.Ticket, pct int, now time.Time) (Outcome, error) {
	refund := RefundAmount(t.TotalFare, pct)
	if refund.IsPositive() {
		w, err := wallet.LockByUserTx(ctx, tx, t.UserID)
		if err != nil {
			return Outcome{}, err
		}
		if _, _, err := wallet.PostTx(ctx, tx, w, wallet.Posting{
			Kind:        wallet.KindRefund,
			Amount:      refund,
			Description: fmt.Sprintf("Refund (%d%%) for bus %s, seats %s", pct, bus.BusNumber, inventory.FormatSeatNumbers(t.SeatNumbers)),
			TicketID:    t.ID,
		}, now); err != nil {
			return Outcome{}, err
		}
	}

	left, err := inventory.ReleaseTx(ctx, tx, bus, t.PassengerCount, now)
	if err != nil {
		return Outcome{}, err
	}
	if err := tickets.MarkCancelledTx(ctx, tx, t.ID, refund, now); err != nil {
		return Outcome{}, err
	}

	t.Status = tickets.StatusCancelled
	t.RefundAmount = refund
	t.UpdatedAt = now
	return Outcome{Ticket: t, RefundPercent: pct, Refund: refund, AvailableSeats: left}, nil
}

func (s *Service) notifyCancelled(ctx context.Context, o Outcome, msg string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Send(ctx, notify.Event{
		Type:     notify.EventTicketCancelled,
		UserID:   o.Ticket.UserID,
		TicketID: o.Ticket.ID,
		BusID:    o.Ticket.BusID,
		Amount:   o.Refund.StringFixed(2),
		Message:  msg,
	})
}
