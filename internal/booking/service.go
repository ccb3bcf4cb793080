package booking

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/internal/fleet"
	"bus-booking/internal/inventory"
	"bus-booking/internal/notify"
	"bus-booking/internal/pricing"
	"bus-booking/internal/tickets"
	"bus-booking/internal/wallet"
	"bus-booking/pkg/logger"
	"bus-booking/pkg/utils"

	"github.com/google/uuid"
)

type Service struct {
	db       *sql.DB
	maxSeats int
	notifier notify.Sender
	clock    func() time.Time
}

func NewService(db *sql.DB, maxSeats int, notifier notify.Sender) *Service {
	if maxSeats <= 0 {
		maxSeats = 10
	}
	return &Service{db: db, maxSeats: maxSeats, notifier: notifier, clock: time.Now}
}

// prepared is a request that passed every check not needing the database.
type prepared struct {
	seats      []int
	class      fleet.SeatClass
	passengers []tickets.Passenger
}

func (s *Service) prepare(req Request) (prepared, error) {
	if req.UserID == "" {
		return prepared{}, apperr.New(apperr.ErrValidation, "user id required")
	}
	if strings.TrimSpace(req.BusID) == "" {
		return prepared{}, apperr.New(apperr.ErrValidation, "bus id required")
	}
	seats, err := inventory.ParseSeatNumbers(req.SeatNumbers, 0)
	if err != nil {
		return prepared{}, err
	}
	if len(seats) > s.maxSeats {
		return prepared{}, apperr.New(apperr.ErrValidation, "at most %d seats per booking", s.maxSeats)
	}
	if len(req.Passengers) != len(seats) {
		return prepared{}, apperr.New(apperr.ErrValidation,
			"%d seats need %d passengers, got %d", len(seats), len(seats), len(req.Passengers))
	}
	class, err := fleet.ParseSeatClass(req.SeatClass)
	if err != nil {
		return prepared{}, err
	}
	passengers, err := tickets.BuildPassengers(req.Passengers)
	if err != nil {
		return prepared{}, err
	}
	return prepared{seats: seats, class: class, passengers: passengers}, nil
}

// Book places a booking. Locks are taken in the order bus, wallet so it never
// deadlocks against cancellation.
func (s *Service) Book(ctx context.Context, req Request) (Result, error) {
	p, err := s.prepare(req)
	if err != nil {
		return Result{}, err
	}
	now := s.clock().UTC()
	count := len(p.seats)

	var (
		out Result
		bus fleet.Bus
	)
	err = utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		bus, err = fleet.LockBusTx(ctx, tx, req.BusID)
		if err != nil {
			return err
		}
		if !bus.IsActive {
			return apperr.New(apperr.ErrNotFound, "bus not found")
		}
		if last := p.seats[len(p.seats)-1]; last > bus.TotalSeats {
			return apperr.New(apperr.ErrValidation, "seat %d is out of range", last)
		}

		segment, start, end, err := resolveJourney(ctx, tx, bus, req.SegmentID)
		if err != nil {
			return err
		}
		departure := bus.DepartureTime.Add(start.DepartureOffset)
		if !departure.After(now) {
			return apperr.New(apperr.ErrValidation, "bus has already departed")
		}

		if err := inventory.CheckTx(ctx, tx, bus, segment, count); err != nil {
			return err
		}

		quote, err := pricing.Calculate(pricing.Request{Bus: bus, Class: p.class, Segment: segment, SeatCount: count})
		if err != nil {
			return err
		}

		w, err := wallet.LockByUserTx(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if !wallet.HasSufficientBalance(w.Balance, quote.Total) {
			return apperr.New(apperr.ErrInsufficientFunds,
				"fare %s exceeds wallet balance %s", quote.Total.StringFixed(2), w.Balance.StringFixed(2))
		}

		t := tickets.Ticket{
			ID:              uuid.NewString(),
			UserID:          req.UserID,
			BusID:           bus.ID,
			StartStopID:     start.ID,
			EndStopID:       end.ID,
			StartSeq:        start.Sequence,
			EndSeq:          end.Sequence,
			DepartureOffset: start.DepartureOffset,
			SeatNumbers:     p.seats,
			SeatClass:       p.class,
			PassengerCount:  count,
			TotalFare:       quote.Total,
			Status:          tickets.StatusBooked,
			BookedAt:        now,
			UpdatedAt:       now,
			Passengers:      p.passengers,
		}
		if segment != nil {
			t.SegmentID = segment.ID
		}
		if err := tickets.InsertTx(ctx, tx, t); err != nil {
			return err
		}

		w, _, err = wallet.PostTx(ctx, tx, w, wallet.Posting{
			Kind:        wallet.KindPayment,
			Amount:      quote.Total,
			Description: fmt.Sprintf("Payment for bus %s, seats %s", bus.BusNumber, inventory.FormatSeatNumbers(p.seats)),
			TicketID:    t.ID,
		}, now)
		if err != nil {
			return err
		}

		left, err := inventory.TakeTx(ctx, tx, bus, count, now)
		if err != nil {
			return err
		}

		t.BusNumber = bus.BusNumber
		t.DepartureTime = departure
		out = Result{Ticket: t, Quote: quote, Balance: w.Balance, AvailableSeats: left}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	logger.From(ctx).Info("ticket booked",
		"ticket_id", out.Ticket.ID,
		"bus_id", bus.ID,
		"seats", count,
		"fare", out.Quote.Total.StringFixed(2),
	)
	if s.notifier != nil {
		s.notifier.Send(ctx, notify.Event{
			Type:     notify.EventBookingConfirmed,
			UserID:   req.UserID,
			TicketID: out.Ticket.ID,
			BusID:    bus.ID,
			Amount:   out.Quote.Total.StringFixed(2),
			Message:  fmt.Sprintf("Booked seats %s on bus %s", inventory.FormatSeatNumbers(p.seats), bus.BusNumber),
		})
	}
	return out, nil
}

// resolveJourney returns the boarding and alighting stops. Routes with
// declared segments require one; others always book end to end.
func resolveJourney(ctx context.Context, tx *sql.Tx, bus fleet.Bus, segmentID string) (*fleet.Segment, fleet.Stop, fleet.Stop, error) {
	if segmentID != "" {
		seg, err := fleet.GetSegment(ctx, tx, bus.RouteID, segmentID)
		if err != nil {
			return nil, fleet.Stop{}, fleet.Stop{}, err
		}
		start := fleet.Stop{ID: seg.StartStopID, Sequence: seg.StartSeq, City: seg.StartCity, DepartureOffset: seg.DepartureOffset}
		end := fleet.Stop{ID: seg.EndStopID, Sequence: seg.EndSeq, City: seg.EndCity}
		return &seg, start, end, nil
	}

	n, err := fleet.CountSegments(ctx, tx, bus.RouteID)
	if err != nil {
		return nil, fleet.Stop{}, fleet.Stop{}, err
	}
	if n > 0 {
		return nil, fleet.Stop{}, fleet.Stop{}, apperr.New(apperr.ErrValidation, "segment required for this route")
	}
	stops, err := fleet.ListStops(ctx, tx, bus.RouteID)
	if err != nil {
		return nil, fleet.Stop{}, fleet.Stop{}, err
	}
	if len(stops) < 2 {
		return nil, fleet.Stop{}, fleet.Stop{}, fmt.Errorf("route %s has %d stops", bus.RouteID, len(stops))
	}
	return nil, stops[0], stops[len(stops)-1], nil
}
