package tickets

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/internal/audit"
	"bus-booking/internal/fleet"
	"bus-booking/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

type Service struct {
	db    *sql.DB
	audit *audit.Service
	clock func() time.Time
}

func NewService(db *sql.DB, auditSvc *audit.Service) *Service {
	return &Service{db: db, audit: auditSvc, clock: time.Now}
}

// BuildPassengers validates booking passenger details and assigns ids.
func BuildPassengers(in []PassengerInput) ([]Passenger, error) {
	out := make([]Passenger, 0, len(in))
	for i, p := range in {
		p = normalize(p)
		if err := validate.Struct(p); err != nil {
			return nil, apperr.New(apperr.ErrValidation, "passenger %d: %s", i+1, apperr.Message(apperr.FromValidation(err)))
		}
		out = append(out, Passenger{
			ID:       uuid.NewString(),
			Name:     p.Name,
			Age:      p.Age,
			Gender:   p.Gender,
			IDNumber: p.IDNumber,
			Phone:    p.Phone,
		})
	}
	return out, nil
}

func normalize(p PassengerInput) PassengerInput {
	p.Name = strings.TrimSpace(p.Name)
	p.Gender = strings.ToUpper(strings.TrimSpace(p.Gender))
	p.IDNumber = strings.TrimSpace(p.IDNumber)
	p.Phone = strings.TrimSpace(p.Phone)
	return p
}

// Get returns a ticket with its passengers. Tickets of other users read as
// not found unless the viewer is staff.
func (s *Service) Get(ctx context.Context, viewer Viewer, id string) (Ticket, error) {
	t, err := GetTicket(ctx, s.db, id)
	if err != nil {
		return Ticket{}, err
	}
	if t.UserID != viewer.UserID && !viewer.Staff {
		return Ticket{}, apperr.New(apperr.ErrNotFound, "ticket not found")
	}
	bus, err := fleet.GetBus(ctx, s.db, t.BusID)
	if err != nil {
		return Ticket{}, err
	}
	t.BusNumber = bus.BusNumber
	t.DepartureTime = t.EffectiveDeparture(bus.DepartureTime)
	if t.Passengers, err = listPassengers(ctx, s.db, t.ID); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string, filter ListFilter) (Listing, error) {
	switch filter {
	case "", FilterAll, FilterUpcoming, FilterPast:
	default:
		return Listing{}, apperr.New(apperr.ErrValidation, "unknown filter %q", filter)
	}
	all, err := listByUser(ctx, s.db, userID)
	if err != nil {
		return Listing{}, err
	}
	l := split(all, s.clock())
	switch filter {
	case FilterUpcoming:
		l.Past = []Ticket{}
	case FilterPast:
		l.Upcoming = []Ticket{}
	}
	return l, nil
}

// split puts BOOKED tickets that have not departed under Upcoming and
// everything else under Past.
func split(ts []Ticket, now time.Time) Listing {
	l := Listing{Upcoming: []Ticket{}, Past: []Ticket{}}
	for _, t := range ts {
		if t.Status == StatusBooked && t.DepartureTime.After(now) {
			l.Upcoming = append(l.Upcoming, t)
		} else {
			l.Past = append(l.Past, t)
		}
	}
	return l
}

// UpdatePassenger edits a passenger while the ticket is still booked and
// the bus has not departed.
func (s *Service) UpdatePassenger(ctx context.Context, userID, ticketID, passengerID string, in PassengerInput) (Passenger, error) {
	in = normalize(in)
	if err := validate.Struct(in); err != nil {
		return Passenger{}, apperr.FromValidation(err)
	}
	now := s.clock().UTC()
	p := Passenger{
		ID:       passengerID,
		Name:     in.Name,
		Age:      in.Age,
		Gender:   in.Gender,
		IDNumber: in.IDNumber,
		Phone:    in.Phone,
	}

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		t, err := LockTicketTx(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if t.UserID != userID {
			return apperr.New(apperr.ErrNotFound, "ticket not found")
		}
		if t.Status != StatusBooked {
			return apperr.New(apperr.ErrInvalidTransition, "ticket is %s", strings.ToLower(string(t.Status)))
		}
		bus, err := fleet.GetBus(ctx, tx, t.BusID)
		if err != nil {
			return err
		}
		if !t.EffectiveDeparture(bus.DepartureTime).After(now) {
			return apperr.New(apperr.ErrInvalidTransition, "bus has already departed")
		}
		return updatePassenger(ctx, tx, t.ID, p)
	})
	if err != nil {
		return Passenger{}, err
	}
	return p, nil
}

// Complete marks a BOOKED ticket as travelled.
func (s *Service) Complete(ctx context.Context, actor audit.Actor, ticketID string) (Ticket, error) {
	now := s.clock().UTC()
	var out Ticket
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		t, err := LockTicketTx(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if t.Status != StatusBooked {
			return apperr.New(apperr.ErrInvalidTransition, "cannot complete a %s ticket", strings.ToLower(string(t.Status)))
		}
		if err := MarkCompletedTx(ctx, tx, t.ID, now); err != nil {
			return err
		}
		t.Status = StatusCompleted
		t.UpdatedAt = now
		out = t
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	s.audit.Record(ctx, actor, audit.Event{
		Type:     audit.EventTypeTicketComplete,
		TicketID: out.ID,
		BusID:    out.BusID,
		UserID:   out.UserID,
	})
	return out, nil
}
