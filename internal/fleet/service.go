package fleet

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/internal/audit"
	"bus-booking/pkg/logger"
	"bus-booking/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// Service manages the route and bus catalog.
type Service struct {
	db    *sql.DB
	audit *audit.Service
	clock func() time.Time
}

func NewService(db *sql.DB, auditSvc *audit.Service) *Service {
	return &Service{db: db, audit: auditSvc, clock: time.Now}
}

// CreateRoute stores a route with stops numbered 0..n-1 in the given order.
func (s *Service) CreateRoute(ctx context.Context, actor audit.Actor, in CreateRouteInput) (Route, error) {
	if err := validate.Struct(in); err != nil {
		return Route{}, apperr.FromValidation(err)
	}

	now := s.clock().UTC()
	r := Route{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		CreatedAt: now,
	}
	for i, st := range in.Stops {
		if st.DepartureOffsetMinutes < st.ArrivalOffsetMinutes {
			return Route{}, apperr.New(apperr.ErrValidation, "stop %d departs before it arrives", i)
		}
		if i > 0 && st.ArrivalOffsetMinutes < in.Stops[i-1].DepartureOffsetMinutes {
			return Route{}, apperr.New(apperr.ErrValidation, "stop %d arrives before stop %d departs", i, i-1)
		}
		r.Stops = append(r.Stops, Stop{
			ID:              uuid.NewString(),
			RouteID:         r.ID,
			City:            strings.TrimSpace(st.City),
			Sequence:        i,
			ArrivalOffset:   time.Duration(st.ArrivalOffsetMinutes) * time.Minute,
			DepartureOffset: time.Duration(st.DepartureOffsetMinutes) * time.Minute,
		})
	}
	r.Origin = r.Stops[0].City
	r.Destination = r.Stops[len(r.Stops)-1].City

	seen := make(map[[2]int]bool, len(in.Segments))
	for _, sg := range in.Segments {
		if sg.EndSequence >= len(r.Stops) {
			return Route{}, apperr.New(apperr.ErrValidation, "segment end %d is not a stop", sg.EndSequence)
		}
		key := [2]int{sg.StartSequence, sg.EndSequence}
		if seen[key] {
			return Route{}, apperr.New(apperr.ErrValidation, "duplicate segment %d-%d", sg.StartSequence, sg.EndSequence)
		}
		seen[key] = true

		mult := sg.FareMultiplier
		if mult.IsZero() {
			mult = decimal.NewFromInt(1)
		}
		if !mult.IsPositive() {
			return Route{}, apperr.New(apperr.ErrValidation, "fare multiplier must be positive")
		}
		start, end := r.Stops[sg.StartSequence], r.Stops[sg.EndSequence]
		r.Segments = append(r.Segments, Segment{
			ID:              uuid.NewString(),
			RouteID:         r.ID,
			StartStopID:     start.ID,
			EndStopID:       end.ID,
			StartSeq:        start.Sequence,
			EndSeq:          end.Sequence,
			StartCity:       start.City,
			EndCity:         end.City,
			FareMultiplier:  mult.Round(2),
			DepartureOffset: start.DepartureOffset,
		})
	}

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertRoute(ctx, tx, r); err != nil {
			return fmt.Errorf("insert route: %w", err)
		}
		for _, st := range r.Stops {
			if err := insertStop(ctx, tx, st); err != nil {
				return fmt.Errorf("insert stop: %w", err)
			}
		}
		for _, sg := range r.Segments {
			if err := insertSegment(ctx, tx, sg); err != nil {
				return fmt.Errorf("insert segment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Route{}, err
	}

	s.audit.Record(ctx, actor, audit.Event{
		Type:    audit.EventTypeRouteCreate,
		Message: fmt.Sprintf("route %s: %s to %s", r.Name, r.Origin, r.Destination),
	})
	return r, nil
}

func (s *Service) CreateBus(ctx context.Context, actor audit.Actor, in BusInput) (Bus, error) {
	if err := validate.Struct(in); err != nil {
		return Bus{}, apperr.FromValidation(err)
	}
	now := s.clock().UTC()
	b, err := applyBusInput(Bus{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}, in, nil)
	if err != nil {
		return Bus{}, err
	}

	ok, err := routeExists(ctx, s.db, b.RouteID)
	if err != nil {
		return Bus{}, err
	}
	if !ok {
		return Bus{}, apperr.New(apperr.ErrNotFound, "route not found")
	}
	if err := insertBus(ctx, s.db, b); err != nil {
		if utils.IsUniqueViolation(err) {
			return Bus{}, apperr.New(apperr.ErrConflict, "bus number %s already exists", b.BusNumber)
		}
		return Bus{}, err
	}

	s.audit.Record(ctx, actor, audit.Event{Type: audit.EventTypeBusChange, BusID: b.ID, Message: "bus created"})
	logger.From(ctx).Info("bus created", "bus_id", b.ID, "bus_number", b.BusNumber)
	return b, nil
}

// UpdateBus replaces a bus's schedule, capacity and fares. When available
// seats are not given, the counter shifts by the change in total seats.
// A bus with BOOKED tickets keeps its route and can only be deactivated
// through the cancellation cascade.
func (s *Service) UpdateBus(ctx context.Context, actor audit.Actor, id string, in BusInput) (Bus, error) {
	if err := validate.Struct(in); err != nil {
		return Bus{}, apperr.FromValidation(err)
	}
	now := s.clock().UTC()

	var out Bus
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		prev, err := LockBusTx(ctx, tx, id)
		if err != nil {
			return err
		}
		rerouted := in.RouteID != prev.RouteID
		deactivated := prev.IsActive && in.IsActive != nil && !*in.IsActive
		if rerouted || deactivated {
			booked, err := countBookedTickets(ctx, tx, prev.ID)
			if err != nil {
				return err
			}
			if booked > 0 && rerouted {
				return apperr.New(apperr.ErrInvalidTransition,
					"bus has %d booked tickets; cancel it via /admin/buses/%s/cancel before changing its route", booked, prev.ID)
			}
			if booked > 0 {
				return apperr.New(apperr.ErrInvalidTransition,
					"bus has %d booked tickets; use /admin/buses/%s/cancel to deactivate it", booked, prev.ID)
			}
		}
		if rerouted {
			ok, err := routeExists(ctx, tx, in.RouteID)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.New(apperr.ErrNotFound, "route not found")
			}
		}
		b, err := applyBusInput(prev, in, &prev)
		if err != nil {
			return err
		}
		b.UpdatedAt = now
		if err := updateBus(ctx, tx, b); err != nil {
			if utils.IsUniqueViolation(err) {
				return apperr.New(apperr.ErrConflict, "bus number %s already exists", b.BusNumber)
			}
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return Bus{}, err
	}

	s.audit.Record(ctx, actor, audit.Event{Type: audit.EventTypeBusChange, BusID: out.ID, Message: "bus updated"})
	return out, nil
}

// GetBus returns the bus with its route layout. Inactive buses are hidden
// unless includeInactive is set.
func (s *Service) GetBus(ctx context.Context, id string, includeInactive bool) (BusDetail, error) {
	b, err := GetBus(ctx, s.db, id)
	if err != nil {
		return BusDetail{}, err
	}
	if !b.IsActive && !includeInactive {
		return BusDetail{}, apperr.New(apperr.ErrNotFound, "bus not found")
	}
	r, err := s.Route(ctx, b.RouteID)
	if err != nil {
		return BusDetail{}, err
	}
	return BusDetail{Bus: b, Route: r}, nil
}

// Route loads a route with its stops and segments.
func (s *Service) Route(ctx context.Context, id string) (Route, error) {
	r, err := getRoute(ctx, s.db, id)
	if err != nil {
		return Route{}, err
	}
	if r.Stops, err = ListStops(ctx, s.db, id); err != nil {
		return Route{}, err
	}
	if r.Segments, err = ListSegments(ctx, s.db, id); err != nil {
		return Route{}, err
	}
	return r, nil
}

// ListBuses filters by status: "active", "inactive" or "" for all.
func (s *Service) ListBuses(ctx context.Context, status string) ([]Bus, error) {
	var active *bool
	switch status {
	case "", "all":
	case "active", "inactive":
		v := status == "active"
		active = &v
	default:
		return nil, apperr.New(apperr.ErrValidation, "unknown status %q", status)
	}
	return listBuses(ctx, s.db, active)
}

// Search finds active buses travelling from origin to destination, one match per bus.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]Match, error) {
	q.Origin = strings.TrimSpace(q.Origin)
	q.Destination = strings.TrimSpace(q.Destination)
	if q.Origin == "" && q.Destination == "" && q.Date.IsZero() {
		return nil, apperr.New(apperr.ErrValidation, "origin, destination or date required")
	}
	if !validSort(q.Sort) {
		return nil, apperr.New(apperr.ErrValidation, "unknown sort %q", q.Sort)
	}

	cands, err := searchCandidates(ctx, s.db, q.Origin, q.Destination, q.Date)
	if err != nil {
		return nil, err
	}
	matches := pickMatches(cands)
	sortMatches(matches, q.Sort)
	return matches, nil
}
