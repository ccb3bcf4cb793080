package fleet

import (
	"strings"

	"bus-booking/internal/apperr"

	"github.com/shopspring/decimal"
)

var (
	sleeperMarkup = decimal.RequireFromString("1.5")
	luxuryMarkup  = decimal.RequireFromString("2.0")
)

// ParseSeatClass normalizes a class name. Empty means GENERAL.
func ParseSeatClass(s string) (SeatClass, error) {
	switch c := SeatClass(strings.ToUpper(strings.TrimSpace(s))); c {
	case "":
		return SeatClassGeneral, nil
	case SeatClassGeneral, SeatClassSleeper, SeatClassLuxury:
		return c, nil
	default:
		return "", apperr.New(apperr.ErrValidation, "unknown seat class %q", s)
	}
}

// FareForClass returns the per-seat fare for class. Classes the bus does not
// offer fall back to the base fare.
func FareForClass(b Bus, class SeatClass) (decimal.Decimal, error) {
	switch class {
	case SeatClassSleeper:
		if b.HasSleeper && b.SleeperFare.Valid {
			return b.SleeperFare.Decimal, nil
		}
	case SeatClassLuxury:
		if b.HasLuxury && b.LuxuryFare.Valid {
			return b.LuxuryFare.Decimal, nil
		}
	case SeatClassGeneral:
	default:
		return decimal.Decimal{}, apperr.New(apperr.ErrValidation, "unknown seat class %q", class)
	}
	return b.Fare, nil
}

// applyBusInput copies in onto b, enforcing the seat clamp and fare defaults.
// previous is the stored bus on update and nil on create.
func applyBusInput(b Bus, in BusInput, previous *Bus) (Bus, error) {
	if in.Fare.IsNegative() {
		return Bus{}, apperr.New(apperr.ErrValidation, "fare must not be negative")
	}
	for name, f := range map[string]*decimal.Decimal{"sleeper_fare": in.SleeperFare, "luxury_fare": in.LuxuryFare} {
		if f != nil && f.IsNegative() {
			return Bus{}, apperr.New(apperr.ErrValidation, "%s must not be negative", name)
		}
	}

	b.RouteID = in.RouteID
	b.BusNumber = strings.TrimSpace(in.BusNumber)
	b.DepartureTime = in.DepartureTime.UTC()
	b.ArrivalTime = in.ArrivalTime.UTC()
	b.TotalSeats = in.TotalSeats
	b.Fare = in.Fare.Round(2)
	b.HasSleeper = in.HasSleeper
	b.HasLuxury = in.HasLuxury
	b.HasGeneral = in.HasGeneral == nil || *in.HasGeneral
	if in.IsActive != nil {
		b.IsActive = *in.IsActive
	} else if previous == nil {
		b.IsActive = true
	}

	switch {
	case in.AvailableSeats != nil:
		b.AvailableSeats = *in.AvailableSeats
	case previous != nil:
		b.AvailableSeats = previous.AvailableSeats + (in.TotalSeats - previous.TotalSeats)
	default:
		b.AvailableSeats = in.TotalSeats
	}
	b.AvailableSeats = ClampSeats(b.AvailableSeats, b.TotalSeats)

	b.SleeperFare = decimal.NullDecimal{}
	if in.SleeperFare != nil && in.SleeperFare.IsPositive() {
		b.SleeperFare = decimal.NewNullDecimal(in.SleeperFare.Round(2))
	} else if b.HasSleeper {
		b.SleeperFare = decimal.NewNullDecimal(b.Fare.Mul(sleeperMarkup).Round(2))
	}
	b.LuxuryFare = decimal.NullDecimal{}
	if in.LuxuryFare != nil && in.LuxuryFare.IsPositive() {
		b.LuxuryFare = decimal.NewNullDecimal(in.LuxuryFare.Round(2))
	} else if b.HasLuxury {
		b.LuxuryFare = decimal.NewNullDecimal(b.Fare.Mul(luxuryMarkup).Round(2))
	}
	return b, nil
}

// ClampSeats bounds n to [0, total].
func ClampSeats(n, total int) int {
	if n < 0 {
		return 0
	}
	if n > total {
		return total
	}
	return n
}
