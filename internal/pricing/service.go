package pricing

import (
	"bus-booking/internal/apperr"
	"bus-booking/internal/fleet"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Calculate prices req. The per-seat fare is rounded before multiplying by
// the seat count, so a receipt's per-seat line always sums to the total.
func Calculate(req Request) (Quote, error) {
	if req.SeatCount <= 0 {
		return Quote{}, apperr.New(apperr.ErrValidation, "seat count must be positive")
	}
	base, err := fleet.FareForClass(req.Bus, req.Class)
	if err != nil {
		return Quote{}, err
	}

	mult := one
	if req.Segment != nil {
		mult = req.Segment.FareMultiplier
		if !mult.IsPositive() {
			return Quote{}, apperr.New(apperr.ErrValidation, "segment fare multiplier must be positive")
		}
	}

	seat := base.Mul(mult).Round(2)
	return Quote{
		Class:      req.Class,
		SeatFare:   seat,
		Multiplier: mult,
		SeatCount:  req.SeatCount,
		Total:      seat.Mul(decimal.NewFromInt(int64(req.SeatCount))).Round(2),
	}, nil
}
