package cancellation

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCutoff is how long before departure user cancellation closes.
const DefaultCutoff = 6 * time.Hour

// RefundPercentage tiers the refund by time left until departure.
// The 25% band is only reachable through an administrative override.
func RefundPercentage(untilDeparture time.Duration) int {
	switch {
	case untilDeparture >= 24*time.Hour:
		return 100
	case untilDeparture >= 12*time.Hour:
		return 75
	case untilDeparture >= 6*time.Hour:
		return 50
	default:
		return 25
	}
}

// RefundAmount is pct percent of fare, rounded half away from zero to 2 places.
func RefundAmount(fare decimal.Decimal, pct int) decimal.Decimal {
	return fare.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)).Round(2)
}
