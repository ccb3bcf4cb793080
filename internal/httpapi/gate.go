package httpapi

import (
	"context"
	"time"

	"bus-booking/pkg/logger"
	"bus-booking/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// BusGate caps in-flight booking attempts per bus in Redis. The database
// row lock remains the correctness boundary; the gate only sheds load.
// A nil gate, nil client or Redis failure admits the request.
type BusGate struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewBusGate(rdb *redis.Client, limit int, ttl time.Duration) *BusGate {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BusGate{rdb: rdb, limit: limit, ttl: ttl}
}

// Acquire reports whether the request may proceed. release must be called
// once the booking finishes.
func (g *BusGate) Acquire(ctx context.Context, busID string) (release func(), ok bool) {
	noop := func() {}
	if g == nil || g.rdb == nil || g.limit <= 0 || busID == "" {
		return noop, true
	}
	key := utils.BusBookingCapKey(busID)
	acquired, err := utils.AcquireConcurrencyCap(ctx, g.rdb, key, g.limit, g.ttl)
	if err != nil {
		logger.From(ctx).Warn("booking gate unavailable, admitting", "bus_id", busID, "err", err)
		return noop, true
	}
	if !acquired {
		return noop, false
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := utils.ReleaseConcurrencyCap(rctx, g.rdb, key); err != nil {
			logger.From(ctx).Warn("booking gate release failed", "bus_id", busID, "err", err)
		}
	}, true
}
