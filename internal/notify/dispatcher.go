package notify

import (
	"context"
	"sync"
	"time"

	"bus-booking/pkg/logger"
)

// Dispatcher delivers events in the background with a bounded timeout.
// Failures are logged and dropped.
type Dispatcher struct {
	n       Notifier
	timeout time.Duration
	clock   func() time.Time
	wg      sync.WaitGroup
}

func NewDispatcher(n Notifier, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{n: n, timeout: timeout, clock: time.Now}
}

// Send returns immediately. The request context only contributes its values;
// its cancellation does not abort delivery.
func (d *Dispatcher) Send(ctx context.Context, e Event) {
	if d == nil || d.n == nil {
		return
	}
	e = e.withDefaults(d.clock())
	log := logger.From(ctx)
	base := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				log.Error("notification panicked", "type", string(e.Type), "event_id", e.ID, "panic", p)
			}
		}()

		sendCtx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()
		if err := d.n.Notify(sendCtx, e); err != nil {
			log.Warn("notification failed", "type", string(e.Type), "event_id", e.ID, "err", err)
		}
	}()
}

// Wait blocks until in-flight deliveries finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
