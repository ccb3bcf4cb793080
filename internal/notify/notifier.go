package notify

import (
	"context"
	"fmt"
	"log/slog"

	"bus-booking/internal/config"
)

// Notifier is a delivery backend.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
	Close() error
}

// Sender is what domain services depend on.
type Sender interface {
	Send(ctx context.Context, e Event)
}

// LogNotifier writes events to the structured log. Used locally and as a fallback.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, e Event) error {
	l := n.Log
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "notification",
		"event_id", e.ID,
		"type", string(e.Type),
		"user_id", e.UserID,
		"ticket_id", e.TicketID,
		"bus_id", e.BusID,
		"amount", e.Amount,
	)
	return nil
}

func (n LogNotifier) Close() error { return nil }

// New builds the backend selected by cfg.Backend.
func New(cfg config.NotifyConfig, log *slog.Logger) (Notifier, error) {
	switch cfg.Backend {
	case "", "log":
		return LogNotifier{Log: log}, nil
	case "amqp":
		return NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPQueue), nil
	case "kafka":
		return NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return nil, fmt.Errorf("notify: unknown backend %q", cfg.Backend)
	}
}
