package receipt

import (
	"bytes"
	"testing"
	"time"

	"bus-booking/internal/fleet"
	"bus-booking/internal/tickets"

	"github.com/shopspring/decimal"
)

func TestRender_ProducesPDF(t *testing.T) {
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	doc := Document{
		Ticket: tickets.Ticket{
			ID:           "t1",
			Status:       tickets.StatusCancelled,
			SeatNumbers:  []int{4, 5},
			SeatClass:    fleet.SeatClassGeneral,
			TotalFare:    decimal.RequireFromString("800"),
			RefundAmount: decimal.RequireFromString("600"),
			BookedAt:     now,
			Passengers: []tickets.Passenger{
				{Name: "Asha", Age: 31, Gender: "F"},
				{Name: "Ravi", Age: 34, Gender: "M"},
			},
		},
		Bus:      fleet.Bus{BusNumber: "KA-01", DepartureTime: now.Add(24 * time.Hour)},
		From:     "Bengaluru",
		To:       "Chennai",
		Currency: "INR",
		IssuedAt: now,
	}

	out, err := Render(doc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("expected a PDF document, got %q", out[:min(len(out), 8)])
	}
}

func TestSafe(t *testing.T) {
	if safe("  ", "-") != "-" || safe("x", "-") != "x" {
		t.Fatalf("unexpected fallback behaviour")
	}
}
