package receipt

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bus-booking/internal/fleet"
	"bus-booking/internal/inventory"
	"bus-booking/internal/tickets"

	"github.com/phpdave11/gofpdf"
)

const timeLayout = "02 Jan 2006 15:04 MST"

// Document is everything printed on a receipt.
type Document struct {
	Ticket   tickets.Ticket
	Bus      fleet.Bus
	From     string
	To       string
	Currency string
	IssuedAt time.Time
}

// Render builds the PDF for d.
func Render(d Document) ([]byte, error) {
	t := d.Ticket

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Ticket "+t.ID, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BUS TICKET RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"Ticket      : " + t.ID,
		"Status      : " + string(t.Status),
		"Bus         : " + safe(d.Bus.BusNumber, t.BusNumber),
		"From        : " + safe(d.From, "-"),
		"To          : " + safe(d.To, "-"),
		"Departure   : " + t.EffectiveDeparture(d.Bus.DepartureTime).Format(timeLayout),
		"Class       : " + string(t.SeatClass),
		"Seats       : " + inventory.FormatSeatNumbers(t.SeatNumbers),
		"Booked at   : " + t.BookedAt.Format(timeLayout),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Passengers:")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for i, p := range t.Passengers {
		pdf.Cell(0, 6, fmt.Sprintf("%d) %s, %d, %s", i+1, p.Name, p.Age, p.Gender))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Total: "+money(d.Currency, t.TotalFare.StringFixed(2)))
	pdf.Ln(8)
	if t.Status == tickets.StatusCancelled {
		pdf.Cell(0, 8, "Refunded: "+money(d.Currency, t.RefundAmount.StringFixed(2)))
		pdf.Ln(8)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Issued "+d.IssuedAt.Format(timeLayout)+". Show this receipt when boarding.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func safe(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func money(currency, amount string) string {
	if currency == "" {
		return amount
	}
	return currency + " " + amount
}

// Service loads a ticket the viewer may see and renders its receipt.
type Service struct {
	db       *sql.DB
	tickets  *tickets.Service
	currency string
	clock    func() time.Time
}

func NewService(db *sql.DB, ticketSvc *tickets.Service, currency string) *Service {
	return &Service{db: db, tickets: ticketSvc, currency: currency, clock: time.Now}
}

func (s *Service) Receipt(ctx context.Context, viewer tickets.Viewer, ticketID string) ([]byte, error) {
	t, err := s.tickets.Get(ctx, viewer, ticketID)
	if err != nil {
		return nil, err
	}
	bus, err := fleet.GetBus(ctx, s.db, t.BusID)
	if err != nil {
		return nil, err
	}
	stops, err := fleet.ListStops(ctx, s.db, bus.RouteID)
	if err != nil {
		return nil, err
	}

	d := Document{Ticket: t, Bus: bus, Currency: s.currency, IssuedAt: s.clock().UTC()}
	for _, st := range stops {
		switch st.ID {
		case t.StartStopID:
			d.From = st.City
		case t.EndStopID:
			d.To = st.City
		}
	}
	return Render(d)
}
