package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/internal/audit"
	"bus-booking/internal/auth"
	"bus-booking/internal/booking"
	"bus-booking/internal/config"
	"bus-booking/internal/fleet"
	"bus-booking/internal/tickets"
	"bus-booking/internal/users"
	"bus-booking/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type fakeBooker struct {
	got booking.Request
	err error
}

func (f *fakeBooker) Book(ctx context.Context, req booking.Request) (booking.Result, error) {
	f.got = req
	if f.err != nil {
		return booking.Result{}, f.err
	}
	return booking.Result{
		Ticket:         tickets.Ticket{ID: "t1", BusID: req.BusID, Status: tickets.StatusBooked},
		Balance:        decimal.RequireFromString("200"),
		AvailableSeats: 38,
	}, nil
}

type fakeTickets struct {
	viewer tickets.Viewer
}

func (f *fakeTickets) Get(ctx context.Context, viewer tickets.Viewer, id string) (tickets.Ticket, error) {
	f.viewer = viewer
	if id != "t1" {
		return tickets.Ticket{}, apperr.New(apperr.ErrNotFound, "ticket not found")
	}
	return tickets.Ticket{ID: "t1", UserID: "u1"}, nil
}

func (f *fakeTickets) ListForUser(ctx context.Context, userID string, filter tickets.ListFilter) (tickets.Listing, error) {
	if filter != tickets.FilterAll && filter != tickets.FilterUpcoming && filter != tickets.FilterPast {
		return tickets.Listing{}, apperr.New(apperr.ErrValidation, "unknown filter %q", filter)
	}
	return tickets.Listing{Upcoming: []tickets.Ticket{}, Past: []tickets.Ticket{}}, nil
}

func (f *fakeTickets) UpdatePassenger(ctx context.Context, userID, ticketID, passengerID string, in tickets.PassengerInput) (tickets.Passenger, error) {
	return tickets.Passenger{ID: passengerID, Name: in.Name}, nil
}

func (f *fakeTickets) Complete(ctx context.Context, actor audit.Actor, ticketID string) (tickets.Ticket, error) {
	return tickets.Ticket{ID: ticketID, Status: tickets.StatusCompleted}, nil
}

type fakeReceipts struct{}

func (fakeReceipts) Receipt(ctx context.Context, viewer tickets.Viewer, ticketID string) ([]byte, error) {
	return []byte("%PDF-1.3 fake"), nil
}

type fakeAccounts struct {
	users map[string]users.User
}

func (f *fakeAccounts) Register(ctx context.Context, in users.RegisterInput) (users.User, error) {
	return users.User{ID: "u-new", Email: in.Email, Role: "passenger"}, nil
}

func (f *fakeAccounts) Authenticate(ctx context.Context, in users.LoginInput) (users.User, error) {
	for _, u := range f.users {
		if u.Email == in.Email && in.Password == "password1" {
			return u, nil
		}
	}
	return users.User{}, apperr.New(apperr.ErrUnauthorized, "invalid email or password")
}

func (f *fakeAccounts) Get(ctx context.Context, id string) (users.User, error) {
	u, ok := f.users[id]
	if !ok {
		return users.User{}, apperr.New(apperr.ErrNotFound, "user not found")
	}
	return u, nil
}

type fakeFleet struct {
	query fleet.SearchQuery
}

func (f *fakeFleet) CreateRoute(ctx context.Context, actor audit.Actor, in fleet.CreateRouteInput) (fleet.Route, error) {
	return fleet.Route{}, nil
}

func (f *fakeFleet) CreateBus(ctx context.Context, actor audit.Actor, in fleet.BusInput) (fleet.Bus, error) {
	return fleet.Bus{}, nil
}

func (f *fakeFleet) UpdateBus(ctx context.Context, actor audit.Actor, id string, in fleet.BusInput) (fleet.Bus, error) {
	return fleet.Bus{}, nil
}

func (f *fakeFleet) GetBus(ctx context.Context, id string, includeInactive bool) (fleet.BusDetail, error) {
	return fleet.BusDetail{}, apperr.New(apperr.ErrNotFound, "bus not found")
}

func (f *fakeFleet) ListBuses(ctx context.Context, status string) ([]fleet.Bus, error) {
	return nil, nil
}

func (f *fakeFleet) Search(ctx context.Context, q fleet.SearchQuery) ([]fleet.Match, error) {
	f.query = q
	return []fleet.Match{}, nil
}

// identity stands in for auth.RequireAccessToken.
func identity(uid, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), uid, role))
		c.Next()
	}
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out["error"]
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.New(apperr.ErrValidation, "bad seat"), 400},
		{apperr.New(apperr.ErrUnauthorized, "nope"), 401},
		{apperr.New(apperr.ErrInsufficientFunds, "low"), 402},
		{apperr.New(apperr.ErrNotFound, "missing"), 404},
		{apperr.New(apperr.ErrCapacityExceeded, "full"), 409},
		{apperr.New(apperr.ErrInvalidTransition, "cancelled"), 409},
		{apperr.New(apperr.ErrConflict, "dup"), 409},
		{fmt.Errorf("wrapped: %w", apperr.New(apperr.ErrNotFound, "x")), 404},
		{errors.New("driver: bad connection"), 500},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestBookTicket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	booker := &fakeBooker{}
	h := Handlers{Booking: booker}
	r := gin.New()
	r.POST("/tickets", identity("u1", "passenger"), h.BookTicket)

	w := do(r, http.MethodPost, "/tickets", `{"bus_id":"b1","seat_class":"GENERAL","seat_numbers":"4,5","passengers":[{"name":"A","age":30,"gender":"F"},{"name":"B","age":31,"gender":"M"}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if booker.got.UserID != "u1" || booker.got.SeatNumbers != "4,5" || len(booker.got.Passengers) != 2 {
		t.Fatalf("unexpected request passed to booking: %+v", booker.got)
	}
}

func TestBookTicket_ErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{apperr.New(apperr.ErrInsufficientFunds, "wallet balance 100.00 is below fare 800.00"), 402, "wallet balance 100.00 is below fare 800.00"},
		{apperr.New(apperr.ErrCapacityExceeded, "only 1 seats left"), 409, "only 1 seats left"},
		{errors.New("pq: connection reset"), 500, "internal error"},
	}
	for _, tc := range cases {
		h := Handlers{Booking: &fakeBooker{err: tc.err}}
		r := gin.New()
		r.POST("/tickets", identity("u1", "passenger"), h.BookTicket)

		w := do(r, http.MethodPost, "/tickets", `{"bus_id":"b1","seat_numbers":"1"}`)
		if w.Code != tc.code {
			t.Fatalf("expected %d, got %d", tc.code, w.Code)
		}
		if msg := errorBody(t, w); msg != tc.msg {
			t.Fatalf("expected message %q, got %q", tc.msg, msg)
		}
	}
}

func TestBookTicket_RequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := Handlers{Booking: &fakeBooker{}}
	r := gin.New()
	r.POST("/tickets", h.BookTicket)

	if w := do(r, http.MethodPost, "/tickets", `{}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestGetTicket_StaffViewer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ft := &fakeTickets{}
	h := Handlers{Tickets: ft}
	r := gin.New()
	r.GET("/tickets/:ticket_id", identity("admin-1", "staff"), h.GetTicket)

	if w := do(r, http.MethodGet, "/tickets/t1", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !ft.viewer.Staff || ft.viewer.UserID != "admin-1" {
		t.Fatalf("unexpected viewer %+v", ft.viewer)
	}
	if w := do(r, http.MethodGet, "/tickets/t2", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListTickets_UnknownFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := Handlers{Tickets: &fakeTickets{}}
	r := gin.New()
	r.GET("/tickets", identity("u1", "passenger"), h.ListTickets)

	if w := do(r, http.MethodGet, "/tickets?filter=Upcoming", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/tickets?filter=soon", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestTicketReceipt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := Handlers{Receipts: fakeReceipts{}}
	r := gin.New()
	r.GET("/tickets/:ticket_id/receipt", identity("u1", "passenger"), h.TicketReceipt)

	w := do(r, http.MethodGet, "/tickets/t1/receipt", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("expected pdf, got %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "ticket-t1.pdf") {
		t.Fatalf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}
}

func TestSearchBuses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ff := &fakeFleet{}
	h := Handlers{Fleet: ff}
	r := gin.New()
	r.GET("/buses/search", h.SearchBuses)

	w := do(r, http.MethodGet, "/buses/search?origin=Pune&destination=Goa&date=2026-07-02&sort=fare_low", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ff.query.Origin != "Pune" || ff.query.Sort != fleet.SortFareLow || ff.query.Date.Day() != 2 {
		t.Fatalf("unexpected query %+v", ff.query)
	}
	if w := do(r, http.MethodGet, "/buses/search?date=02-07-2026", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", w.Code)
	}
}

func TestLoginAndRefresh(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	accounts := &fakeAccounts{users: map[string]users.User{
		"u1": {ID: "u1", Email: "a@example.com", Role: "passenger"},
	}}
	h := Handlers{Auth: m, Accounts: accounts}
	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)

	if w := do(r, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"bad"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w := do(r, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"password1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp authResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// the role changes between login and refresh
	accounts.users["u1"] = users.User{ID: "u1", Email: "a@example.com", Role: "staff"}
	w = do(r, http.MethodPost, "/auth/refresh", `{"refresh_token":"`+resp.Tokens.RefreshToken+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := m.Verify(resp.Tokens.AccessToken, auth.TokenTypeAccess, time.Now())
	if err != nil || claims.Role != "staff" {
		t.Fatalf("expected refreshed staff token, got %+v, %v", claims, err)
	}

	if w := do(r, http.MethodPost, "/auth/refresh", `{"refresh_token":"`+resp.Tokens.AccessToken+`"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("access token must not refresh, got %d", w.Code)
	}
}

func TestIdempotency_PassesThroughWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	calls := 0
	r := gin.New()
	r.POST("/wallet/deposits", identity("u1", "passenger"), Idempotency(nil, "deposit", time.Hour), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/wallet/deposits", strings.NewReader(`{}`))
		req.Header.Set(HeaderIdempotencyKey, "k1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", w.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected both requests to run without a store, got %d", calls)
	}
}

func TestBusGate_NilAdmits(t *testing.T) {
	var g *BusGate
	release, ok := g.Acquire(context.Background(), "b1")
	if !ok {
		t.Fatalf("nil gate must admit")
	}
	release()

	release, ok = NewBusGate(nil, 5, time.Second).Acquire(context.Background(), "b1")
	if !ok {
		t.Fatalf("gate without redis must admit")
	}
	release()
}

type memoryIdempotency struct {
	records map[string][]byte
}

func (m *memoryIdempotency) Claim(ctx context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	if v, ok := m.records[key]; ok {
		if v == nil {
			return nil, false, utils.ErrIdempotencyInFlight
		}
		return v, false, nil
	}
	m.records[key] = nil
	return nil, true, nil
}

func (m *memoryIdempotency) Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	m.records[key] = response
	return nil
}

func (m *memoryIdempotency) Release(ctx context.Context, key string) error {
	delete(m.records, key)
	return nil
}

func TestIdempotency_ReplaysOnlyTheSameBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &memoryIdempotency{records: map[string][]byte{}}
	calls := 0
	r := gin.New()
	r.POST("/tickets", identity("u1", "passenger"), idempotency(store, "booking", time.Hour), func(c *gin.Context) {
		calls++
		var in map[string]string
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad body"})
			return
		}
		if in["bus_id"] == "full" {
			c.JSON(http.StatusConflict, gin.H{"error": "bus is full"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"bus_id": in["bus_id"]})
	})
	send := func(key, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderIdempotencyKey, key)
		r.ServeHTTP(w, req)
		return w
	}

	first := send("k1", `{"bus_id":"b1"}`)
	if first.Code != http.StatusCreated || !strings.Contains(first.Body.String(), `"b1"`) {
		t.Fatalf("first: %d %s", first.Code, first.Body.String())
	}
	again := send("k1", `{"bus_id":"b1"}`)
	if again.Code != http.StatusCreated || again.Header().Get(HeaderReplayed) != "true" || again.Body.String() != first.Body.String() {
		t.Fatalf("replay: %d %q %s", again.Code, again.Header().Get(HeaderReplayed), again.Body.String())
	}
	other := send("k1", `{"bus_id":"b2"}`)
	if other.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a reused key, got %d", other.Code)
	}
	if calls != 1 {
		t.Fatalf("handler should run once, ran %d times", calls)
	}

	if w := send("k2", `{"bus_id":"full"}`); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 from handler, got %d", w.Code)
	}
	if _, held := store.records[utils.IdempotencyKey("booking", "u1", "k2")]; held {
		t.Fatalf("failed request must release its key")
	}
}
