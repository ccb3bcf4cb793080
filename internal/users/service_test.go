package users

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/internal/dbtest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, admins ...string) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := dbtest.New(t)
	svc := NewService(db, admins)
	svc.cost = bcrypt.MinCost
	svc.clock = func() time.Time { return testNow }
	return svc, mock
}

func TestRegister_CreatesUserAndWallet(t *testing.T) {
	svc, mock := newTestService(t, "Ops@Example.com")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "ops@example.com", "Asha Rao", sqlmock.AnyArg(), "staff", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO wallets`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), dbtest.Decimal("0"), testNow, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := svc.Register(context.Background(), RegisterInput{
		Email: "  OPS@example.com ", FullName: "Asha Rao", Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != "staff" {
		t.Fatalf("expected staff role for admin email, got %q", u.Role)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")) != nil {
		t.Fatalf("password hash does not verify")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@example.com", FullName: "A", Password: "password1",
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	cases := []RegisterInput{
		{Email: "not-an-email", FullName: "A", Password: "password1"},
		{Email: "a@example.com", FullName: " ", Password: "password1"},
		{Email: "a@example.com", FullName: "A", Password: "short"},
	}
	for _, in := range cases {
		if _, err := svc.Register(context.Background(), in); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("%+v: expected validation error, got %v", in, err)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	svc, mock := newTestService(t)
	hash, _ := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	cols := []string{"id", "email", "full_name", "password_hash", "role", "created_at"}
	q := regexp.QuoteMeta(`FROM users WHERE email = $1`)

	mock.ExpectQuery(q).WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", "a@example.com", "A", string(hash), "passenger", testNow))
	u, err := svc.Authenticate(context.Background(), LoginInput{Email: "A@example.com", Password: "password1"})
	if err != nil || u.ID != "u1" {
		t.Fatalf("expected u1, got %+v, %v", u, err)
	}

	mock.ExpectQuery(q).WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", "a@example.com", "A", string(hash), "passenger", testNow))
	if _, err := svc.Authenticate(context.Background(), LoginInput{Email: "a@example.com", Password: "wrong-pass"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for wrong password, got %v", err)
	}

	mock.ExpectQuery(q).WithArgs("b@example.com").WillReturnRows(sqlmock.NewRows(cols))
	if _, err := svc.Authenticate(context.Background(), LoginInput{Email: "b@example.com", Password: "password1"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown email, got %v", err)
	}
}
