package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bus-booking/internal/apperr"
	"bus-booking/internal/rbac"
	"bus-booking/internal/wallet"
	"bus-booking/pkg/logger"
	"bus-booking/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var validate = validator.New()

type Service struct {
	db         *sql.DB
	adminEmail map[string]struct{}
	cost       int
	clock      func() time.Time
}

// NewService builds the account service. Emails in adminEmails register as staff.
func NewService(db *sql.DB, adminEmails []string) *Service {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[normalizeEmail(e)] = struct{}{}
	}
	return &Service{db: db, adminEmail: admins, cost: bcrypt.DefaultCost, clock: time.Now}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validate.Struct(in); err != nil {
		return User{}, apperr.FromValidation(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		FullName:     in.FullName,
		Role:         rbac.RolePassenger,
		PasswordHash: string(hash),
		CreatedAt:    s.clock().UTC(),
	}
	if _, ok := s.adminEmail[u.Email]; ok {
		u.Role = rbac.RoleStaff
	}

	err = utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertTx(ctx, tx, u); err != nil {
			if utils.IsUniqueViolation(err) {
				return apperr.New(apperr.ErrConflict, "email %s is already registered", u.Email)
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if _, err := wallet.CreateTx(ctx, tx, u.ID, u.CreatedAt); err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}

	logger.From(ctx).Info("user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Authenticate checks credentials. Unknown email and wrong password look the same.
func (s *Service) Authenticate(ctx context.Context, in LoginInput) (User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return User{}, apperr.FromValidation(err)
	}

	u, err := getByEmail(ctx, s.db, in.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return User{}, apperr.New(apperr.ErrUnauthorized, "invalid email or password")
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return User{}, apperr.New(apperr.ErrUnauthorized, "invalid email or password")
	}
	return u, nil
}

// Get loads a user; token refresh uses it to pick up role changes.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return getByID(ctx, s.db, id)
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }
