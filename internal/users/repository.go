package users

import (
	"context"
	"database/sql"
	"errors"

	"bus-booking/internal/apperr"
	"bus-booking/pkg/utils"
)

const userColumns = `id, email, full_name, password_hash, role, created_at`

func scanUser(row *sql.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.New(apperr.ErrNotFound, "user not found")
		}
		return User{}, err
	}
	return u, nil
}

func getByEmail(ctx context.Context, q utils.Querier, email string) (User, error) {
	return scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func getByID(ctx context.Context, q utils.Querier, id string) (User, error) {
	return scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func insertTx(ctx context.Context, tx *sql.Tx, u User) error {
	const q = `
INSERT INTO users (id, email, full_name, password_hash, role, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	_, err := tx.ExecContext(ctx, q, u.ID, u.Email, u.FullName, u.PasswordHash, u.Role, u.CreatedAt)
	return err
}
