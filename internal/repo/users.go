package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// User is a registered customer or administrator. PasswordHash is empty for
// accounts created through an OAuth provider.
type User struct {
	ID           pgtype.UUID
	Email        string
	Name         string
	PasswordHash pgtype.Text
	Phone        pgtype.Text
	Picture      pgtype.Text
	Provider     string
	Role         string
	CreatedAt    pgtype.Timestamptz
}

// Users persists accounts.
type Users struct {
	DB DB
}

const userColumns = `id, email, name, password_hash, phone, picture, provider, role, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Phone, &u.Picture,
		&u.Provider, &u.Role, &u.CreatedAt)
	return u, err
}

// Create inserts a user. Emails are stored lower-cased.
func (r Users) Create(ctx context.Context, u User) (User, error) {
	if !u.ID.Valid {
		u.ID = NewUUID()
	}
	if u.Role == "" {
		u.Role = "customer"
	}
	if u.Provider == "" {
		u.Provider = "local"
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO users (id, email, name, password_hash, phone, picture, provider, role)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8)
		RETURNING `+userColumns,
		u.ID, strings.TrimSpace(u.Email), u.Name, u.PasswordHash, u.Phone, u.Picture,
		u.Provider, u.Role)
	return scanUser(row)
}

// GetByEmail matches a user by lower-cased email.
func (r Users) GetByEmail(ctx context.Context, email string) (User, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = lower($1)`, strings.TrimSpace(email))
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// Get loads a user by identifier.
func (r Users) Get(ctx context.Context, id pgtype.UUID) (User, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}
