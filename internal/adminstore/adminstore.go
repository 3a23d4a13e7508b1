// Package adminstore persists the dashboard's administrator accounts —
// the only state spec.md's "does not persist state across restarts" does
// not apply to (the restriction is about document-push state, not the
// operator login surface). Adapted from the teacher's Postgres
// repository-pattern shape (internal/repository/postgres/user_repository.go),
// retargeted at an admin_accounts table.
package adminstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aras-services/gsa-adaptor/pkg/password"
)

// ErrNotFound is returned when no admin account matches.
var ErrNotFound = errors.New("adminstore: account not found")

// Account is one dashboard administrator.
type Account struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store is a Postgres-backed admin-account repository.
type Store struct {
	db *pgxpool.Pool
}

// New wraps an existing pgx pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Create inserts a new admin account with a freshly bcrypt-hashed password.
func (s *Store) Create(ctx context.Context, username, plaintextPassword string) (*Account, error) {
	hash, err := password.HashPassword(plaintextPassword)
	if err != nil {
		return nil, err
	}
	acc := &Account{ID: uuid.New(), Username: username, PasswordHash: hash, CreatedAt: time.Now(), UpdatedAt: time.Now()}

	_, err = s.db.Exec(ctx, `
		INSERT INTO admin_accounts (id, username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		acc.ID, acc.Username, acc.PasswordHash, acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// GetByUsername looks up an account by its login name.
func (s *Store) GetByUsername(ctx context.Context, username string) (*Account, error) {
	var acc Account
	err := s.db.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at, updated_at
		FROM admin_accounts WHERE username = $1`, username).
		Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// Verify checks plaintextPassword against the stored account's hash.
func (s *Store) Verify(ctx context.Context, username, plaintextPassword string) (*Account, error) {
	acc, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := password.VerifyPassword(acc.PasswordHash, plaintextPassword); err != nil {
		return nil, errors.New("adminstore: invalid credentials")
	}
	return acc, nil
}

// UpdatePassword rehashes and stores a new password for username.
func (s *Store) UpdatePassword(ctx context.Context, username, newPlaintextPassword string) error {
	hash, err := password.HashPassword(newPlaintextPassword)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE admin_accounts SET password_hash = $1, updated_at = $2 WHERE username = $3`,
		hash, time.Now(), username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
