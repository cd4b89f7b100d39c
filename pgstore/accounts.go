// Package pgstore implements the auth storage interfaces on PostgreSQL
// via pgx connection pools.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	auth "github.com/niyiment/vaccination-auth"
)

const uniqueViolation = "23505"

const accountColumns = `id, username, email, password_hash, first_name, last_name,
	phone_number, enabled, locked, failed_attempts, last_login_at,
	password_changed_at, roles, created_at, updated_at, version`

// AccountStore persists accounts in the accounts table. Saves are guarded
// by an optimistic version column: the UPDATE only lands when the stored
// version matches the one the caller read.
type AccountStore struct {
	pool *pgxpool.Pool
}

func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

func (s *AccountStore) FindByIdentifier(ctx context.Context, identifier string) (*auth.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE username = $1 OR email = lower($1)`, accountColumns)
	return s.queryOne(ctx, query, identifier)
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)
	return s.queryOne(ctx, query, id)
}

func (s *AccountStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username)
}

func (s *AccountStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = lower($1))`, email)
}

func (s *AccountStore) Create(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	query := `
		INSERT INTO accounts (id, username, email, password_hash, first_name, last_name,
			phone_number, enabled, locked, failed_attempts, last_login_at,
			password_changed_at, roles, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 0)`
	_, err := s.pool.Exec(ctx, query,
		account.ID, account.Username, account.Email, account.PasswordHash,
		account.FirstName, account.LastName, account.PhoneNumber,
		account.Enabled, account.Locked, account.FailedAttempts,
		account.LastLoginAt, account.PasswordChangedAt, account.Roles,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, auth.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	out := *account
	out.Version = 0
	return &out, nil
}

func (s *AccountStore) Save(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	query := `
		UPDATE accounts SET
			password_hash = $3, first_name = $4, last_name = $5, phone_number = $6,
			enabled = $7, locked = $8, failed_attempts = $9, last_login_at = $10,
			password_changed_at = $11, roles = $12, updated_at = $13,
			version = version + 1
		WHERE id = $1 AND version = $2`
	tag, err := s.pool.Exec(ctx, query,
		account.ID, account.Version,
		account.PasswordHash, account.FirstName, account.LastName, account.PhoneNumber,
		account.Enabled, account.Locked, account.FailedAttempts, account.LastLoginAt,
		account.PasswordChangedAt, account.Roles, account.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Row exists with a newer version, or was deleted underneath us.
		// Either way the caller must re-read before writing again.
		return nil, auth.ErrVersionConflict
	}

	out := *account
	out.Version = account.Version + 1
	return &out, nil
}

func (s *AccountStore) queryOne(ctx context.Context, query string, arg any) (*auth.Account, error) {
	account := &auth.Account{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash,
		&account.FirstName, &account.LastName, &account.PhoneNumber,
		&account.Enabled, &account.Locked, &account.FailedAttempts,
		&account.LastLoginAt, &account.PasswordChangedAt, &account.Roles,
		&account.CreatedAt, &account.UpdatedAt, &account.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	return account, nil
}

func (s *AccountStore) exists(ctx context.Context, query string, arg any) (bool, error) {
	var found bool
	if err := s.pool.QueryRow(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("existence check: %w", err)
	}
	return found, nil
}

var _ auth.AccountStore = (*AccountStore)(nil)
