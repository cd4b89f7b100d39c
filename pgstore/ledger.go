package pgstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niyiment/vaccination-auth/ledger"
)

// Ledger persists refresh tokens in the refresh_tokens table. Tokens are
// stored by SHA-256 hash; the opaque JWT string itself never reaches the
// database. Rotation relies on a conditional UPDATE, so the rows-affected
// count decides the single winner under concurrency.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (l *Ledger) Store(ctx context.Context, token *ledger.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, account_id, token_hash, expires_at, revoked, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, false, NULL, $5)`
	_, err := l.pool.Exec(ctx, query,
		token.ID, token.AccountID, tokenHash(token.Token), token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (l *Ledger) FindByToken(ctx context.Context, token string) (*ledger.RefreshToken, error) {
	query := `
		SELECT id, account_id, expires_at, revoked, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = $1`
	record := &ledger.RefreshToken{Token: token}
	err := l.pool.QueryRow(ctx, query, tokenHash(token)).Scan(
		&record.ID, &record.AccountID, &record.ExpiresAt,
		&record.Revoked, &record.RevokedAt, &record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return record, nil
}

func (l *Ledger) Revoke(ctx context.Context, token string, now time.Time) error {
	query := `
		UPDATE refresh_tokens SET revoked = true, revoked_at = COALESCE(revoked_at, $2)
		WHERE token_hash = $1 AND NOT revoked`
	if _, err := l.pool.Exec(ctx, query, tokenHash(token), now); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (l *Ledger) RevokeIfActive(ctx context.Context, token string, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens SET revoked = true, revoked_at = $2
		WHERE token_hash = $1 AND NOT revoked AND expires_at > $2`
	tag, err := l.pool.Exec(ctx, query, tokenHash(token), now)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (l *Ledger) RevokeAll(ctx context.Context, accountID string, now time.Time) error {
	query := `
		UPDATE refresh_tokens SET revoked = true, revoked_at = $2
		WHERE account_id = $1 AND NOT revoked`
	if _, err := l.pool.Exec(ctx, query, accountID, now); err != nil {
		return fmt.Errorf("revoke account tokens: %w", err)
	}
	return nil
}

func (l *Ledger) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := l.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ ledger.Ledger = (*Ledger)(nil)
