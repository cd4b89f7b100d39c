// Package ledger tracks issued refresh tokens and their lifecycle. A token
// is usable exactly once: rotation revokes it atomically, so a replayed or
// concurrently raced token can never mint a second session.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by FindByToken when no record matches.
var ErrNotFound = errors.New("refresh token not found")

// RefreshToken is one issued refresh credential. Revocation is terminal;
// RevokedAt keeps the first revocation instant even if Revoke is repeated.
type RefreshToken struct {
	ID        string
	AccountID string
	Token     string
	ExpiresAt time.Time
	Revoked   bool
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Active reports whether the token may still be exchanged at the given
// instant.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Ledger is the storage boundary for refresh tokens.
//
// RevokeIfActive is the rotation primitive: it atomically flips an active
// token to revoked and reports true only to the single caller that
// performed the transition. Every other caller (concurrent rotation,
// replay of an already-spent token, expired token) gets false with a nil
// error. Revoke is the unconditional idempotent form used by bulk paths.
type Ledger interface {
	Store(ctx context.Context, token *RefreshToken) error
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)
	Revoke(ctx context.Context, token string, now time.Time) error
	RevokeIfActive(ctx context.Context, token string, now time.Time) (bool, error)
	RevokeAll(ctx context.Context, accountID string, now time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
