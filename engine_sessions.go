package auth

import (
	"context"
	"errors"
)

// Logout revokes every refresh token the account holds. Already-revoked
// tokens are left as they are, so repeating a logout is harmless. Access
// tokens stay valid until expiry; only the refresh path is cut.
func (e *Engine) Logout(ctx context.Context, identifier string) error {
	account, err := e.accounts.FindByIdentifier(ctx, identifier)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return transientErr(err)
	}

	if err := e.tokens.RevokeAll(ctx, account.ID, e.clock()); err != nil {
		return transientErr(err)
	}

	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, account.ID, account.Username, nil, nil)
	return nil
}

// RevokeAllSessions revokes every refresh token for the account ID. Used
// by admin flows and after password changes.
func (e *Engine) RevokeAllSessions(ctx context.Context, accountID string) error {
	account, err := e.accounts.FindByID(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return transientErr(err)
	}

	if err := e.tokens.RevokeAll(ctx, account.ID, e.clock()); err != nil {
		return transientErr(err)
	}

	e.metrics.Inc(MetricSessionsRevoked)
	e.emitAudit(ctx, auditEventSessionsRevoke, true, account.ID, account.Username, nil, nil)
	return nil
}

// PurgeExpiredTokens removes ledger leftovers whose tokens can never be
// exchanged again. Meant to run from a periodic housekeeping job.
func (e *Engine) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	purged, err := e.tokens.PurgeExpired(ctx, e.clock())
	if err != nil {
		return purged, transientErr(err)
	}
	e.metrics.Add(MetricTokensPurged, uint64(purged))
	return purged, nil
}
