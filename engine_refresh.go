package auth

import (
	"context"
	"errors"

	"github.com/niyiment/vaccination-auth/ledger"
)

// Refresh exchanges a one-time refresh token for a fresh pair. The ledger,
// not the JWT envelope, is the authority: the token must exist there and
// still be active, and the active-to-revoked transition is atomic, so of
// any number of concurrent calls with the same token exactly one wins.
//
// A token that was already spent is treated as a possible theft signal: it
// fails with ErrInvalidRefreshToken and emits a reuse audit event.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	record, err := e.tokens.FindByToken(ctx, refreshToken)
	if errors.Is(err, ledger.ErrNotFound) {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventTokenRefresh, false, "", "", ErrInvalidRefreshToken, func() map[string]string {
			return map[string]string{"reason": "unknown_token"}
		})
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, transientErr(err)
	}

	now := e.clock()
	if !record.Active(now) {
		e.metrics.Inc(MetricRefreshFailure)
		if record.Revoked {
			e.metrics.Inc(MetricRefreshReuseDetected)
			e.emitAudit(ctx, auditEventRefreshReuse, false, record.AccountID, "", ErrInvalidRefreshToken, func() map[string]string {
				return map[string]string{"token_id": record.ID}
			})
		} else {
			e.emitAudit(ctx, auditEventTokenRefresh, false, record.AccountID, "", ErrInvalidRefreshToken, func() map[string]string {
				return map[string]string{"reason": "expired"}
			})
		}
		return nil, ErrInvalidRefreshToken
	}

	rotated, err := e.tokens.RevokeIfActive(ctx, refreshToken, now)
	if err != nil {
		return nil, transientErr(err)
	}
	if !rotated {
		// Lost the rotation race, or the token was spent between the read
		// above and now. Either way this caller gets nothing.
		e.metrics.Inc(MetricRefreshFailure)
		e.metrics.Inc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, auditEventRefreshReuse, false, record.AccountID, "", ErrInvalidRefreshToken, func() map[string]string {
			return map[string]string{"token_id": record.ID}
		})
		return nil, ErrInvalidRefreshToken
	}

	account, err := e.accounts.FindByID(ctx, record.AccountID)
	if errors.Is(err, ErrNotFound) {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, transientErr(err)
	}

	if err := e.lockout.precheck(account); err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventTokenRefresh, false, account.ID, account.Username, err, func() map[string]string {
			return map[string]string{"reason": Kind(err).String()}
		})
		return nil, err
	}

	result, err := e.issueTokenPair(ctx, account)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventTokenRefresh, true, account.ID, account.Username, nil, func() map[string]string {
		return map[string]string{"rotated_token_id": record.ID}
	})
	return result, nil
}
