package auth

import "context"

// UnlockAccount clears the lock flag and the failure counter.
func (e *Engine) UnlockAccount(ctx context.Context, accountID string) error {
	return e.changeStatus(ctx, accountID, "unlock", func(a *Account) {
		e.lockout.unlock(a)
	})
}

// LockAccount locks the account immediately, independent of the failure
// counter. Outstanding refresh tokens are revoked so the lock takes effect
// at the next token exchange.
func (e *Engine) LockAccount(ctx context.Context, accountID string) error {
	if err := e.changeStatus(ctx, accountID, "lock", func(a *Account) {
		a.Locked = true
	}); err != nil {
		return err
	}
	return e.revokeQuietly(ctx, accountID)
}

// DisableAccount turns the account off entirely. Like LockAccount it also
// cuts the refresh path.
func (e *Engine) DisableAccount(ctx context.Context, accountID string) error {
	if err := e.changeStatus(ctx, accountID, "disable", func(a *Account) {
		a.Enabled = false
	}); err != nil {
		return err
	}
	return e.revokeQuietly(ctx, accountID)
}

// EnableAccount re-enables a disabled account and resets lockout state, so
// an operator fixing an account does not need two calls.
func (e *Engine) EnableAccount(ctx context.Context, accountID string) error {
	return e.changeStatus(ctx, accountID, "enable", func(a *Account) {
		a.Enabled = true
		e.lockout.unlock(a)
	})
}

func (e *Engine) changeStatus(ctx context.Context, accountID, action string, mutate func(*Account)) error {
	updated, err := e.applyAccountUpdate(ctx, accountID, mutate)
	if err != nil {
		return err
	}
	e.emitAudit(ctx, auditEventStatusChange, true, updated.ID, updated.Username, nil, func() map[string]string {
		return map[string]string{"action": action}
	})
	return nil
}

func (e *Engine) revokeQuietly(ctx context.Context, accountID string) error {
	if err := e.tokens.RevokeAll(ctx, accountID, e.clock()); err != nil {
		return transientErr(err)
	}
	return nil
}
