package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Register creates a new enabled, unlocked account with the configured
// default role. Username and email must both be unused; either collision
// reports ErrDuplicateAccount, including the race where a concurrent
// registration wins between the existence check and the insert.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if username == "" || email == "" || req.Password == "" {
		return nil, wrapKind(KindInternal, "username, email and password are required", nil)
	}

	if taken, err := e.accounts.ExistsByUsername(ctx, username); err != nil {
		return nil, transientErr(err)
	} else if taken {
		return nil, e.registerDuplicate(ctx, username, "username_taken")
	}
	if taken, err := e.accounts.ExistsByEmail(ctx, email); err != nil {
		return nil, transientErr(err)
	} else if taken {
		return nil, e.registerDuplicate(ctx, username, "email_taken")
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, internalErr("password hashing failed", err)
	}

	now := e.clock()
	account := &Account{
		ID:                uuid.NewString(),
		Username:          username,
		Email:             email,
		PasswordHash:      hash,
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		PhoneNumber:       strings.TrimSpace(req.PhoneNumber),
		Enabled:           true,
		Roles:             []string{e.config.Account.DefaultRole},
		PasswordChangedAt: &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	created, err := e.accounts.Create(ctx, account)
	if errors.Is(err, ErrDuplicateAccount) {
		return nil, e.registerDuplicate(ctx, username, "insert_conflict")
	}
	if err != nil {
		return nil, transientErr(err)
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, created.ID, created.Username, nil, func() map[string]string {
		return map[string]string{"role": e.config.Account.DefaultRole}
	})
	return created, nil
}

func (e *Engine) registerDuplicate(ctx context.Context, username, reason string) error {
	e.metrics.Inc(MetricRegisterDuplicate)
	e.emitAudit(ctx, auditEventRegister, false, "", username, ErrDuplicateAccount, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrDuplicateAccount
}
