package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/niyiment/vaccination-auth/ledger"
	"github.com/niyiment/vaccination-auth/password"
	"github.com/niyiment/vaccination-auth/token"
)

// Engine orchestrates credential verification, lockout, token issuance and
// refresh rotation over the injected collaborators. Construct it through
// the Builder; a zero Engine is not usable.
//
// All methods are safe for concurrent use provided the injected store,
// resolver and ledger are.
type Engine struct {
	config   Config
	accounts AccountStore
	roles    RoleResolver
	tokens   ledger.Ledger
	codec    *token.Codec
	hasher   *password.Hasher
	lockout  lockoutPolicy
	audit    *auditDispatcher
	metrics  *Metrics
	clock    Clock
}

// Login verifies credentials for a username or email and returns a fresh
// token pair.
//
// Status checks run before the password is touched, so a disabled or
// locked account learns nothing about credential correctness. A wrong
// password persists the failure counter even though the call errors, and
// the failure that crosses the lockout threshold reports ErrAccountLocked
// rather than ErrInvalidCredentials. An unknown identifier is
// indistinguishable from a wrong password.
func (e *Engine) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	account, err := e.accounts.FindByIdentifier(ctx, identifier)
	if errors.Is(err, ErrNotFound) {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", identifier, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "unknown_identifier"}
		})
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, transientErr(err)
	}

	if err := e.lockout.precheck(account); err != nil {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, account.Username, err, func() map[string]string {
			return map[string]string{"reason": Kind(err).String()}
		})
		return nil, err
	}

	ok, verr := e.hasher.Verify(password, account.PasswordHash)
	if verr != nil {
		return nil, internalErr("password verification failed", verr)
	}
	if !ok {
		var crossedThreshold, lockedNow bool
		if _, uerr := e.applyAccountUpdate(ctx, account.ID, func(a *Account) {
			crossedThreshold = e.lockout.recordFailure(a)
			lockedNow = a.Locked
		}); uerr != nil {
			return nil, uerr
		}

		if crossedThreshold {
			e.metrics.Inc(MetricAccountLocked)
			e.emitAudit(ctx, auditEventAccountLocked, false, account.ID, account.Username, ErrAccountLocked, func() map[string]string {
				return map[string]string{"threshold_reached": "true"}
			})
		} else {
			e.metrics.Inc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, account.Username, ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"reason": "bad_password"}
			})
		}
		if lockedNow {
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	updated, uerr := e.applyAccountUpdate(ctx, account.ID, func(a *Account) {
		e.lockout.recordSuccess(a, e.clock())
	})
	if uerr != nil {
		return nil, uerr
	}

	result, err := e.issueTokenPair(ctx, updated)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, updated.ID, updated.Username, nil, nil)
	return result, nil
}

// Validate checks an access token's signature, issuer and expiry and
// returns its claims. It never consults the account store; access tokens
// are self-contained until they expire.
func (e *Engine) Validate(_ context.Context, accessToken string) (*token.AccessClaims, error) {
	claims, err := e.codec.ValidateAccess(accessToken)
	if err != nil {
		return nil, mapTokenError(err)
	}
	return claims, nil
}

// Metrics exposes the engine's counters for scraping.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Close flushes the audit pipeline. The engine must not be used after.
func (e *Engine) Close() {
	e.audit.Close()
}

// issueTokenPair resolves role claims, signs the pair and records the
// refresh token in the ledger.
func (e *Engine) issueTokenPair(ctx context.Context, account *Account) (*AuthResult, error) {
	claims, err := e.roles.RolesAndPermissionsFor(ctx, account)
	if err != nil {
		return nil, internalErr("role resolution failed", err)
	}

	access, accessExpiry, err := e.codec.IssueAccess(account.ID, account.Username, account.Email, claims)
	if err != nil {
		return nil, internalErr("access token issuance failed", err)
	}

	refresh, refreshExpiry, err := e.codec.IssueRefresh(account.ID, account.Username)
	if err != nil {
		return nil, internalErr("refresh token issuance failed", err)
	}

	record := &ledger.RefreshToken{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Token:     refresh,
		ExpiresAt: refreshExpiry,
		CreatedAt: e.clock(),
	}
	if err := e.tokens.Store(ctx, record); err != nil {
		return nil, transientErr(err)
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(e.config.JWT.AccessTTL.Seconds()),
		ExpiresAt:    accessExpiry,
		Account:      summaryOf(account),
	}, nil
}

// applyAccountUpdate re-reads the account, applies mutate and saves it
// under optimistic concurrency. A lost race is retried once against fresh
// state; a second loss surfaces as KindTransient so no increment is ever
// silently dropped.
func (e *Engine) applyAccountUpdate(ctx context.Context, id string, mutate func(*Account)) (*Account, error) {
	for attempt := 0; attempt < 2; attempt++ {
		account, err := e.accounts.FindByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err != nil {
			return nil, transientErr(err)
		}

		mutate(account)
		account.UpdatedAt = e.clock()

		saved, err := e.accounts.Save(ctx, account)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, transientErr(err)
		}
	}
	return nil, wrapKind(KindTransient, "account update lost optimistic race twice", ErrVersionConflict)
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return wrapKind(KindTokenExpired, "token expired", err)
	case errors.Is(err, token.ErrBadSignature):
		return wrapKind(KindTokenBadSignature, "token signature invalid", err)
	case errors.Is(err, token.ErrUnsupportedAlgorithm):
		return wrapKind(KindTokenUnsupported, "token algorithm unsupported", err)
	default:
		return wrapKind(KindTokenMalformed, "token malformed", err)
	}
}
