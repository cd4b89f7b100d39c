package auth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the engine can return. Callers branch
// on kinds (via errors.Is against the sentinel values below, or via Kind)
// instead of matching error strings.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindInvalidCredentials
	KindAccountDisabled
	KindAccountLocked
	KindInvalidRefreshToken
	KindDuplicateAccount
	KindNotFound
	KindTokenMalformed
	KindTokenExpired
	KindTokenBadSignature
	KindTokenUnsupported
	KindTransient
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAccountDisabled:
		return "account_disabled"
	case KindAccountLocked:
		return "account_locked"
	case KindInvalidRefreshToken:
		return "invalid_refresh_token"
	case KindDuplicateAccount:
		return "duplicate_account"
	case KindNotFound:
		return "not_found"
	case KindTokenMalformed:
		return "token_malformed"
	case KindTokenExpired:
		return "token_expired"
	case KindTokenBadSignature:
		return "token_bad_signature"
	case KindTokenUnsupported:
		return "token_unsupported"
	case KindTransient:
		return "transient"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the single error type the engine surfaces. Two Errors match
// through errors.Is when their kinds are equal, so the package-level
// sentinels double as match targets for wrapped instances.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidCredentials  = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrAccountDisabled     = &Error{Kind: KindAccountDisabled, Message: "account disabled"}
	ErrAccountLocked       = &Error{Kind: KindAccountLocked, Message: "account locked"}
	ErrInvalidRefreshToken = &Error{Kind: KindInvalidRefreshToken, Message: "invalid refresh token"}
	ErrDuplicateAccount    = &Error{Kind: KindDuplicateAccount, Message: "account already exists"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrTokenMalformed      = &Error{Kind: KindTokenMalformed, Message: "token malformed"}
	ErrTokenExpired        = &Error{Kind: KindTokenExpired, Message: "token expired"}
	ErrTokenBadSignature   = &Error{Kind: KindTokenBadSignature, Message: "token signature invalid"}
	ErrTokenUnsupported    = &Error{Kind: KindTokenUnsupported, Message: "token algorithm unsupported"}
	ErrTransient           = &Error{Kind: KindTransient, Message: "transient storage failure"}
	ErrEngineNotReady      = &Error{Kind: KindInternal, Message: "engine not fully configured"}
)

// ErrVersionConflict is returned by AccountStore.Save when the persisted
// version no longer matches the one being written. The engine retries once
// and then reports KindTransient.
var ErrVersionConflict = errors.New("account version conflict")

// Kind extracts the classification from any error returned by this package.
func Kind(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func wrapKind(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func transientErr(cause error) *Error {
	return wrapKind(KindTransient, "transient storage failure", cause)
}

func internalErr(msg string, cause error) *Error {
	return wrapKind(KindInternal, msg, cause)
}
