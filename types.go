package auth

import (
	"context"
	"time"
)

// Account is the persisted identity record. Stores are expected to bump
// Version on every successful Save and reject writes carrying a stale one.
type Account struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	PhoneNumber       string
	Enabled           bool
	Locked            bool
	FailedAttempts    int
	LastLoginAt       *time.Time
	PasswordChangedAt *time.Time
	Roles             []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int64
}

// AccountStore is the persistence boundary for accounts. Implementations
// must be safe for concurrent use.
//
// Save performs an optimistic write: it must persist the record only when
// the stored version equals account.Version, increment the version, and
// return ErrVersionConflict otherwise. Find and Exists lookups return
// ErrNotFound (never a nil account) when nothing matches.
type AccountStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, account *Account) (*Account, error)
	Save(ctx context.Context, account *Account) (*Account, error)
}

// RoleResolver expands an account's role names into the full claim set
// embedded in access tokens (roles plus any derived permissions).
type RoleResolver interface {
	RolesAndPermissionsFor(ctx context.Context, account *Account) ([]string, error)
}

// Clock supplies the engine's notion of now. Tests inject a fixed or
// stepping clock; production uses time.Now.
type Clock func() time.Time

// RegisterRequest carries the fields accepted at signup.
type RegisterRequest struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// AccountSummary is the caller-facing projection of an account, embedded
// in AuthResult. It never carries the password hash.
type AccountSummary struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	Roles       []string   `json:"roles"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// AuthResult is returned by Login and Refresh. ExpiresIn is the access
// token lifetime in seconds; ExpiresAt is the matching absolute instant.
type AuthResult struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	TokenType    string         `json:"tokenType"`
	ExpiresIn    int64          `json:"expiresIn"`
	ExpiresAt    time.Time      `json:"expiresAt"`
	Account      AccountSummary `json:"account"`
}

// TokenTypeBearer is the scheme reported in AuthResult.TokenType.
const TokenTypeBearer = "Bearer"

func summaryOf(account *Account) AccountSummary {
	roles := make([]string, len(account.Roles))
	copy(roles, account.Roles)
	return AccountSummary{
		ID:          account.ID,
		Username:    account.Username,
		Email:       account.Email,
		FirstName:   account.FirstName,
		LastName:    account.LastName,
		Roles:       roles,
		LastLoginAt: account.LastLoginAt,
	}
}
