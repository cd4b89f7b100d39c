package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Validation failures are reported through these sentinels so callers can
// tell a tampered token from a stale one.
var (
	ErrMalformed            = errors.New("token malformed")
	ErrExpired              = errors.New("token expired")
	ErrBadSignature         = errors.New("token signature invalid")
	ErrUnsupportedAlgorithm = errors.New("token algorithm unsupported")
)

const refreshTokenType = "refresh"

// Config holds the signing material and lifetimes for issued tokens.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration

	// TimeFunc overrides the clock used for issuance and validation.
	// Nil means time.Now.
	TimeFunc func() time.Time
}

// Codec issues and validates HMAC-SHA-256 signed JWTs. Any other signing
// algorithm, including "none", is rejected as unsupported.
type Codec struct {
	config Config
	now    func() time.Time
}

// AccessClaims is the payload of an access token. Subject carries the
// username.
type AccessClaims struct {
	UserID string   `json:"userId"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token.
type RefreshClaims struct {
	UserID    string `json:"userId"`
	TokenType string `json:"tokenType"`
	jwt.RegisteredClaims
}

func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("signing secret must be at least 32 bytes")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer required")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("access TTL must be positive")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("leeway out of range")
	}

	now := cfg.TimeFunc
	if now == nil {
		now = time.Now
	}
	return &Codec{config: cfg, now: now}, nil
}

// IssueAccess signs an access token for the account and returns it with
// its expiry instant.
func (c *Codec) IssueAccess(accountID, username, email string, roles []string) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.config.AccessTTL)

	claims := AccessClaims{
		UserID: accountID,
		Email:  email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueRefresh signs a refresh token for the account and returns it with
// its expiry instant. The jti makes each issued token unique even for the
// same account within one clock tick.
func (c *Codec) IssueRefresh(accountID, username string) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.config.RefreshTTL)

	claims := RefreshClaims{
		UserID:    accountID,
		TokenType: refreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateAccess verifies signature, issuer and expiry, and returns the
// claims. Failures map onto the package sentinels.
func (c *Codec) ValidateAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrMalformed)
	}
	return claims, nil
}

// ValidateRefresh verifies a refresh token string. The ledger remains the
// authority on revocation; this only checks the cryptographic envelope.
func (c *Codec) ValidateRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != refreshTokenType {
		return nil, fmt.Errorf("%w: not a refresh token", ErrMalformed)
	}
	return claims, nil
}

// Expiry extracts the expiry instant without verifying the signature.
// Useful for housekeeping decisions only, never for trust.
func (c *Codec) Expiry(tokenStr string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: no expiry claim", ErrMalformed)
	}
	return claims.ExpiresAt.Time, nil
}

func (c *Codec) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuer(c.config.Issuer),
		jwt.WithExpirationRequired(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}

	_, err := jwt.ParseWithClaims(tokenStr, claims, c.keyFunc, options...)
	if err != nil {
		return classifyParseError(err)
	}
	return nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, t.Method.Alg())
	}
	return c.config.Secret, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		// Issuer mismatch and other claim failures land here. They are
		// structurally valid tokens that this service did not mint.
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
