package auth

import (
	"errors"
	"time"
)

// Config groups all engine settings. Build it once, validate through the
// Builder, and treat it as immutable afterwards.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Lockout  LockoutConfig
	Account  AccountConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

type JWTConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type LockoutConfig struct {
	// MaxFailedAttempts is the number of consecutive failures that locks
	// the account. Zero means use DefaultMaxFailedAttempts.
	MaxFailedAttempts int
}

type AccountConfig struct {
	DefaultRole string
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled bool
}

const (
	// DefaultMaxFailedAttempts locks an account after five consecutive
	// failed logins.
	DefaultMaxFailedAttempts = 5

	// DefaultRole is assigned to newly registered accounts when the
	// config does not override it.
	DefaultRole = "ROLE_USER"

	minJWTSecretBytes = 32
)

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts: DefaultMaxFailedAttempts,
		},
		Account: AccountConfig{
			DefaultRole: DefaultRole,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < minJWTSecretBytes {
		return errors.New("jwt secret must be at least 32 bytes")
	}
	if c.JWT.Issuer == "" {
		return errors.New("jwt issuer required")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("jwt access TTL must be positive")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("jwt refresh TTL must exceed access TTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("jwt leeway out of range")
	}
	if c.Lockout.MaxFailedAttempts < 0 {
		return errors.New("lockout threshold cannot be negative")
	}
	if c.Account.DefaultRole == "" {
		return errors.New("default role required")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("audit buffer size cannot be negative")
	}
	return nil
}

func (c *Config) lockoutThreshold() int {
	if c.Lockout.MaxFailedAttempts == 0 {
		return DefaultMaxFailedAttempts
	}
	return c.Lockout.MaxFailedAttempts
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
