package auth

import (
	"errors"
	"time"

	"github.com/niyiment/vaccination-auth/ledger"
	"github.com/niyiment/vaccination-auth/password"
	"github.com/niyiment/vaccination-auth/token"
)

// Builder assembles an Engine. Every setter returns the builder for
// chaining; Build validates the whole configuration once and can only be
// called one time.
type Builder struct {
	config Config

	accounts  AccountStore
	roles     RoleResolver
	tokens    ledger.Ledger
	auditSink AuditSink
	clock     Clock

	built bool
}

func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the default configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

func (b *Builder) WithRoleResolver(resolver RoleResolver) *Builder {
	b.roles = resolver
	return b
}

// WithRoles installs a StaticRoleResolver built from the given
// role-to-permissions table.
func (b *Builder) WithRoles(rolePermissions map[string][]string) *Builder {
	b.roles = NewStaticRoleResolver(rolePermissions)
	return b
}

func (b *Builder) WithLedger(l ledger.Ledger) *Builder {
	b.tokens = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine's time source. Tests use this to step
// through token lifetimes deterministically.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.roles == nil {
		return nil, errors.New("role resolver required")
	}
	if b.tokens == nil {
		return nil, errors.New("refresh token ledger required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(token.Config{
		Secret:     cloneBytes(cfg.JWT.Secret),
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Leeway:     cfg.JWT.Leeway,
		TimeFunc:   clock,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		accounts: b.accounts,
		roles:    b.roles,
		tokens:   b.tokens,
		codec:    codec,
		hasher:   hasher,
		lockout:  lockoutPolicy{threshold: cfg.lockoutThreshold()},
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:  NewMetrics(cfg.Metrics),
		clock:    clock,
	}

	b.built = true
	return engine, nil
}
