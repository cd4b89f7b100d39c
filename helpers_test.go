package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/niyiment/vaccination-auth/ledger"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fastPasswordConfig keeps Argon2 cheap so the suite stays quick.
func fastPasswordConfig() PasswordConfig {
	return PasswordConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.Secret = testSecret
	cfg.JWT.Issuer = "vaccination-auth-test"
	cfg.Password = fastPasswordConfig()
	return cfg
}

// fakeClock is a manually advanced time source shared by the engine and
// the assertions.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memAccountStore is an in-memory AccountStore with the same optimistic
// versioning contract the Postgres store enforces.
type memAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*Account // by ID
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{accounts: make(map[string]*Account)}
}

func copyAccount(a *Account) *Account {
	out := *a
	out.Roles = append([]string(nil), a.Roles...)
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		out.LastLoginAt = &t
	}
	if a.PasswordChangedAt != nil {
		t := *a.PasswordChangedAt
		out.PasswordChangedAt = &t
	}
	return &out
}

func (s *memAccountStore) FindByIdentifier(_ context.Context, identifier string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Username == identifier || a.Email == strings.ToLower(identifier) {
			return copyAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memAccountStore) FindByID(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAccount(a), nil
}

func (s *memAccountStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *memAccountStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == strings.ToLower(email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memAccountStore) Create(_ context.Context, account *Account) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Username == account.Username || a.Email == account.Email {
			return nil, ErrDuplicateAccount
		}
	}
	stored := copyAccount(account)
	stored.Version = 0
	s.accounts[stored.ID] = stored
	return copyAccount(stored), nil
}

func (s *memAccountStore) Save(_ context.Context, account *Account) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[account.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if current.Version != account.Version {
		return nil, ErrVersionConflict
	}
	stored := copyAccount(account)
	stored.Version = account.Version + 1
	s.accounts[account.ID] = stored
	return copyAccount(stored), nil
}

// testEnv bundles the engine with its collaborators for assertions.
type testEnv struct {
	engine *Engine
	store  *memAccountStore
	ledger *ledger.RedisLedger
	clock  *fakeClock
	sink   *ChannelSink
}

func newTestEngine(t *testing.T, cfg Config) (*testEnv, func()) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := newMemAccountStore()
	clock := newFakeClock()
	sink := NewChannelSink(1024)
	tokenLedger := ledger.NewRedisLedger(client, "authtest:")

	engine, err := New().
		WithConfig(cfg).
		WithAccountStore(store).
		WithRoles(map[string][]string{
			"ROLE_USER":  {"vaccination:read"},
			"ROLE_ADMIN": {"vaccination:read", "vaccination:write", "accounts:manage"},
		}).
		WithLedger(tokenLedger).
		WithAuditSink(sink).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	done := func() {
		engine.Close()
		_ = client.Close()
	}
	return &testEnv{engine: engine, store: store, ledger: tokenLedger, clock: clock, sink: sink}, done
}

// seedAccount registers an account directly through the engine so the
// stored hash matches the engine's hasher.
func seedAccount(t *testing.T, env *testEnv, username, email, password string) *Account {
	t.Helper()
	account, err := env.engine.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("seed register %q failed: %v", username, err)
	}
	return account
}

// drainEvents collects everything currently queued on the channel sink.
func drainEvents(env *testEnv) []AuditEvent {
	var events []AuditEvent
	for {
		select {
		case ev := <-env.sink.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

// waitForEvent blocks until the sink delivers an event of the given type.
// Dispatch is asynchronous, so assertions on audit output must wait.
func waitForEvent(t *testing.T, env *testEnv, eventType string) AuditEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-env.sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for audit event %q", eventType)
		}
	}
}

func hasEvent(events []AuditEvent, eventType string) bool {
	for _, ev := range events {
		if ev.EventType == eventType {
			return true
		}
	}
	return false
}
