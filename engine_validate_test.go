package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestValidate_ErrorKinds(t *testing.T) {
	cfg := testConfig()
	env, done := newTestEngine(t, cfg)
	defer done()
	seedAccount(t, env, "alice", "alice@example.org", "Secret123!")

	ctx := context.Background()
	result, err := env.engine.Login(ctx, "alice", "Secret123!")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	t.Run("garbage is malformed", func(t *testing.T) {
		_, err := env.engine.Validate(ctx, "not-a-jwt")
		if !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("expected ErrTokenMalformed, got %v", err)
		}
	})

	t.Run("tampered payload is bad signature", func(t *testing.T) {
		parts := strings.Split(result.AccessToken, ".")
		forgedPayload := base64.RawURLEncoding.EncodeToString([]byte(`{"userId":"u-evil","sub":"mallory"}`))
		tampered := parts[0] + "." + forgedPayload + "." + parts[2]
		_, err := env.engine.Validate(ctx, tampered)
		if !errors.Is(err, ErrTokenBadSignature) {
			t.Fatalf("expected ErrTokenBadSignature, got %v", err)
		}
	})

	t.Run("foreign key is bad signature", func(t *testing.T) {
		foreign := signedWith(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-32b"), env)
		_, err := env.engine.Validate(ctx, foreign)
		if !errors.Is(err, ErrTokenBadSignature) {
			t.Fatalf("expected ErrTokenBadSignature, got %v", err)
		}
	})

	t.Run("wrong algorithm is unsupported", func(t *testing.T) {
		foreign := signedWith(t, jwt.SigningMethodHS384, testSecret, env)
		_, err := env.engine.Validate(ctx, foreign)
		if !errors.Is(err, ErrTokenUnsupported) {
			t.Fatalf("expected ErrTokenUnsupported, got %v", err)
		}
	})

	t.Run("stale token is expired", func(t *testing.T) {
		env.clock.Advance(cfg.JWT.AccessTTL + cfg.JWT.Leeway + 1)
		defer env.clock.Advance(-(cfg.JWT.AccessTTL + cfg.JWT.Leeway + 1))
		_, err := env.engine.Validate(ctx, result.AccessToken)
		if !errors.Is(err, ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
	})
}

// signedWith builds a structurally valid access token under an arbitrary
// method and key, matching the engine's clock and issuer so only the
// property under test differs.
func signedWith(t *testing.T, method jwt.SigningMethod, key []byte, env *testEnv) string {
	t.Helper()
	now := env.clock.Now()
	claims := jwt.MapClaims{
		"userId": "u-forged",
		"sub":    "alice",
		"iss":    "vaccination-auth-test",
		"iat":    now.Unix(),
		"exp":    now.Add(5 * time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("signing forged token failed: %v", err)
	}
	return signed
}
