// Command authd exposes the authentication engine over HTTP for the
// vaccination platform.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	auth "github.com/niyiment/vaccination-auth"
	"github.com/niyiment/vaccination-auth/internal/observability"
	"github.com/niyiment/vaccination-auth/ledger"
	"github.com/niyiment/vaccination-auth/middleware"
	"github.com/niyiment/vaccination-auth/pgstore"
)

func main() {
	_ = godotenv.Load()

	logger := observability.NewLogger()

	databaseURL := mustEnv("DATABASE_URL")
	jwtSecret := mustEnv("JWT_SECRET")
	issuer := envOrDefault("JWT_ISSUER", "vaccination-auth")
	port := envOrDefault("PORT", "8080")

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}
	defer observability.FlushSentry()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("open_database_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("ping_database_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	var tokenLedger ledger.Ledger = pgstore.NewLedger(pool)
	if addr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("ping_redis_failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		tokenLedger = ledger.NewRedisLedger(client, envOrDefault("REDIS_PREFIX", "auth:"))
	}

	cfg := auth.Config{
		JWT: auth.JWTConfig{
			Secret:     []byte(jwtSecret),
			Issuer:     issuer,
			AccessTTL:  envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15),
			RefreshTTL: envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 168),
		},
		Password: auth.PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Lockout: auth.LockoutConfig{
			MaxFailedAttempts: envIntOrDefault("LOGIN_MAX_ATTEMPTS", auth.DefaultMaxFailedAttempts),
		},
		Account: auth.AccountConfig{DefaultRole: auth.DefaultRole},
		Audit:   auth.AuditConfig{Enabled: true, BufferSize: 512, DropIfFull: true},
		Metrics: auth.MetricsConfig{Enabled: true},
	}

	engine, err := auth.New().
		WithConfig(cfg).
		WithAccountStore(pgstore.NewAccountStore(pool)).
		WithRoleResolver(pgstore.NewRoleResolver(pool)).
		WithLedger(tokenLedger).
		WithAuditSink(auth.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		logger.Error("build_engine_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer engine.Close()

	go purgeLoop(ctx, engine, logger, envHoursOrDefault("PURGE_INTERVAL_HOURS", 12))

	h := &handler{engine: engine, logger: logger}
	guard := middleware.Guard(engine)
	admin := middleware.RequireRole("ROLE_ADMIN")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", h.register)
	mux.HandleFunc("POST /api/v1/auth/login", h.login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", h.logout)
	mux.Handle("GET /api/v1/auth/me", guard(http.HandlerFunc(h.me)))
	mux.Handle("POST /api/v1/admin/accounts/{id}/unlock", guard(admin(http.HandlerFunc(h.unlock))))
	mux.Handle("POST /api/v1/admin/accounts/{id}/revoke-sessions", guard(admin(http.HandlerFunc(h.revokeSessions))))
	mux.HandleFunc("GET /health", healthHandler(pool))
	mux.Handle("GET /metrics", guard(admin(http.HandlerFunc(h.metrics))))

	root := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	addr := fmt.Sprintf(":%s", port)
	logger.Info("server_start", map[string]any{"addr": addr})
	if err := http.ListenAndServe(addr, root); err != nil {
		logger.Error("server_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func purgeLoop(ctx context.Context, engine *auth.Engine, logger *observability.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := engine.PurgeExpiredTokens(ctx)
			if err != nil {
				logger.Error("token_purge_failed", map[string]any{"error": err.Error()})
				continue
			}
			logger.Info("token_purge", map[string]any{"purged": purged})
		}
	}
}

func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := pool.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func mustEnv(name string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		fmt.Printf("missing required env: %s\n", name)
		os.Exit(1)
	}
	return value
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}
