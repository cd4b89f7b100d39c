// Package auth is the authentication and token lifecycle core for the
// vaccination platform services: credential verification with Argon2id,
// failed-attempt lockout, JWT access tokens, one-time-use refresh tokens
// with rotation and reuse detection, and fire-and-forget audit.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// auth is the orchestration surface. Persistence lives behind the
// [AccountStore] and [ledger.Ledger] interfaces; cryptography lives in the
// password and token subpackages. The engine never talks to a database or
// cache directly, which is what keeps the whole core testable with
// in-memory fakes and miniredis.
//
// # Concurrency contract
//
// Failed-login accounting uses optimistic versioned writes (retried once)
// so concurrent failures never lose an increment, and refresh rotation is
// an atomic revoke-if-active in the ledger, so a refresh token raced by N
// callers is honored exactly once.
package auth
