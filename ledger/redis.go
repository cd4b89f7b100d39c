package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger keeps refresh token records in Redis. Each record lives under
// a key derived from the SHA-256 of the opaque token string, with a TTL
// matching the token lifetime, so expired records vanish on their own. A
// per-account set indexes the hashes for bulk revocation.
//
// The revocation transitions run as Lua scripts so that under concurrent
// rotation exactly one caller observes the active-to-revoked flip.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

// revokeIfActiveScript flips an active record to revoked and returns 1 only
// for the caller that performed the transition. Already-revoked, expired or
// missing records return 0.
var revokeIfActiveScript = redis.NewScript(`
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
local rec = cjson.decode(data)
if rec.revoked then
  return 0
end
if tonumber(rec.expires_at) <= tonumber(ARGV[1]) then
  return 0
end
rec.revoked = true
rec.revoked_at = tonumber(ARGV[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
  redis.call("SET", KEYS[1], cjson.encode(rec), "PX", ttl)
else
  redis.call("SET", KEYS[1], cjson.encode(rec))
end
return 1
`)

// revokeScript is the unconditional idempotent form: it revokes unless the
// record is already revoked, preserving the first revocation timestamp.
var revokeScript = redis.NewScript(`
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
local rec = cjson.decode(data)
if rec.revoked then
  return 0
end
rec.revoked = true
rec.revoked_at = tonumber(ARGV[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
  redis.call("SET", KEYS[1], cjson.encode(rec), "PX", ttl)
else
  redis.call("SET", KEYS[1], cjson.encode(rec))
end
return 1
`)

type wireRecord struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	Revoked   bool   `json:"revoked"`
	RevokedAt int64  `json:"revoked_at,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

func NewRedisLedger(client *redis.Client, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = "auth:"
	}
	return &RedisLedger{client: client, prefix: prefix}
}

func (l *RedisLedger) tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return l.prefix + "rt:" + hex.EncodeToString(sum[:])
}

func (l *RedisLedger) accountKey(accountID string) string {
	return l.prefix + "rta:" + accountID
}

func (l *RedisLedger) Store(ctx context.Context, token *RefreshToken) error {
	ttl := token.ExpiresAt.Sub(token.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired at store time")
	}

	rec := wireRecord{
		ID:        token.ID,
		AccountID: token.AccountID,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt.Unix(),
		CreatedAt: token.CreatedAt.Unix(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	key := l.tokenKey(token.Token)
	pipe := l.client.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	pipe.SAdd(ctx, l.accountKey(token.AccountID), key)
	_, err = pipe.Exec(ctx)
	return err
}

func (l *RedisLedger) FindByToken(ctx context.Context, token string) (*RefreshToken, error) {
	data, err := l.client.Get(ctx, l.tokenKey(token)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

func (l *RedisLedger) Revoke(ctx context.Context, token string, now time.Time) error {
	return revokeScript.Run(ctx, l.client, []string{l.tokenKey(token)}, now.Unix()).Err()
}

func (l *RedisLedger) RevokeIfActive(ctx context.Context, token string, now time.Time) (bool, error) {
	res, err := revokeIfActiveScript.Run(ctx, l.client, []string{l.tokenKey(token)}, now.Unix()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (l *RedisLedger) RevokeAll(ctx context.Context, accountID string, now time.Time) error {
	keys, err := l.client.SMembers(ctx, l.accountKey(accountID)).Result()
	if err != nil {
		return err
	}
	ts := now.Unix()
	for _, key := range keys {
		if err := revokeScript.Run(ctx, l.client, []string{key}, ts).Err(); err != nil {
			return err
		}
	}
	return nil
}

// PurgeExpired drops index entries whose records have already been expired
// away by Redis and returns the number removed. Record keys themselves are
// TTL-bound and need no sweep.
func (l *RedisLedger) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var purged int64
	iter := l.client.Scan(ctx, 0, l.prefix+"rta:*", 100).Iterator()
	for iter.Next(ctx) {
		setKey := iter.Val()
		keys, err := l.client.SMembers(ctx, setKey).Result()
		if err != nil {
			return purged, err
		}
		for _, key := range keys {
			exists, err := l.client.Exists(ctx, key).Result()
			if err != nil {
				return purged, err
			}
			if exists == 0 {
				if err := l.client.SRem(ctx, setKey, key).Err(); err != nil {
					return purged, err
				}
				purged++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return purged, err
	}
	return purged, nil
}

func decodeRecord(data []byte) (*RefreshToken, error) {
	var rec wireRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt refresh token record: %w", err)
	}
	out := &RefreshToken{
		ID:        rec.ID,
		AccountID: rec.AccountID,
		Token:     rec.Token,
		ExpiresAt: time.Unix(rec.ExpiresAt, 0),
		Revoked:   rec.Revoked,
		CreatedAt: time.Unix(rec.CreatedAt, 0),
	}
	if rec.RevokedAt != 0 {
		t := time.Unix(rec.RevokedAt, 0)
		out.RevokedAt = &t
	}
	return out, nil
}

var _ Ledger = (*RedisLedger)(nil)
