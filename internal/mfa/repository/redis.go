package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"client-connect/backend/internal/mfa/domain"
)

// DefaultKeyPrefix namespaces challenge keys in a shared Redis.
const DefaultKeyPrefix = "otp:challenge:"

// consumeScript applies the Consume rules in one round trip.
// KEYS[1]=challenge key; ARGV[1]=code hash, ARGV[2]=now (unix ms), ARGV[3]=max attempts.
var consumeScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'code_hash', 'expires_at')
if not v[1] then
  return 'not_found'
end
if tonumber(ARGV[2]) > tonumber(v[2]) then
  redis.call('DEL', KEYS[1])
  return 'expired'
end
if v[1] ~= ARGV[1] then
  local n = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
  local max = tonumber(ARGV[3])
  if max > 0 and n >= max then
    redis.call('DEL', KEYS[1])
  end
  return 'mismatch'
end
redis.call('DEL', KEYS[1])
return 'verified'
`)

// RedisStore keeps challenges in Redis hashes so every API instance sees the same state.
// Keys expire at challenge expiry plus retention.
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore returns a Store over client. An empty prefix uses DefaultKeyPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if retention < 0 {
		retention = 0
	}
	return &RedisStore{client: client, prefix: prefix, retention: retention}
}

func (s *RedisStore) key(username string) string {
	return s.prefix + username
}

// Put replaces the challenge hash for c.Username and sets its expiry.
func (s *RedisStore) Put(ctx context.Context, c *domain.Challenge) error {
	key := s.key(c.Username)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"code_hash", c.CodeHash,
			"created_at", c.CreatedAt.UnixMilli(),
			"expires_at", c.ExpiresAt.UnixMilli(),
			"attempts", c.Attempts,
		)
		p.PExpireAt(ctx, key, c.ExpiresAt.Add(s.retention))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: put challenge: %w", err)
	}
	return nil
}

// Consume runs the consume script against the challenge for username.
func (s *RedisStore) Consume(ctx context.Context, username, codeHash string, now time.Time, maxAttempts int) (domain.Outcome, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{s.key(username)},
		codeHash, strconv.FormatInt(now.UnixMilli(), 10), strconv.Itoa(maxAttempts)).Text()
	if err != nil {
		return "", fmt.Errorf("redis: consume challenge: %w", err)
	}
	switch out := domain.Outcome(res); out {
	case domain.OutcomeVerified, domain.OutcomeNotFound, domain.OutcomeExpired, domain.OutcomeMismatch:
		return out, nil
	default:
		return "", fmt.Errorf("redis: consume challenge: unexpected result %q", res)
	}
}

// Delete removes the challenge for username.
func (s *RedisStore) Delete(ctx context.Context, username string) error {
	if err := s.client.Del(ctx, s.key(username)).Err(); err != nil {
		return fmt.Errorf("redis: delete challenge: %w", err)
	}
	return nil
}
