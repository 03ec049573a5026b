package window

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"hudson/internal/ratelimit/models"
	"hudson/pkg/requestcontext"
)

// fixedWindowLua runs the same rule as InMemory.Increment in one atomic step.
// A key without a TTL is treated as expired so a lost PEXPIRE cannot pin a
// counter forever.
//
// KEYS[1] counter key; ARGV[1] limit; ARGV[2] window in ms.
// Returns {allowed, count, ttl_ms}.
const fixedWindowLua = `
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local ttl = redis.call('PTTL', KEYS[1])
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

if current == 0 or ttl < 0 then
  redis.call('SET', KEYS[1], 1, 'PX', window)
  return {1, 1, window}
end

if current < limit then
  local n = redis.call('INCR', KEYS[1])
  return {1, n, ttl}
end

return {0, current, ttl}
`

// Redis implements the fixed-window counter on Redis so that limits hold
// across instances. Errors are returned to the caller, which decides how
// to degrade.
type Redis struct {
	client redis.UniversalClient
	script *redis.Script
	prefix string
}

// NewRedis creates a Redis backed store. prefix is prepended to every key.
func NewRedis(client redis.UniversalClient, prefix string) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &Redis{
		client: client,
		script: redis.NewScript(fixedWindowLua),
		prefix: prefix,
	}, nil
}

func (s *Redis) Increment(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := requestcontext.Now(ctx)

	raw, err := s.script.Run(ctx, s.client, []string{s.prefix + key}, limit, window.Milliseconds()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis fixed window script: %w", err)
	}
	vals, err := parseScriptResult(raw)
	if err != nil {
		return nil, err
	}

	allowed, count, ttl := vals[0] == 1, int(vals[1]), time.Duration(vals[2])*time.Millisecond
	resetAt := now.Add(ttl)
	res := &models.RateLimitResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(0, limit-count),
		ResetAt:   resetAt,
	}
	if !allowed {
		res.Remaining = 0
		res.RetryAfter = models.RetryAfterSeconds(now, resetAt)
	}
	return res, nil
}

func (s *Redis) Peek(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := requestcontext.Now(ctx)
	fullKey := s.prefix + key

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, fullKey)
	ttlCmd := pipe.PTTL(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis peek: %w", err)
	}

	count, err := getCmd.Int()
	ttl := ttlCmd.Val()
	if errors.Is(err, redis.Nil) || ttl <= 0 {
		return &models.RateLimitResult{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetAt:   now.Add(window),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis peek: %w", err)
	}

	resetAt := now.Add(ttl)
	remaining := max(0, limit-count)
	res := &models.RateLimitResult{
		Allowed:   remaining > 0,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if remaining == 0 {
		res.RetryAfter = models.RetryAfterSeconds(now, resetAt)
	}
	return res, nil
}

func (s *Redis) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis reset: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable, for readiness checks.
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func parseScriptResult(raw any) ([3]int64, error) {
	var out [3]int64
	arr, ok := raw.([]any)
	if !ok || len(arr) != 3 {
		return out, fmt.Errorf("unexpected lua result: %v", raw)
	}
	for i, v := range arr {
		switch n := v.(type) {
		case int64:
			out[i] = n
		case string:
			parsed, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return out, fmt.Errorf("unexpected lua value %q: %w", n, err)
			}
			out[i] = parsed
		default:
			return out, fmt.Errorf("unexpected lua value type %T", v)
		}
	}
	return out, nil
}
