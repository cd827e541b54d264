// Package limiter implements Redis-backed request rate limits.
package limiter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Strategy is a rate-limit algorithm evaluated atomically in Redis.
type Strategy interface {
	// Allow reports whether one more request under key fits in limit per window.
	Allow(ctx context.Context, rdb redis.Scripter, key string, limit int, window time.Duration) (bool, error)
}

// Manager applies one strategy with a fixed limit to namespaced keys.
type Manager struct {
	rdb      redis.Scripter
	strategy Strategy
	prefix   string
	limit    int
	window   time.Duration
}

func NewManager(rdb redis.Scripter, strategy Strategy, prefix string, limit int, window time.Duration) *Manager {
	return &Manager{
		rdb:      rdb,
		strategy: strategy,
		prefix:   prefix,
		limit:    limit,
		window:   window,
	}
}

// Allow checks and counts one request for key.
func (m *Manager) Allow(ctx context.Context, key string) (bool, error) {
	return m.strategy.Allow(ctx, m.rdb, fmt.Sprintf("limiter:%s:%s", m.prefix, key), m.limit, m.window)
}

// StrategyByName maps a configuration value to a strategy. Unknown names fall
// back to the fixed window.
func StrategyByName(name string) Strategy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "token", "token_bucket":
		return TokenBucketStrategy{}
	default:
		return FixedWindowStrategy{}
	}
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
	return 0
end
return 1
`)

// FixedWindowStrategy counts requests per window with INCR and an expiry set on the first hit.
type FixedWindowStrategy struct{}

func (FixedWindowStrategy) Allow(ctx context.Context, rdb redis.Scripter, key string, limit int, window time.Duration) (bool, error) {
	result, err := fixedWindowScript.Run(ctx, rdb, []string{key}, limit, window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local info = redis.call("HMGET", KEYS[1], "tokens", "last_time")
local tokens = tonumber(info[1])
local last_time = tonumber(info[2])
if tokens == nil then
	tokens = capacity
	last_time = now
end

tokens = math.min(capacity, tokens + math.max(0, now - last_time) * rate)
if tokens < 1 then
	return 0
end
redis.call("HSET", KEYS[1], "tokens", tokens - 1, "last_time", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return 1
`)

// TokenBucketStrategy refills limit tokens per window and allows bursts up to limit.
type TokenBucketStrategy struct{}

func (TokenBucketStrategy) Allow(ctx context.Context, rdb redis.Scripter, key string, limit int, window time.Duration) (bool, error) {
	rate := float64(limit) / window.Seconds()
	if rate <= 0 {
		rate = 1
	}
	now := float64(time.Now().UnixMilli()) / 1000
	result, err := tokenBucketScript.Run(ctx, rdb, []string{key}, limit, rate, now, (2 * window).Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}
