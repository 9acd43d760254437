package auth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/streetball/api/pkg/debug"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter is a fixed-window limiter shared across instances through
// Redis. Limits are resolved per role like InProcessLimiter, which also
// serves as the fallback.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limits *InProcessLimiter
}

// NewRedisLimiter creates a limiter that counts requests in Redis under prefix.
func NewRedisLimiter(client *redis.Client, prefix string, roleRPM map[string]int, defaultRPM int) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limits: NewInProcessLimiter(roleRPM, defaultRPM),
	}
}

// Allow increments the subject's counter for the current window. When Redis
// is unreachable the in-process counters are used instead.
func (l *RedisLimiter) Allow(ctx context.Context, identity *Identity) error {
	rpm := l.limits.limitFor(identity)
	if rpm <= 0 {
		return nil
	}

	window := l.limits.window
	bucket := l.limits.now().Truncate(window).Unix()
	key := fmt.Sprintf("%s%s:%d", l.prefix, identity.Subject, bucket)

	count, err := fixedWindowScript.Run(ctx, l.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		debug.Log("ratelimit", "redis unavailable, using in-process counters", "error", err)
		return l.limits.Allow(ctx, identity)
	}
	if count > int64(rpm) {
		return ErrTooManyRequests
	}
	return nil
}

var (
	_ RateLimiter = (*InProcessLimiter)(nil)
	_ RateLimiter = (*RedisLimiter)(nil)
)
