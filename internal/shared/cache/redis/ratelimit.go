// Package redis 固定窗口限流
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"villas-admin/internal/shared/cache"
)

// fixedWindowScript INCR 计数，首次计数时设置窗口过期时间，返回 {count, pttl}
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Allow 对 key 计数一次
func (s *Store) Allow(ctx context.Context, key string, limit int, window time.Duration) (*cache.RateLimitResult, error) {
	res, err := fixedWindowScript.Run(ctx, s.client, []string{cache.KeyRateLimit + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &cache.RateLimitResult{
		Allowed:    count <= limit,
		Limit:      limit,
		Remaining:  remaining,
		ResetAfter: ttl,
	}, nil
}

var _ cache.RateLimiter = (*Store)(nil)
