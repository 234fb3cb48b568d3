// Package cache 缓存层 mock 实现
package cache

import (
	"context"
	"time"
)

// ============================================================================
// NoOpLimiter - 空操作的 RateLimiter 实现
// ============================================================================

// NoOpLimiter 总是放行，用于未配置 Redis 的部署和测试
type NoOpLimiter struct{}

// NewNoOpLimiter 创建 NoOpLimiter 实例
func NewNoOpLimiter() *NoOpLimiter {
	return &NoOpLimiter{}
}

func (l *NoOpLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	return &RateLimitResult{Allowed: true, Limit: limit, Remaining: limit, ResetAfter: window}, nil
}

// Close 关闭限流器
func (l *NoOpLimiter) Close() error {
	return nil
}

var _ RateLimiter = (*NoOpLimiter)(nil)
