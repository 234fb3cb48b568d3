// Package cache 缓存层抽象接口
//
// 提供跨实例共享的临时计数能力，当前由 Redis 实现。
// 未配置 Redis 时使用 NoOpLimiter，进程内不保存任何计数状态。
package cache

import (
	"context"
	"time"
)

// ============================================================================
// 缓存接口定义
// ============================================================================

// RateLimiter 固定窗口限流器
type RateLimiter interface {
	// Allow 对 key 计数一次，返回本窗口内是否仍在配额内
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error)
	Close() error
}
