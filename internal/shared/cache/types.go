// Package cache 缓存层类型定义
package cache

import (
	"time"
)

// ============================================================================
// 缓存数据类型
// ============================================================================

// RateLimitResult 限流判定结果
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration // 当前窗口剩余时间
}

// ============================================================================
// Key 前缀
// ============================================================================

const (
	// KeyRateLimit 限流计数器，后接客户端标识
	KeyRateLimit = "villas:ratelimit:"
)
