// Package server 路由配置与核心基础设施
//
// 本文件组装各领域包的路由，并按固定顺序包裹中间件：
//
//	请求日志 → recover → 安全头 → CORS → 请求体上限 → 限流(/api/) → 指标 → 路由
//
// 仍保留在本包的模块：
//   - middleware.go: 通用中间件
//   - metrics.go: Prometheus 指标
package server

import (
	"context"
	"net/http"
	"time"

	"villas-admin/internal/apiserver/apierr"
	"villas-admin/internal/apiserver/auth"
	"villas-admin/internal/apiserver/cluster"
	"villas-admin/internal/apiserver/contact"
	"villas-admin/internal/config"
	"villas-admin/internal/shared/cache"
	"villas-admin/internal/shared/storage"
	"villas-admin/pkg/logging"
)

// Version 对外公布的 API 版本
const Version = "1.0.0"

// maxBodyBytes 请求体上限
const maxBodyBytes = 10 << 20

// readyTimeout 就绪检查中单次 Ping 的总时限
const readyTimeout = 3 * time.Second

// Options 组装路由所需的依赖
type Options struct {
	Store      storage.PersistentStore
	Images     cluster.ImageStore // 为 nil 时图片上传返回 503
	Limiter    cache.RateLimiter  // 为 nil 时不限流
	Auth       auth.Config
	RateLimit  config.RateLimitConfig
	CORSOrigin string
	Env        config.Environment
	Log        *logging.Logger
}

// Handler API 入口
type Handler struct {
	opts    Options
	log     *logging.Logger
	resp    *apierr.Responder
	metrics *Metrics
	started time.Time
	now     func() time.Time
}

// NewHandler 创建 Handler 实例
func NewHandler(opts Options) *Handler {
	if opts.Log == nil {
		opts.Log = logging.Default("api-server")
	}
	return &Handler{
		opts:    opts,
		log:     opts.Log.Named("http"),
		resp:    apierr.NewResponder(opts.Log, opts.Env != config.EnvProduction),
		metrics: NewMetrics("villas"),
		started: time.Now(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Metrics 返回指标实例
func (h *Handler) Metrics() *Metrics {
	return h.metrics
}

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 基础:
//   - GET /health  - 健康检查
//   - GET /ready   - 就绪检查（数据库、Redis 连通性）
//   - GET /api     - API 索引
//   - GET /metrics - Prometheus 指标
//
// 认证 (/api/auth/*)、地块 (/api/clusters/*)、留言 (/api/contacts/*) 由各领域包注册。
// 其余路径返回 404。
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.HandleFunc("GET /api", h.Index)
	mux.Handle("GET /metrics", h.metrics.Handler())

	guard := auth.NewGuard(h.opts.Auth, h.opts.Store, h.resp)

	auth.NewHandler(h.opts.Store, h.opts.Auth, h.opts.Log, h.resp).RegisterRoutes(mux, guard)
	cluster.NewHandler(h.opts.Store, h.opts.Images, h.opts.Log, h.resp).RegisterRoutes(mux, guard)
	contact.NewHandler(h.opts.Store, h.opts.Log, h.resp, h.metrics).RegisterRoutes(mux, guard)

	mux.HandleFunc("/", h.NotFound)

	var handler http.Handler = h.metrics.MetricsMiddleware(mux)
	if h.opts.Limiter != nil {
		handler = h.rateLimit(handler)
	}
	handler = limitBody(handler, maxBodyBytes)
	handler = cors(handler, h.opts.CORSOrigin)
	handler = securityHeaders(handler, h.opts.Env == config.EnvProduction)
	handler = h.recoverer(handler)
	handler = h.requestLog(handler)
	return handler
}

// Health 健康检查接口
//
// 路由: GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	apierr.WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "OK",
		"timestamp":   h.now().Format(time.RFC3339Nano),
		"uptime":      time.Since(h.started).Seconds(),
		"environment": string(h.opts.Env),
		"version":     Version,
	})
}

// pinger 支持连通性检查的依赖
type pinger interface {
	Ping(ctx context.Context) error
}

// Ready 就绪检查，任一依赖不可达时返回 503
//
// 路由: GET /ready
// 未实现 Ping 的依赖（如 NoOpLimiter）不参与检查。
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status, checks := http.StatusOK, map[string]string{}
	for _, dep := range []struct {
		name string
		dep  any
	}{
		{"database", h.opts.Store},
		{"redis", h.opts.Limiter},
	} {
		p, ok := dep.dep.(pinger)
		if !ok {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			h.log.WithContext(ctx).Warn("Readiness check failed", "dependency", dep.name, "error", err)
			checks[dep.name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[dep.name] = "ok"
	}

	body := map[string]any{"status": "OK", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "Unavailable"
	}
	apierr.WriteJSON(w, status, body)
}

// Index API 索引
//
// 路由: GET /api
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	apierr.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "EastVille Backend API",
		"version": Version,
		"endpoints": map[string]string{
			"auth":     "/api/auth",
			"clusters": "/api/clusters",
			"contacts": "/api/contacts",
		},
		"documentation": "API documentation coming soon...",
	})
}

// NotFound 未匹配的路由
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	apierr.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found - " + r.URL.Path})
}
