package server

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"villas-admin/internal/apiserver/apierr"
	"villas-admin/pkg/logging"
)

// statusRecorder 包装 http.ResponseWriter 以捕获状态码
type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap 供 http.ResponseController 访问底层连接
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

// ============================================================================
// recover / 请求日志
// ============================================================================

// recoverer 捕获处理器 panic，记录堆栈并返回 500
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := newStatusRecorder(w)
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				h.log.WithContext(r.Context()).Error("Panic recovered",
					"method", r.Method, "url", r.URL.String(), "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
				if !rec.wroteHeader {
					h.resp.Write(rec, r, fmt.Errorf("panic: %v", p))
				}
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

// requestLog 分配请求 ID、挂载用户槽位，请求结束后输出一条访问日志
func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := logging.WithUserSlot(logging.WithRequestID(r.Context(), id))
		r = r.WithContext(ctx)
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		// user_id 由 HTTPRequestLog 单独输出
		h.log.WithContext(logging.WithRequestID(context.Background(), id)).HTTPRequestLog(logging.HTTPRequest{
			Method:    r.Method,
			Path:      r.URL.Path,
			Status:    rec.statusCode,
			Duration:  time.Since(start),
			ClientIP:  h.clientIP(r),
			UserAgent: r.UserAgent(),
			UserID:    logging.UserID(ctx),
		})
	})
}

// ============================================================================
// 响应头
// ============================================================================

// securityHeaders 基础安全响应头
func securityHeaders(next http.Handler, hsts bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("X-Frame-Options", "SAMEORIGIN")
		hdr.Set("X-DNS-Prefetch-Control", "off")
		hdr.Set("Referrer-Policy", "no-referrer")
		hdr.Set("Cross-Origin-Opener-Policy", "same-origin")
		hdr.Set("Cross-Origin-Resource-Policy", "same-origin")
		hdr.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'self'; object-src 'none'")
		if hsts {
			hdr.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// cors 只允许配置的前端来源，并允许携带 cookie
func cors(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Add("Vary", "Origin")
		if origin != "" && r.Header.Get("Origin") == origin {
			hdr.Set("Access-Control-Allow-Origin", origin)
			hdr.Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			hdr.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			hdr.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody 限制请求体大小，超限时读取请求体返回错误
func limitBody(next http.Handler, n int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > n {
			apierr.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Request body too large"})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, n)
		next.ServeHTTP(w, r)
	})
}

// ============================================================================
// 限流
// ============================================================================

// clientIP 限流和访问日志使用的客户端地址
//
// 未配置 trust_proxy 时只认连接对端，X-Forwarded-For/X-Real-IP 一律忽略。
func (h *Handler) clientIP(r *http.Request) string {
	if h.opts.RateLimit.TrustProxy {
		return apierr.ClientIP(r)
	}
	return apierr.RemoteIP(r)
}

// rateLimit 按客户端 IP 对 /api 下的请求做固定窗口限流
//
// 计数存储出错时放行，只记录告警。
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	limit, window := h.opts.RateLimit.Max, h.opts.RateLimit.Window
	retryAfter := int(math.Ceil(window.Seconds()))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api" && !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		res, err := h.opts.Limiter.Allow(r.Context(), h.clientIP(r), limit, window)
		if err != nil {
			h.log.WithContext(r.Context()).Warn("Rate limiter unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		hdr := w.Header()
		hdr.Set("RateLimit-Limit", strconv.Itoa(res.Limit))
		hdr.Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
		hdr.Set("RateLimit-Reset", strconv.Itoa(int(math.Ceil(res.ResetAfter.Seconds()))))
		if !res.Allowed {
			hdr.Set("Retry-After", strconv.Itoa(retryAfter))
			apierr.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":      "Too many requests from this IP, please try again later.",
				"retryAfter": retryAfter,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
