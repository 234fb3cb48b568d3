package apierr

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"strings"

	"villas-admin/internal/shared/storage"
	"villas-admin/pkg/logging"
)

// Responder 将 error 写成 JSON 响应
type Responder struct {
	Log   *logging.Logger
	Debug bool // 为 true 时 500 响应附带堆栈（非生产环境）
}

// NewResponder 创建 Responder
func NewResponder(log *logging.Logger, debug bool) *Responder {
	return &Responder{Log: log, Debug: debug}
}

// Write 映射并写出错误
func (rs *Responder) Write(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := rs.classify(err)
	if apiErr.Status >= http.StatusInternalServerError {
		rs.logFailure(r, err)
		if rs.Debug {
			out := *apiErr
			out.Stack = err.Error() + "\n" + string(debug.Stack())
			apiErr = &out
		}
	}
	WriteJSON(w, apiErr.Status, apiErr)
}

func (rs *Responder) classify(err error) *Error {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, storage.ErrNotFound):
		return NotFound("Resource not found", "")
	case errors.Is(err, storage.ErrDuplicate):
		return Conflict("Duplicate field value entered", "")
	default:
		return Internal(err)
	}
}

func (rs *Responder) logFailure(r *http.Request, err error) {
	if rs.Log == nil {
		return
	}
	// WithContext 附带 request_id 与当前用户 ID
	rs.Log.WithContext(r.Context()).Error("Error occurred",
		"error", err.Error(),
		"method", r.Method,
		"url", r.URL.String(),
		"ip", ClientIP(r),
		"user_agent", r.UserAgent(),
	)
}

// Write 直接写出已分类的错误（不记录日志）
func Write(w http.ResponseWriter, e *Error) {
	WriteJSON(w, e.Status, e)
}

// WriteJSON 将数据以 JSON 格式写入 HTTP 响应
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ClientIP 客户端 IP，优先取 X-Forwarded-For 的第一跳
//
// 转发头可被客户端伪造，只在可信代理之后使用。
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return RemoteIP(r)
}

// RemoteIP 连接对端地址，不读取任何转发头
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
