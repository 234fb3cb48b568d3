// Package logging 结构化日志
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// ContextKey 上下文键类型
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	userSlotKey  ContextKey = "user_slot"
)

// Logger 结构化日志器
type Logger struct {
	*slog.Logger
	component string
}

// Config 日志配置
type Config struct {
	Level     string `json:"level"`
	Format    string `json:"format"` // json or text
	Output    string `json:"output"` // stdout, stderr, or file path
	Component string `json:"component"`
}

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New 创建新的日志器
func New(cfg Config) *Logger {
	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			output = os.Stdout
		} else {
			output = f
		}
	}
	return NewWithWriter(cfg, output)
}

// NewWithWriter 输出到指定 writer（测试中用于捕获日志）
func NewWithWriter(cfg Config, output io.Writer) *Logger {
	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	l := slog.New(handler)
	if cfg.Component != "" {
		l = l.With(slog.String("component", cfg.Component))
	}
	return &Logger{
		Logger:    l,
		component: cfg.Component,
	}
}

// Default 创建默认日志器
func Default(component string) *Logger {
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    "stdout",
		Component: component,
	})
}

// Named 派生子组件日志器，共享同一 handler
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.String("component", component)),
		component: component,
	}
}

// Component 组件名
func (l *Logger) Component() string {
	return l.component
}

// ============================================================================
// 请求上下文
// ============================================================================

// userSlot 请求级可写槽位
// 认证中间件运行在日志中间件内层，通过槽位把用户 ID 回传给外层的请求日志
type userSlot struct {
	userID string
}

// WithRequestID 注入请求 ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID 读取请求 ID
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithUserSlot 为请求挂载用户槽位
func WithUserSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, userSlotKey, &userSlot{})
}

// SetUserID 写入当前请求的用户 ID，未挂载槽位时忽略
func SetUserID(ctx context.Context, userID string) {
	if s, ok := ctx.Value(userSlotKey).(*userSlot); ok {
		s.userID = userID
	}
}

// UserID 读取当前请求的用户 ID
func UserID(ctx context.Context) string {
	if s, ok := ctx.Value(userSlotKey).(*userSlot); ok {
		return s.userID
	}
	return ""
}

// WithContext 从上下文提取请求信息
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var attrs []any
	if id := RequestID(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if uid := UserID(ctx); uid != "" {
		attrs = append(attrs, slog.String("user_id", uid))
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{
		Logger:    l.Logger.With(attrs...),
		component: l.component,
	}
}

// WithError 添加错误信息
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{
		Logger:    l.Logger.With(slog.String("error", err.Error())),
		component: l.component,
	}
}

// WithDuration 添加持续时间
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.Float64("duration_ms", float64(d.Milliseconds()))),
		component: l.component,
	}
}

// HTTPRequest 单条请求日志字段
type HTTPRequest struct {
	Method    string
	Path      string
	Status    int
	Duration  time.Duration
	ClientIP  string
	UserAgent string
	UserID    string
}

// HTTPRequestLog HTTP 请求日志，5xx 记为 error，4xx 记为 warn
func (l *Logger) HTTPRequestLog(req HTTPRequest) {
	attrs := []any{
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", req.Status),
		slog.Float64("duration_ms", float64(req.Duration.Milliseconds())),
		slog.String("client_ip", req.ClientIP),
		slog.String("user_agent", req.UserAgent),
	}
	if req.UserID != "" {
		attrs = append(attrs, slog.String("user_id", req.UserID))
	}
	switch {
	case req.Status >= 500:
		l.Logger.Error("HTTP request", attrs...)
	case req.Status >= 400:
		l.Logger.Warn("HTTP request", attrs...)
	default:
		l.Logger.Info("HTTP request", attrs...)
	}
}

// DBQueryLog 数据库查询日志
func (l *Logger) DBQueryLog(operation, collection string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("collection", collection),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.Logger.Error("DB query failed", attrs...)
	} else {
		l.Logger.Debug("DB query", attrs...)
	}
}
