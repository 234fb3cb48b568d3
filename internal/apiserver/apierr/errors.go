// Package apierr 错误分类与 HTTP 响应映射
//
// 处理器返回 *Error 表达业务错误；存储层哨兵错误（ErrNotFound/ErrDuplicate）
// 和未知错误由 Responder 统一转换，未知错误记录日志后返回通用 500。
package apierr

import (
	"fmt"
	"net/http"
)

// 401 子码
const (
	CodeNoToken      = "NO_TOKEN"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeInvalidUser  = "INVALID_USER"
	CodeAuthRequired = "AUTH_REQUIRED"

	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
)

var unauthenticatedMessages = map[string]string{
	CodeNoToken:      "Access denied. No token provided.",
	CodeTokenExpired: "Token expired.",
	CodeInvalidToken: "Invalid token.",
	CodeInvalidUser:  "Invalid token. User not found or inactive.",
	CodeAuthRequired: "Authentication required.",
}

// FieldError 单个字段的校验失败
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

// Error API 错误，序列化后即响应体
type Error struct {
	Status   int      `json:"-"`
	Message  string   `json:"error"`
	Code     string   `json:"code,omitempty"`
	Details  any      `json:"details,omitempty"`
	Required []string `json:"required,omitempty"`
	Current  string   `json:"current,omitempty"`
	Stack    string   `json:"stack,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.cause)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// ============================================================================
// 构造函数
// ============================================================================

// ValidationFailed 400，携带全部失败字段
func ValidationFailed(details []FieldError) *Error {
	return &Error{Status: http.StatusBadRequest, Message: "Validation failed", Details: details}
}

// Conflict 唯一性冲突，按约定返回 400
func Conflict(message, details string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message, Details: details}
}

// InvalidCredentials 邮箱不存在与密码错误共用同一响应
func InvalidCredentials() *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Message: "Invalid credentials",
		Details: "Email or password is incorrect",
	}
}

// AccountDisabled 账号已停用
func AccountDisabled() *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Message: "Account disabled",
		Details: "Your account has been deactivated. Please contact support.",
	}
}

// Unauthenticated 401
func Unauthenticated(code string) *Error {
	msg, ok := unauthenticatedMessages[code]
	if !ok {
		msg = "Authentication required."
	}
	return &Error{Status: http.StatusUnauthorized, Message: msg, Code: code}
}

// Forbidden 403，附带所需角色与当前角色
func Forbidden(required []string, current string) *Error {
	return &Error{
		Status:   http.StatusForbidden,
		Message:  "Insufficient permissions.",
		Code:     CodeInsufficientPermissions,
		Required: required,
		Current:  current,
	}
}

// NotFound 404
func NotFound(message, details string) *Error {
	return &Error{Status: http.StatusNotFound, Message: message, Details: details}
}

// BadRequest 400
func BadRequest(message, details string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message, Details: details}
}

// Unavailable 503，依赖的可选组件未启用
func Unavailable(message string) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Message: message}
}

// Internal 500，cause 只进日志
func Internal(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: "Internal Server Error", cause: cause}
}
