// Package auth 用户认证：JWT 会话令牌、密码哈希、认证与授权 gate、认证接口
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"villas-admin/internal/shared/model"
)

// contextKey context 键类型
type contextKey string

const ctxKeyAuthUser contextKey = "auth_user"

// Config 认证配置
type Config struct {
	Secret     string
	TokenTTL   time.Duration
	CookieName string
	Hardened   bool // 生产模式：cookie 加 HttpOnly/Secure
	BcryptCost int
}

// DefaultConfig 返回默认认证配置
func DefaultConfig() Config {
	return Config{
		TokenTTL:   24 * time.Hour,
		CookieName: "token",
		BcryptCost: bcrypt.DefaultCost,
	}
}

// ============================================================================
// 密码哈希
// ============================================================================

// HashPassword 使用 bcrypt 哈希密码（随机盐由 bcrypt 生成）
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// JWT Token
// ============================================================================

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims JWT 声明
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IssueToken 签发会话令牌
func IssueToken(cfg Config, user *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
		},
		Email:    user.Email,
		Username: user.Username,
		Role:     string(user.Role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseToken 解析并验证 JWT，过期返回 ErrTokenExpired，其余失败返回 ErrTokenInvalid
func ParseToken(cfg Config, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ============================================================================
// Context 辅助函数
// ============================================================================

// WithAuthUser 将认证用户注入 context（不含密码哈希）
func WithAuthUser(ctx context.Context, user *model.User) context.Context {
	u := *user
	u.PasswordHash = ""
	return context.WithValue(ctx, ctxKeyAuthUser, &u)
}

// GetAuthUser 从 context 获取认证用户
func GetAuthUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(ctxKeyAuthUser).(*model.User)
	return user
}

// Actor 当前用户的快照，用于 updatedBy
func Actor(u *model.User) model.ActorSnapshot {
	return model.ActorSnapshot{Username: u.Username, Email: u.Email, UserID: u.ID}
}
