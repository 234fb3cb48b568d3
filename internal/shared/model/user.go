// Package model 定义核心数据模型
//
// 三类聚合：
//   - User：管理后台账号
//   - Cluster：地块（内嵌 Villa 列表）
//   - Contact：客户咨询留言
package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// UserRole 用户角色
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// Valid 判断角色是否合法
func (r UserRole) Valid() bool {
	return r == UserRoleAdmin || r == UserRoleUser
}

// User 用户
type User struct {
	ID           string     `json:"id" bson:"_id" db:"id"`
	Username     string     `json:"username" bson:"username" db:"username"`
	Email        string     `json:"email" bson:"email" db:"email"`
	PasswordHash string     `json:"-" bson:"passwordHash" db:"password_hash"` // never expose in JSON
	Role         UserRole   `json:"role" bson:"role" db:"role"`
	IsActive     bool       `json:"isActive" bson:"isActive" db:"is_active"`
	LastLogin    *time.Time `json:"lastLogin,omitempty" bson:"lastLogin,omitempty" db:"last_login"`
	CreatedAt    time.Time  `json:"createdAt" bson:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" bson:"updatedAt" db:"updated_at"`
}

// NewID 生成 24 位十六进制文档 ID
//
// 与 MongoDB ObjectId 的字符串形式同长度，两种存储驱动共用同一 ID 格式。
func NewID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
