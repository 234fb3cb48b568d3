// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：mongostore/（默认）、repository/（SQLite/PostgreSQL）
//   - 初始化时通过依赖注入传入实现
//
// 约定：
//   - Get* 查询不存在时返回 (nil, nil)
//   - Update*/Delete* 目标不存在时返回 ErrNotFound
//   - 唯一键冲突统一转换为 ErrDuplicate
package storage

import (
	"context"
	"time"

	"villas-admin/internal/shared/model"
)

// UserStore 用户存储接口
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// FindUserByEmailOrUsername 任一字段命中即返回
	FindUserByEmailOrUsername(ctx context.Context, email, username string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id, username, email string) error
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	UpdateUserLastLogin(ctx context.Context, id string, at time.Time) error
}

// ClusterStore 地块存储接口
//
// 除 GetClusterByClusterID 外，所有读写只作用于 IsActive=true 的地块。
type ClusterStore interface {
	CreateCluster(ctx context.Context, c *model.Cluster) error
	GetActiveCluster(ctx context.Context, clusterID string) (*model.Cluster, error)
	// GetClusterByClusterID 包含已软删除的地块，用于 clusterId 唯一性检查
	GetClusterByClusterID(ctx context.Context, clusterID string) (*model.Cluster, error)
	ListActiveClusters(ctx context.Context, q ClusterQuery) ([]*model.Cluster, error)
	// ReplaceCluster 按 clusterId 整体替换活跃地块
	ReplaceCluster(ctx context.Context, c *model.Cluster) error
	DeactivateCluster(ctx context.Context, clusterID string) error
	AppendVillaImage(ctx context.Context, clusterID, villaID, url string) error
	ClusterStats(ctx context.Context) ([]model.ClusterStatsRow, error)
}

// ContactStore 留言存储接口
type ContactStore interface {
	CreateContact(ctx context.Context, c *model.Contact) error
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	ListContacts(ctx context.Context, q ContactQuery) ([]*model.Contact, int64, error)
	// UpdateContact 返回更新后的留言，不存在时返回 (nil, nil)
	UpdateContact(ctx context.Context, id string, patch *model.ContactPatch) (*model.Contact, error)
	BulkUpdateContacts(ctx context.Context, ids []string, patch *model.ContactPatch) (int64, error)
	DeleteContact(ctx context.Context, id string) error
	CountContactsBy(ctx context.Context, field GroupField) ([]model.GroupCount, error)
	// CountContactsByDay 按 UTC 日期（YYYY-MM-DD）分组，升序
	CountContactsByDay(ctx context.Context, since time.Time) ([]model.GroupCount, error)
	ExportContacts(ctx context.Context, f ContactFilter) ([]*model.Contact, error)
}

// PersistentStore 持久化存储组合接口
type PersistentStore interface {
	UserStore
	ClusterStore
	ContactStore
	Close() error
}
