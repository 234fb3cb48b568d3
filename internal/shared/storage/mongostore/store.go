// Package mongostore 实现基于 MongoDB 的 PersistentStore
//
// 使用 mongo-go-driver v2，通过 bson tag 实现 model 结构体的序列化/反序列化。
// Villa 作为 clusters 文档的内嵌数组保存，不单独建 Collection。
// 所有 Collection 名称和索引在 ensureIndexes 中统一管理。
package mongostore

import (
	"context"
	"fmt"
	"time"

	"villas-admin/pkg/logging"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection 名称常量
const (
	ColUsers    = "users"
	ColClusters = "clusters"
	ColContacts = "contacts"
)

// Store 实现 storage.PersistentStore 接口的 MongoDB 驱动
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *logging.Logger
}

// NewStore 创建 MongoDB 存储实例
//
// uri: MongoDB 连接 URI，如 "mongodb://localhost:27017"
// dbName: 数据库名称，如 "villasDB"
func NewStore(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	// 验证连接
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	s := &Store{
		client: client,
		db:     client.Database(dbName),
		log:    logging.Default("mongostore"),
	}

	// 索引创建失败不阻止启动，唯一性仍由应用层预检查兜底
	if err := s.ensureIndexes(ctx); err != nil {
		s.log.Warn("ensure indexes failed", "error", err)
	}

	s.log.Info("connected", "database", dbName)
	return s, nil
}

// Close 关闭 MongoDB 连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping 检查连接状态
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// col 获取指定 Collection
func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// ensureIndexes 创建所有必要的索引
func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		// users
		{ColUsers, bson.D{{Key: "email", Value: 1}}, true},
		{ColUsers, bson.D{{Key: "username", Value: 1}}, true},

		// clusters
		{ColClusters, bson.D{{Key: "clusterId", Value: 1}}, true},
		{ColClusters, bson.D{{Key: "villas.id", Value: 1}}, false},
		{ColClusters, bson.D{{Key: "isActive", Value: 1}, {Key: "createdAt", Value: -1}}, false},

		// contacts
		{ColContacts, bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}, false},
		{ColContacts, bson.D{{Key: "email", Value: 1}}, false},
		{ColContacts, bson.D{{Key: "updatedBy.userId", Value: 1}}, false},
	}

	for _, ix := range indexes {
		model := mongo.IndexModel{Keys: ix.keys}
		if ix.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := s.col(ix.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", ix.col, err)
		}
	}
	return nil
}
