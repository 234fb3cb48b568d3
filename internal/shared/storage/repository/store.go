// Package repository 数据库无关的业务逻辑存储层
//
// 通过 dbutil.Dialect 接口屏蔽不同数据库的 SQL 差异，
// 所有 SQL 以 PostgreSQL 风格编写，运行时由 Dialect.Rebind() 转换。
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"villas-admin/internal/shared/storage"
	"villas-admin/internal/shared/storage/dbutil"
)

// Store 通用存储实现
// 实现了 storage.PersistentStore 接口
type Store struct {
	db      *sql.DB
	dialect dbutil.Dialect
}

var _ storage.PersistentStore = (*Store)(nil)

// NewStore 创建通用存储
func NewStore(db *sql.DB, dialect dbutil.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping 检查连接状态
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect 返回当前方言
func (s *Store) Dialect() dbutil.Dialect {
	return s.dialect
}

// rebind 快捷方法：将 PG 风格 SQL 转换为当前方言
func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}

// exec 执行写语句并转换唯一键冲突
func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return nil, storage.ErrDuplicate
		}
		return nil, err
	}
	return res, nil
}

// execOne 执行写语句，未影响任何行时返回 ErrNotFound
func (s *Store) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// notFoundAsNil 将 sql.ErrNoRows 转为 (nil, nil) 语义
func notFoundAsNil(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

// toJSON 序列化 JSON 列，nil 切片写为 "[]"
func toJSON[T any](v []T) (string, error) {
	if v == nil {
		return "[]", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// fromJSON 反序列化 JSON 列，空值得到空切片
func fromJSON[T any](data sql.NullString) ([]T, error) {
	out := []T{}
	if !data.Valid || data.String == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}
