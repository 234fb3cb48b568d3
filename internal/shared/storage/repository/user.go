package repository

import (
	"context"
	"database/sql"
	"time"

	"villas-admin/internal/shared/model"
)

const userColumns = `id, username, email, password_hash, role, is_active, last_login, created_at, updated_at`

// scanUser 扫描单行用户记录
func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	u := &model.User{}
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.Role, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

func (r *Store) getUser(ctx context.Context, where string, args ...interface{}) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+userColumns+` FROM users WHERE `+where+` LIMIT 1`), args...)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return u, nil
}

// CreateUser 创建用户
func (r *Store) CreateUser(ctx context.Context, user *model.User) error {
	_, err := r.exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.Role, user.IsActive, user.LastLogin, user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	return err
}

// GetUserByID 通过 ID 查找用户
func (r *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.getUser(ctx, `id = $1`, id)
}

// GetUserByEmail 通过邮箱查找用户
func (r *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, `email = $1`, email)
}

// GetUserByUsername 通过用户名查找用户
func (r *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getUser(ctx, `username = $1`, username)
}

// FindUserByEmailOrUsername 邮箱或用户名任一命中
func (r *Store) FindUserByEmailOrUsername(ctx context.Context, email, username string) (*model.User, error) {
	return r.getUser(ctx, `email = $1 OR username = $2`, email, username)
}

// UpdateUserProfile 更新用户名/邮箱，空字符串保持原值
func (r *Store) UpdateUserProfile(ctx context.Context, id, username, email string) error {
	return r.execOne(ctx,
		`UPDATE users SET
		   username = CASE WHEN $1 = '' THEN username ELSE $2 END,
		   email = CASE WHEN $3 = '' THEN email ELSE $4 END,
		   updated_at = $5
		 WHERE id = $6`,
		username, username, email, email, time.Now().UTC(), id,
	)
}

// UpdateUserPassword 更新用户密码
func (r *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return r.execOne(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, time.Now().UTC(), id,
	)
}

// UpdateUserLastLogin 记录最近登录时间
func (r *Store) UpdateUserLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at.UTC(), id)
}
