package mongostore

import (
	"context"
	"time"

	"villas-admin/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return insertOne(ctx, s.col(ColUsers), user)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "email", Value: email}})
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "username", Value: username}})
}

func (s *Store) FindUserByEmailOrUsername(ctx context.Context, email, username string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "email", Value: email}},
		bson.D{{Key: "username", Value: username}},
	}}})
}

// UpdateUserProfile 空字符串字段不修改
func (s *Store) UpdateUserProfile(ctx context.Context, id, username, email string) error {
	set := bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}
	if username != "" {
		set = append(set, bson.E{Key: "username", Value: username})
	}
	if email != "" {
		set = append(set, bson.E{Key: "email", Value: email})
	}
	return updateFields(ctx, s.col(ColUsers), id, set)
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "passwordHash", Value: passwordHash},
		{Key: "updatedAt", Value: time.Now().UTC()},
	})
}

func (s *Store) UpdateUserLastLogin(ctx context.Context, id string, at time.Time) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{{Key: "lastLogin", Value: at.UTC()}})
}
