package mongostore

import (
	"context"
	"errors"
	"time"

	"villas-admin/internal/shared/model"
	"villas-admin/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// ContactStore
// ============================================================================

func (s *Store) CreateContact(ctx context.Context, c *model.Contact) error {
	return insertOne(ctx, s.col(ColContacts), c)
}

func (s *Store) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	return findOne[model.Contact](ctx, s.col(ColContacts), bson.D{{Key: "_id", Value: id}})
}

// contactFilter 构造精确过滤 + 关键字搜索条件
func contactFilter(f storage.ContactFilter, search string) bson.D {
	filter := bson.D{}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	if f.Priority != "" {
		filter = append(filter, bson.E{Key: "priority", Value: f.Priority})
	}
	if f.Source != "" {
		filter = append(filter, bson.E{Key: "source", Value: f.Source})
	}
	if search != "" {
		or := bson.A{}
		for _, field := range []string{"name", "email", "phone", "message", "interestedUnit"} {
			or = append(or, bson.D{{Key: field, Value: containsRegex(search)}})
		}
		filter = append(filter, bson.E{Key: "$or", Value: or})
	}
	return filter
}

func (s *Store) ListContacts(ctx context.Context, q storage.ContactQuery) ([]*model.Contact, int64, error) {
	filter := contactFilter(q.ContactFilter, q.Search)

	total, err := s.col(ColContacts).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, wrapError(err)
	}

	order := 1
	if q.Sort.Desc {
		order = -1
	}
	page := model.NewPageRequest(q.Page.Page, q.Page.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: q.Sort.Field, Value: order}, {Key: "_id", Value: order}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))

	contacts, err := findMany[model.Contact](ctx, s.col(ColContacts), filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

// patchUpdate 将补丁转换为 $set 文档
func patchUpdate(p *model.ContactPatch) bson.D {
	set := bson.D{}
	if p.Status != nil {
		set = append(set, bson.E{Key: "status", Value: *p.Status})
	}
	if p.Priority != nil {
		set = append(set, bson.E{Key: "priority", Value: *p.Priority})
	}
	if p.Source != nil {
		set = append(set, bson.E{Key: "source", Value: *p.Source})
	}
	if p.SalesComment != nil {
		set = append(set, bson.E{Key: "salesComment", Value: *p.SalesComment})
	}
	if p.FollowUpDate != nil {
		set = append(set, bson.E{Key: "followUpDate", Value: p.FollowUpDate.UTC()})
	}
	if p.Tags != nil {
		set = append(set, bson.E{Key: "tags", Value: p.Tags})
	}
	set = append(set,
		bson.E{Key: "updatedBy", Value: p.UpdatedBy},
		bson.E{Key: "updatedAt", Value: p.UpdatedAt.UTC()},
	)
	return bson.D{{Key: "$set", Value: set}}
}

func (s *Store) UpdateContact(ctx context.Context, id string, patch *model.ContactPatch) (*model.Contact, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated model.Contact
	err := s.col(ColContacts).FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, patchUpdate(patch), opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapError(err)
	}
	return &updated, nil
}

func (s *Store) BulkUpdateContacts(ctx context.Context, ids []string, patch *model.ContactPatch) (int64, error) {
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
	res, err := s.col(ColContacts).UpdateMany(ctx, filter, patchUpdate(patch))
	if err != nil {
		return 0, wrapError(err)
	}
	return res.ModifiedCount, nil
}

func (s *Store) DeleteContact(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColContacts), id)
}

func (s *Store) CountContactsBy(ctx context.Context, field storage.GroupField) ([]model.GroupCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + string(field)},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	return aggregate[model.GroupCount](ctx, s.col(ColContacts), pipeline)
}

func (s *Store) CountContactsByDay(ctx context.Context, since time.Time) ([]model.GroupCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: since.UTC()}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: "%Y-%m-%d"},
				{Key: "date", Value: "$createdAt"},
			}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	return aggregate[model.GroupCount](ctx, s.col(ColContacts), pipeline)
}

func (s *Store) ExportContacts(ctx context.Context, f storage.ContactFilter) ([]*model.Contact, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return findMany[model.Contact](ctx, s.col(ColContacts), contactFilter(f, ""), opts)
}
