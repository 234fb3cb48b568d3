package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"villas-admin/internal/shared/model"
	"villas-admin/internal/shared/storage"
	"villas-admin/internal/shared/storage/dbutil"
)

const contactColumns = `id, name, email, phone, interested_unit, message, status, priority, source,
	updated_by, sales_comment, follow_up_date, tags, created_at, updated_at`

// contactSortColumns API 排序字段到列名的映射
var contactSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
	"email":     "email",
	"status":    "status",
	"priority":  "priority",
	"source":    "source",
}

func scanContact(row interface{ Scan(...interface{}) error }) (*model.Contact, error) {
	c := &model.Contact{}
	var interested, updatedBy, comment, tags sql.NullString
	var followUp sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &interested, &c.Message,
		&c.Status, &c.Priority, &c.Source, &updatedBy, &comment, &followUp, &tags,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.InterestedUnit = interested.String
	c.SalesComment = comment.String
	if followUp.Valid {
		t := followUp.Time
		c.FollowUpDate = &t
	}
	if updatedBy.Valid && updatedBy.String != "" {
		var actor model.ActorSnapshot
		if err := json.Unmarshal([]byte(updatedBy.String), &actor); err != nil {
			return nil, err
		}
		c.UpdatedBy = &actor
	}
	var err error
	if c.Tags, err = fromJSON[string](tags); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Store) queryContacts(ctx context.Context, query string, args ...interface{}) ([]*model.Contact, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []*model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// contactConditions 构造精确过滤 + 关键字搜索条件
func contactConditions(f storage.ContactFilter, search string) *dbutil.Conditions {
	cond := &dbutil.Conditions{}
	if f.Status != "" {
		cond.Add(`status = %s`, f.Status)
	}
	if f.Priority != "" {
		cond.Add(`priority = %s`, f.Priority)
	}
	if f.Source != "" {
		cond.Add(`source = %s`, f.Source)
	}
	if search != "" {
		p := dbutil.ContainsPattern(search)
		cond.Add(`(LOWER(name) LIKE %s ESCAPE '\' OR LOWER(email) LIKE %s ESCAPE '\'`+
			` OR LOWER(phone) LIKE %s ESCAPE '\' OR LOWER(message) LIKE %s ESCAPE '\'`+
			` OR LOWER(COALESCE(interested_unit, '')) LIKE %s ESCAPE '\')`, p, p, p, p, p)
	}
	return cond
}

// CreateContact 创建留言
func (r *Store) CreateContact(ctx context.Context, c *model.Contact) error {
	tags, err := toJSON(c.Tags)
	if err != nil {
		return err
	}
	updatedBy, err := actorJSON(c.UpdatedBy)
	if err != nil {
		return err
	}
	_, err = r.exec(ctx,
		`INSERT INTO contacts (`+contactColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.Name, c.Email, c.Phone, c.InterestedUnit, c.Message,
		c.Status, c.Priority, c.Source, updatedBy, c.SalesComment, utcPtr(c.FollowUpDate), tags,
		c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	return err
}

// GetContact 按 ID 查找留言
func (r *Store) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+contactColumns+` FROM contacts WHERE id = $1`), id)
	c, err := scanContact(row)
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return c, nil
}

// ListContacts 分页查询留言
func (r *Store) ListContacts(ctx context.Context, q storage.ContactQuery) ([]*model.Contact, int64, error) {
	cond := contactConditions(q.ContactFilter, q.Search)

	var total int64
	if err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT COUNT(*) FROM contacts`+cond.Where()), cond.Args()...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := contactSortColumns[q.Sort.Field]
	if !ok {
		column = "created_at"
	}
	order := "ASC"
	if q.Sort.Desc {
		order = "DESC"
	}
	page := model.NewPageRequest(q.Page.Page, q.Page.Limit)

	query := fmt.Sprintf(`SELECT %s FROM contacts%s ORDER BY %s %s, id %s LIMIT %s OFFSET %s`,
		contactColumns, cond.Where(), column, order, order,
		cond.Bind(page.Limit), cond.Bind(page.Offset()))
	contacts, err := r.queryContacts(ctx, query, cond.Args()...)
	if err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

// patchAssignments 将补丁转换为 SET 子句
func patchAssignments(p *model.ContactPatch, cond *dbutil.Conditions) ([]string, error) {
	var sets []string
	if p.Status != nil {
		sets = append(sets, "status = "+cond.Bind(string(*p.Status)))
	}
	if p.Priority != nil {
		sets = append(sets, "priority = "+cond.Bind(string(*p.Priority)))
	}
	if p.Source != nil {
		sets = append(sets, "source = "+cond.Bind(string(*p.Source)))
	}
	if p.SalesComment != nil {
		sets = append(sets, "sales_comment = "+cond.Bind(*p.SalesComment))
	}
	if p.FollowUpDate != nil {
		sets = append(sets, "follow_up_date = "+cond.Bind(p.FollowUpDate.UTC()))
	}
	if p.Tags != nil {
		tags, err := toJSON(p.Tags)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "tags = "+cond.Bind(tags))
	}
	actor, err := actorJSON(&p.UpdatedBy)
	if err != nil {
		return nil, err
	}
	sets = append(sets,
		"updated_by = "+cond.Bind(actor),
		"updated_at = "+cond.Bind(p.UpdatedAt.UTC()),
	)
	return sets, nil
}

// UpdateContact 更新单条留言并返回最新记录
func (r *Store) UpdateContact(ctx context.Context, id string, patch *model.ContactPatch) (*model.Contact, error) {
	cond := &dbutil.Conditions{}
	sets, err := patchAssignments(patch, cond)
	if err != nil {
		return nil, err
	}
	err = r.execOne(ctx,
		`UPDATE contacts SET `+strings.Join(sets, ", ")+` WHERE id = `+cond.Bind(id),
		cond.Args()...)
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.GetContact(ctx, id)
}

// BulkUpdateContacts 批量更新，返回受影响行数
func (r *Store) BulkUpdateContacts(ctx context.Context, ids []string, patch *model.ContactPatch) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	cond := &dbutil.Conditions{}
	sets, err := patchAssignments(patch, cond)
	if err != nil {
		return 0, err
	}
	holders := make([]string, len(ids))
	for i, id := range ids {
		holders[i] = cond.Bind(id)
	}
	res, err := r.exec(ctx,
		`UPDATE contacts SET `+strings.Join(sets, ", ")+` WHERE id IN (`+strings.Join(holders, ", ")+`)`,
		cond.Args()...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteContact 删除留言
func (r *Store) DeleteContact(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM contacts WHERE id = $1`, id)
}

// CountContactsBy 按字段分组计数
func (r *Store) CountContactsBy(ctx context.Context, field storage.GroupField) ([]model.GroupCount, error) {
	var column string
	switch field {
	case storage.GroupByStatus, storage.GroupByPriority, storage.GroupBySource:
		column = string(field)
	default:
		return nil, fmt.Errorf("repository: unsupported group field %q", field)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM contacts GROUP BY `+column+` ORDER BY `+column)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []model.GroupCount{}
	for rows.Next() {
		var g model.GroupCount
		if err := rows.Scan(&g.ID, &g.Count); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// CountContactsByDay 按 UTC 日期分组计数
//
// 日期格式化在 Go 侧完成，避免 SQLite/PostgreSQL 日期函数差异。
func (r *Store) CountContactsByDay(ctx context.Context, since time.Time) ([]model.GroupCount, error) {
	rows, err := r.db.QueryContext(ctx,
		r.rebind(`SELECT created_at FROM contacts WHERE created_at >= $1`), since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		counts[t.UTC().Format("2006-01-02")]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)

	groups := make([]model.GroupCount, 0, len(days))
	for _, d := range days {
		groups = append(groups, model.GroupCount{ID: d, Count: counts[d]})
	}
	return groups, nil
}

// ExportContacts 导出全部匹配留言，按创建时间倒序
func (r *Store) ExportContacts(ctx context.Context, f storage.ContactFilter) ([]*model.Contact, error) {
	cond := contactConditions(f, "")
	return r.queryContacts(ctx,
		`SELECT `+contactColumns+` FROM contacts`+cond.Where()+` ORDER BY created_at DESC, id DESC`,
		cond.Args()...)
}

func actorJSON(a *model.ActorSnapshot) (interface{}, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
