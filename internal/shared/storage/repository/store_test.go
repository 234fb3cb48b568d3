// Package repository SQLite 集成测试
//
// 使用 SQLite 内存数据库验证 repository 层所有存储接口的正确性。
// 无需外部数据库依赖，可在任何环境下运行。
package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"villas-admin/internal/shared/model"
	"villas-admin/internal/shared/storage"
	"villas-admin/internal/shared/storage/dbutil"
	sqlitedriver "villas-admin/internal/shared/storage/driver/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore 创建用于测试的 SQLite 内存数据库 Store
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })
	return store
}

// ============================================================================
// Dialect 基础测试
// ============================================================================

func TestDialectTypes(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, dbutil.DriverSQLite, d.DriverType())
	assert.Equal(t, "1", d.BooleanLiteral(true))
	assert.Equal(t, "0", d.BooleanLiteral(false))
	assert.False(t, d.IsUniqueViolation(nil))
}

func TestRebind(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, "SELECT * FROM t WHERE id = ? AND name = ?",
		d.Rebind("SELECT * FROM t WHERE id = $1 AND name = $2"))
	// 应去除 PG 类型转换
	assert.Equal(t, "UPDATE t SET status = ? WHERE id = ?",
		d.Rebind("UPDATE t SET status = $1::varchar WHERE id = $2"))
}

func TestConditions(t *testing.T) {
	var c dbutil.Conditions
	assert.Equal(t, "", c.Where())

	c.AddRaw("is_active = 1")
	c.Add("status = %s", "Sold")
	c.Add("(a LIKE %s OR b LIKE %s)", "x", "y")
	assert.Equal(t, " WHERE is_active = 1 AND status = $1 AND (a LIKE $2 OR b LIKE $3)", c.Where())
	assert.Equal(t, "$4", c.Bind(10))
	assert.Equal(t, []interface{}{"Sold", "x", "y", 10}, c.Args())

	assert.Equal(t, `%50\%\_off%`, dbutil.ContainsPattern("50%_OFF"))
}

// ============================================================================
// User 测试
// ============================================================================

func newUser(username, email string) *model.User {
	now := time.Now().UTC()
	return &model.User{
		ID:           model.NewID(),
		Username:     username,
		Email:        email,
		PasswordHash: "hash",
		Role:         model.UserRoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := newUser("alice", "alice@example.com")
	require.NoError(t, s.CreateUser(ctx, u))

	// 唯一约束
	assert.ErrorIs(t, s.CreateUser(ctx, newUser("alice", "other@example.com")), storage.ErrDuplicate)
	assert.ErrorIs(t, s.CreateUser(ctx, newUser("bob", "alice@example.com")), storage.ErrDuplicate)

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.LastLogin)

	got, err = s.FindUserByEmailOrUsername(ctx, "nobody@example.com", "alice")
	require.NoError(t, err)
	require.NotNil(t, got)

	missing, err := s.GetUserByID(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.UpdateUserProfile(ctx, u.ID, "", "alice@new.com"))
	got, _ = s.GetUserByID(ctx, u.ID)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "alice@new.com", got.Email)

	require.NoError(t, s.UpdateUserPassword(ctx, u.ID, "hash2"))
	login := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpdateUserLastLogin(ctx, u.ID, login))
	got, _ = s.GetUserByID(ctx, u.ID)
	assert.Equal(t, "hash2", got.PasswordHash)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(login))

	assert.ErrorIs(t, s.UpdateUserPassword(ctx, "nope", "x"), storage.ErrNotFound)
}

// ============================================================================
// Cluster 测试
// ============================================================================

func newCluster(clusterID, name string, statuses ...model.VillaStatus) *model.Cluster {
	now := time.Now().UTC()
	c := &model.Cluster{
		ID:          model.NewID(),
		ClusterID:   clusterID,
		ClusterName: name,
		X:           1.5,
		Y:           -2,
		Amenities:   []string{"Pool"},
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, st := range statuses {
		c.Villas = append(c.Villas, model.Villa{
			ID:       fmt.Sprintf("%d", i+1),
			Status:   st,
			Size:     200,
			Type:     "Twin",
			Features: []string{},
			Images:   []string{},
		})
	}
	return c
}

func TestClusterCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newCluster("A", "Alpha Gardens", model.VillaAvailable, model.VillaSold)
	require.NoError(t, s.CreateCluster(ctx, a))
	assert.ErrorIs(t, s.CreateCluster(ctx, newCluster("A", "Dup")), storage.ErrDuplicate)

	got, err := s.GetActiveCluster(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alpha Gardens", got.ClusterName)
	assert.Equal(t, []string{"Pool"}, got.Amenities)
	require.Len(t, got.Villas, 2)
	assert.Equal(t, model.VillaSold, got.Villas[1].Status)

	// Replace
	got.ClusterName = "Alpha Heights"
	got.Villas = got.Villas[:1]
	got.UpdatedAt = time.Now().UTC()
	require.NoError(t, s.ReplaceCluster(ctx, got))

	sold, err := s.ListActiveClusters(ctx, storage.ClusterQuery{Status: model.VillaSold})
	require.NoError(t, err)
	assert.Empty(t, sold, "status index must follow replaced villas")

	got, _ = s.GetActiveCluster(ctx, "A")
	assert.Equal(t, "Alpha Heights", got.ClusterName)

	// Soft delete
	require.NoError(t, s.DeactivateCluster(ctx, "A"))
	assert.ErrorIs(t, s.DeactivateCluster(ctx, "A"), storage.ErrNotFound)
	gone, err := s.GetActiveCluster(ctx, "A")
	assert.NoError(t, err)
	assert.Nil(t, gone)

	// clusterId 在软删除后仍被占用
	inactive, err := s.GetClusterByClusterID(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, inactive)
	assert.False(t, inactive.IsActive)
	assert.ErrorIs(t, s.ReplaceCluster(ctx, inactive), storage.ErrNotFound)
}

func TestListActiveClusters_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, c := range []*model.Cluster{
		newCluster("A", "Alpha", model.VillaAvailable),
		newCluster("B_1", "Beta Park", model.VillaSold, model.VillaUnderConstruction),
		newCluster("C", "Gamma", model.VillaUnderConstruction),
	} {
		c.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.CreateCluster(ctx, c))
	}

	all, err := s.ListActiveClusters(ctx, storage.ClusterQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "C", all[0].ClusterID, "newest first")

	uc, _ := s.ListActiveClusters(ctx, storage.ClusterQuery{Status: model.VillaUnderConstruction})
	assert.Len(t, uc, 2)

	park, _ := s.ListActiveClusters(ctx, storage.ClusterQuery{Search: "PARK"})
	require.Len(t, park, 1)
	assert.Equal(t, "B_1", park[0].ClusterID)

	// "_" 按字面匹配，不作为通配符
	underscore, _ := s.ListActiveClusters(ctx, storage.ClusterQuery{Search: "_"})
	require.Len(t, underscore, 1)
	assert.Equal(t, "B_1", underscore[0].ClusterID)

	// 状态值中的通配符同样按字面匹配
	for _, status := range []model.VillaStatus{"%", "_", "Sol_"} {
		got, err := s.ListActiveClusters(ctx, storage.ClusterQuery{Status: status})
		require.NoError(t, err)
		assert.Empty(t, got, "status %q", status)
	}
}

func TestAppendVillaImage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCluster(ctx, newCluster("A", "Alpha", model.VillaAvailable, model.VillaSold)))

	require.NoError(t, s.AppendVillaImage(ctx, "A", "2", "http://cdn/a.jpg"))
	require.NoError(t, s.AppendVillaImage(ctx, "A", "2", "http://cdn/b.jpg"))
	assert.ErrorIs(t, s.AppendVillaImage(ctx, "A", "9", "x"), storage.ErrNotFound)
	assert.ErrorIs(t, s.AppendVillaImage(ctx, "Z", "1", "x"), storage.ErrNotFound)

	got, _ := s.GetActiveCluster(ctx, "A")
	v, ok := got.FindVilla("2")
	require.True(t, ok)
	assert.Equal(t, []string{"http://cdn/a.jpg", "http://cdn/b.jpg"}, v.Images)
}

// TestClusterStats_Totals 合计等于各地块统计之和
func TestClusterStats_Totals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCluster(ctx, newCluster("A", "Alpha", model.VillaAvailable, model.VillaSold, model.VillaSold)))
	require.NoError(t, s.CreateCluster(ctx, newCluster("B", "Beta", model.VillaUnderConstruction)))
	require.NoError(t, s.CreateCluster(ctx, newCluster("C", "Gone", model.VillaAvailable)))
	require.NoError(t, s.DeactivateCluster(ctx, "C"))

	rows, err := s.ClusterStats(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	totals := model.SumClusterStats(rows)
	assert.Equal(t, 4, totals.TotalVillas)
	assert.Equal(t, 1, totals.TotalAvailable)
	assert.Equal(t, 2, totals.TotalSold)
	assert.Equal(t, 1, totals.TotalUnderConstruction)
}

// ============================================================================
// Contact 测试
// ============================================================================

func newContact(name string, created time.Time) *model.Contact {
	c := &model.Contact{
		ID:        model.NewID(),
		Name:      name,
		Email:     "buyer@example.com",
		Phone:     "1234567",
		Message:   "I would like a viewing",
		CreatedAt: created,
		UpdatedAt: created,
	}
	c.ApplyDefaults()
	return c
}

func seedContacts(t *testing.T, s *Store, n int) []*model.Contact {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	var out []*model.Contact
	for i := 0; i < n; i++ {
		c := newContact(fmt.Sprintf("Buyer %02d", i), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.CreateContact(context.Background(), c))
		out = append(out, c)
	}
	return out
}

func TestListContacts_Pagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedContacts(t, s, 25)

	q := storage.ContactQuery{Page: model.NewPageRequest(3, 10), Sort: storage.NewSortSpec("", "")}
	contacts, total, err := s.ListContacts(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Len(t, contacts, 5)

	p := model.NewPagination(q.Page, total)
	assert.Equal(t, 3, p.Total)
	assert.False(t, p.HasNext)
	assert.True(t, p.HasPrev)

	// 倒序：第一页第一条为最新
	first, _, err := s.ListContacts(ctx, storage.ContactQuery{Page: model.NewPageRequest(1, 10), Sort: storage.NewSortSpec("createdAt", "desc")})
	require.NoError(t, err)
	assert.Equal(t, "Buyer 24", first[0].Name)

	asc, _, err := s.ListContacts(ctx, storage.ContactQuery{Page: model.NewPageRequest(1, 2), Sort: storage.NewSortSpec("name", "asc")})
	require.NoError(t, err)
	assert.Equal(t, "Buyer 00", asc[0].Name)
}

func TestListContacts_FilterAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	contacts := seedContacts(t, s, 3)

	special := newContact("Zed Smith", time.Now().UTC())
	special.Email = "zed@villas.io"
	special.Source = model.SourceReferral
	require.NoError(t, s.CreateContact(ctx, special))

	found, total, err := s.ListContacts(ctx, storage.ContactQuery{Search: "VILLAS.IO", Page: model.NewPageRequest(1, 10)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, special.ID, found[0].ID)

	bySource, total, err := s.ListContacts(ctx, storage.ContactQuery{
		ContactFilter: storage.ContactFilter{Source: "Referral"},
		Page:          model.NewPageRequest(1, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Zed Smith", bySource[0].Name)

	got, err := s.GetContact(ctx, contacts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContactPending, got.Status)
	assert.Equal(t, []string{}, got.Tags)
	assert.Nil(t, got.UpdatedBy)
}

func TestUpdateContact_StampsActor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedContacts(t, s, 1)[0]

	status := model.ContactResolved
	comment := "Sold villa A_1"
	follow := time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)
	patch := &model.ContactPatch{Status: &status, SalesComment: &comment, FollowUpDate: &follow, Tags: []string{"hot"}}
	patch.Stamp(model.ActorSnapshot{Username: "admin", Email: "admin@x.com", UserID: "u1"}, time.Now().UTC())

	updated, err := s.UpdateContact(ctx, c.ID, patch)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, model.ContactResolved, updated.Status)
	assert.Equal(t, model.PriorityMedium, updated.Priority)
	assert.Equal(t, "Sold villa A_1", updated.SalesComment)
	assert.Equal(t, []string{"hot"}, updated.Tags)
	require.NotNil(t, updated.FollowUpDate)
	assert.True(t, updated.FollowUpDate.Equal(follow))
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, "u1", updated.UpdatedBy.UserID)

	missing, err := s.UpdateContact(ctx, model.NewID(), patch)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBulkUpdateAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	contacts := seedContacts(t, s, 4)

	priority := model.PriorityUrgent
	patch := &model.ContactPatch{Priority: &priority}
	patch.Stamp(model.ActorSnapshot{Username: "admin", UserID: "u1"}, time.Now().UTC())

	n, err := s.BulkUpdateContacts(ctx, []string{contacts[0].ID, contacts[1].ID, model.NewID()}, patch)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.BulkUpdateContacts(ctx, nil, patch)
	require.NoError(t, err)
	assert.Zero(t, n)

	groups, err := s.CountContactsBy(ctx, storage.GroupByPriority)
	require.NoError(t, err)
	assert.Equal(t, []model.GroupCount{{ID: "Medium", Count: 2}, {ID: "Urgent", Count: 2}}, groups)

	require.NoError(t, s.DeleteContact(ctx, contacts[0].ID))
	assert.ErrorIs(t, s.DeleteContact(ctx, contacts[0].ID), storage.ErrNotFound)
}

func TestContactStatsAndExport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := newContact("Old", time.Now().UTC().AddDate(0, 0, -30))
	old.Status = model.ContactCancelled
	require.NoError(t, s.CreateContact(ctx, old))
	recent := seedContacts(t, s, 3)

	status := model.ContactInProgress
	patch := &model.ContactPatch{Status: &status}
	patch.Stamp(model.ActorSnapshot{UserID: "u1"}, time.Now().UTC())
	_, err := s.UpdateContact(ctx, recent[0].ID, patch)
	require.NoError(t, err)

	groups, err := s.CountContactsBy(ctx, storage.GroupByStatus)
	require.NoError(t, err)
	totals := model.NewStatusTotals(groups)
	assert.Equal(t, 4, totals["total"])
	assert.Equal(t, 2, totals["pending"])
	assert.Equal(t, 1, totals["inProgress"])
	assert.Equal(t, 1, totals["cancelled"])

	days, err := s.CountContactsByDay(ctx, time.Now().UTC().AddDate(0, 0, -7))
	require.NoError(t, err)
	sum := 0
	for _, d := range days {
		sum += d.Count
		assert.Len(t, d.ID, len("2006-01-02"))
	}
	assert.Equal(t, 3, sum, "contacts older than 7 days are excluded")

	exported, err := s.ExportContacts(ctx, storage.ContactFilter{Status: "Cancelled"})
	require.NoError(t, err)
	require.Len(t, exported, 1)
	assert.Equal(t, "Old", exported[0].Name)

	all, err := s.ExportContacts(ctx, storage.ContactFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "Old", all[3].Name, "newest first")
}
