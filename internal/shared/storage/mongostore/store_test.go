package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"villas-admin/internal/shared/model"
	"villas-admin/internal/shared/storage"
)

// testStore 创建测试用 Store，使用独立数据库避免污染
func testStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	dbName := "villas_admin_test"
	s, err := NewStore(uri, dbName)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	// 清空测试数据库
	ctx := context.Background()
	if err := s.db.Drop(ctx); err != nil {
		t.Fatalf("Failed to drop test database: %v", err)
	}
	// 重新创建索引
	if err := s.ensureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}

	t.Cleanup(func() {
		s.db.Drop(context.Background())
		s.Close()
	})

	return s
}

// Compile-time interface check
var _ storage.PersistentStore = (*Store)(nil)

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newCluster(clusterID string, statuses ...model.VillaStatus) *model.Cluster {
	c := &model.Cluster{
		ID:          model.NewID(),
		ClusterID:   clusterID,
		ClusterName: "Cluster " + clusterID,
		Amenities:   []string{},
		IsActive:    true,
		CreatedAt:   now(),
		UpdatedAt:   now(),
	}
	for i, st := range statuses {
		c.Villas = append(c.Villas, model.Villa{
			ID:       string(rune('1' + i)),
			Status:   st,
			Size:     200,
			Type:     "Twin",
			Features: []string{},
			Images:   []string{},
		})
	}
	return c
}

func TestUserCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	user := &model.User{
		ID:           model.NewID(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		Role:         model.UserRoleUser,
		IsActive:     true,
		CreatedAt:    now(),
		UpdatedAt:    now(),
	}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// 同名用户名触发唯一索引
	dup := *user
	dup.ID = model.NewID()
	dup.Email = "other@example.com"
	if err := s.CreateUser(ctx, &dup); err != storage.ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := s.FindUserByEmailOrUsername(ctx, "nobody@example.com", "alice")
	if err != nil || got == nil {
		t.Fatalf("FindUserByEmailOrUsername: %v %v", got, err)
	}
	if got.PasswordHash != "hash" {
		t.Errorf("PasswordHash = %q", got.PasswordHash)
	}

	if err := s.UpdateUserProfile(ctx, user.ID, "alice2", ""); err != nil {
		t.Fatalf("UpdateUserProfile: %v", err)
	}
	got, _ = s.GetUserByUsername(ctx, "alice2")
	if got == nil || got.Email != "alice@example.com" {
		t.Fatalf("profile update lost email: %+v", got)
	}

	login := now()
	if err := s.UpdateUserLastLogin(ctx, user.ID, login); err != nil {
		t.Fatalf("UpdateUserLastLogin: %v", err)
	}
	got, _ = s.GetUserByID(ctx, user.ID)
	if got.LastLogin == nil || !got.LastLogin.Equal(login) {
		t.Errorf("LastLogin = %v, want %v", got.LastLogin, login)
	}

	if err := s.UpdateUserPassword(ctx, "missing", "x"); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClusterLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := newCluster("A", model.VillaAvailable, model.VillaSold)
	b := newCluster("B-Park", model.VillaUnderConstruction)
	for _, c := range []*model.Cluster{a, b} {
		if err := s.CreateCluster(ctx, c); err != nil {
			t.Fatalf("CreateCluster: %v", err)
		}
	}
	if err := s.CreateCluster(ctx, newCluster("A")); err != storage.ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	sold, err := s.ListActiveClusters(ctx, storage.ClusterQuery{Status: model.VillaSold})
	if err != nil {
		t.Fatalf("ListActiveClusters: %v", err)
	}
	if len(sold) != 1 || sold[0].ClusterID != "A" {
		t.Errorf("status filter = %+v", sold)
	}

	found, _ := s.ListActiveClusters(ctx, storage.ClusterQuery{Search: "park"})
	if len(found) != 1 || found[0].ClusterID != "B-Park" {
		t.Errorf("search = %+v", found)
	}

	if err := s.AppendVillaImage(ctx, "A", "1", "http://img/1.jpg"); err != nil {
		t.Fatalf("AppendVillaImage: %v", err)
	}
	if err := s.AppendVillaImage(ctx, "A", "9", "x"); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound for missing villa, got %v", err)
	}
	got, _ := s.GetActiveCluster(ctx, "A")
	if v, _ := got.FindVilla("1"); len(v.Images) != 1 {
		t.Errorf("images = %v", v.Images)
	}

	rows, err := s.ClusterStats(ctx)
	if err != nil {
		t.Fatalf("ClusterStats: %v", err)
	}
	totals := model.SumClusterStats(rows)
	if totals.TotalVillas != 3 || totals.TotalAvailable+totals.TotalSold+totals.TotalUnderConstruction != 3 {
		t.Errorf("totals = %+v", totals)
	}

	if err := s.DeactivateCluster(ctx, "A"); err != nil {
		t.Fatalf("DeactivateCluster: %v", err)
	}
	if err := s.DeactivateCluster(ctx, "A"); err != storage.ErrNotFound {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
	if got, _ := s.GetActiveCluster(ctx, "A"); got != nil {
		t.Error("soft-deleted cluster still visible")
	}
	if got, _ := s.GetClusterByClusterID(ctx, "A"); got == nil || got.IsActive {
		t.Error("soft-deleted cluster should still exist inactive")
	}
	if err := s.ReplaceCluster(ctx, a); err != storage.ErrNotFound {
		t.Errorf("replace inactive: expected ErrNotFound, got %v", err)
	}
}

func TestContactTriage(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 25; i++ {
		c := &model.Contact{
			ID:        model.NewID(),
			Name:      "Buyer",
			Email:     "buyer@example.com",
			Phone:     "123456",
			Message:   "interested in a villa",
			CreatedAt: now().Add(time.Duration(i) * time.Second),
		}
		c.ApplyDefaults()
		if i%5 == 0 {
			c.Status = model.ContactResolved
		}
		if err := s.CreateContact(ctx, c); err != nil {
			t.Fatalf("CreateContact: %v", err)
		}
		ids = append(ids, c.ID)
	}

	page, total, err := s.ListContacts(ctx, storage.ContactQuery{
		Page: model.NewPageRequest(3, 10),
		Sort: storage.NewSortSpec("", ""),
	})
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if total != 25 || len(page) != 5 {
		t.Errorf("page 3: total=%d len=%d", total, len(page))
	}

	status := model.ContactInProgress
	patch := &model.ContactPatch{Status: &status}
	patch.Stamp(model.ActorSnapshot{Username: "admin", UserID: "u1"}, now())

	updated, err := s.UpdateContact(ctx, ids[1], patch)
	if err != nil || updated == nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	if updated.Status != model.ContactInProgress || updated.UpdatedBy.Username != "admin" {
		t.Errorf("updated = %+v", updated)
	}
	if missing, err := s.UpdateContact(ctx, model.NewID(), patch); err != nil || missing != nil {
		t.Errorf("missing contact: %v %v", missing, err)
	}

	n, err := s.BulkUpdateContacts(ctx, []string{ids[2], ids[3], model.NewID()}, patch)
	if err != nil || n != 2 {
		t.Errorf("BulkUpdateContacts = %d, %v", n, err)
	}

	groups, err := s.CountContactsBy(ctx, storage.GroupByStatus)
	if err != nil {
		t.Fatalf("CountContactsBy: %v", err)
	}
	st := model.NewStatusTotals(groups)
	if st["total"] != 25 || st["resolved"] != 5 || st["inProgress"] != 3 {
		t.Errorf("status totals = %v", st)
	}

	days, err := s.CountContactsByDay(ctx, time.Now().AddDate(0, 0, -7))
	if err != nil || len(days) == 0 {
		t.Fatalf("CountContactsByDay: %v %v", days, err)
	}

	exported, _ := s.ExportContacts(ctx, storage.ContactFilter{Status: "Resolved"})
	if len(exported) != 5 {
		t.Errorf("export = %d", len(exported))
	}

	if err := s.DeleteContact(ctx, ids[0]); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}
	if err := s.DeleteContact(ctx, ids[0]); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
