package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"villas-admin/internal/shared/model"
	"villas-admin/internal/shared/storage"
	"villas-admin/internal/shared/storage/dbutil"
)

const clusterColumns = `id, cluster_id, cluster_name, x, y, description, amenities, villas, is_active, created_at, updated_at`

// villaStatusIndex 生成冗余状态列，如 "|Available|Sold|"
func villaStatusIndex(villas []model.Villa) string {
	seen := map[model.VillaStatus]bool{}
	var b strings.Builder
	b.WriteString("|")
	for _, st := range model.VillaStatuses {
		for _, v := range villas {
			if v.Status == st && !seen[st] {
				seen[st] = true
				b.WriteString(string(st))
				b.WriteString("|")
			}
		}
	}
	return b.String()
}

func scanCluster(row interface{ Scan(...interface{}) error }) (*model.Cluster, error) {
	c := &model.Cluster{}
	var description, amenities, villas sql.NullString
	if err := row.Scan(&c.ID, &c.ClusterID, &c.ClusterName, &c.X, &c.Y,
		&description, &amenities, &villas, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Description = description.String
	var err error
	if c.Amenities, err = fromJSON[string](amenities); err != nil {
		return nil, err
	}
	if c.Villas, err = fromJSON[model.Villa](villas); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Store) queryClusters(ctx context.Context, query string, args ...interface{}) ([]*model.Cluster, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clusters := []*model.Cluster{}
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, c)
	}
	return clusters, rows.Err()
}

func (r *Store) getCluster(ctx context.Context, where string, args ...interface{}) (*model.Cluster, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+clusterColumns+` FROM clusters WHERE `+where), args...)
	c, err := scanCluster(row)
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return c, nil
}

func (r *Store) active() string {
	return "is_active = " + r.dialect.BooleanLiteral(true)
}

// CreateCluster 创建地块
func (r *Store) CreateCluster(ctx context.Context, c *model.Cluster) error {
	amenities, err := toJSON(c.Amenities)
	if err != nil {
		return err
	}
	villas, err := toJSON(c.Villas)
	if err != nil {
		return err
	}
	_, err = r.exec(ctx,
		`INSERT INTO clusters (`+clusterColumns+`, villa_statuses)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.ClusterID, c.ClusterName, c.X, c.Y, c.Description, amenities, villas,
		c.IsActive, c.CreatedAt.UTC(), c.UpdatedAt.UTC(), villaStatusIndex(c.Villas),
	)
	return err
}

// GetActiveCluster 按 clusterId 查找活跃地块
func (r *Store) GetActiveCluster(ctx context.Context, clusterID string) (*model.Cluster, error) {
	return r.getCluster(ctx, `cluster_id = $1 AND `+r.active(), clusterID)
}

// GetClusterByClusterID 按 clusterId 查找（含已删除）
func (r *Store) GetClusterByClusterID(ctx context.Context, clusterID string) (*model.Cluster, error) {
	return r.getCluster(ctx, `cluster_id = $1`, clusterID)
}

// ListActiveClusters 列出活跃地块，按创建时间倒序
func (r *Store) ListActiveClusters(ctx context.Context, q storage.ClusterQuery) ([]*model.Cluster, error) {
	var cond dbutil.Conditions
	cond.AddRaw(r.active())
	if q.Status != "" {
		cond.Add(`villa_statuses LIKE %s ESCAPE '\'`, "%|"+dbutil.EscapeLike(string(q.Status))+"|%")
	}
	if q.Search != "" {
		p := dbutil.ContainsPattern(q.Search)
		cond.Add(`(LOWER(cluster_name) LIKE %s ESCAPE '\' OR LOWER(cluster_id) LIKE %s ESCAPE '\')`, p, p)
	}
	return r.queryClusters(ctx,
		`SELECT `+clusterColumns+` FROM clusters`+cond.Where()+` ORDER BY created_at DESC`,
		cond.Args()...)
}

// ReplaceCluster 整体替换活跃地块（id/cluster_id/created_at 不变）
func (r *Store) ReplaceCluster(ctx context.Context, c *model.Cluster) error {
	amenities, err := toJSON(c.Amenities)
	if err != nil {
		return err
	}
	villas, err := toJSON(c.Villas)
	if err != nil {
		return err
	}
	return r.execOne(ctx,
		`UPDATE clusters SET cluster_name = $1, x = $2, y = $3, description = $4,
		   amenities = $5, villas = $6, villa_statuses = $7, updated_at = $8
		 WHERE cluster_id = $9 AND `+r.active(),
		c.ClusterName, c.X, c.Y, c.Description, amenities, villas,
		villaStatusIndex(c.Villas), c.UpdatedAt.UTC(), c.ClusterID,
	)
}

// DeactivateCluster 软删除
func (r *Store) DeactivateCluster(ctx context.Context, clusterID string) error {
	return r.execOne(ctx,
		`UPDATE clusters SET is_active = $1, updated_at = $2 WHERE cluster_id = $3 AND `+r.active(),
		false, time.Now().UTC(), clusterID,
	)
}

// AppendVillaImage 向指定别墅追加图片 URL
//
// 别墅以 JSON 保存，在事务内读出、修改、写回。
func (r *Store) AppendVillaImage(ctx context.Context, clusterID, villaID, url string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var villasJSON sql.NullString
	err = tx.QueryRowContext(ctx,
		r.rebind(`SELECT villas FROM clusters WHERE cluster_id = $1 AND `+r.active()), clusterID,
	).Scan(&villasJSON)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}

	villas, err := fromJSON[model.Villa](villasJSON)
	if err != nil {
		return err
	}
	c := &model.Cluster{Villas: villas}
	v, ok := c.FindVilla(villaID)
	if !ok {
		return storage.ErrNotFound
	}
	now := time.Now().UTC()
	v.Images = append(v.Images, url)
	v.UpdatedAt = now

	encoded, err := toJSON(c.Villas)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		r.rebind(`UPDATE clusters SET villas = $1, updated_at = $2 WHERE cluster_id = $3`),
		encoded, now, clusterID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ClusterStats 逐个地块计算别墅统计
func (r *Store) ClusterStats(ctx context.Context) ([]model.ClusterStatsRow, error) {
	clusters, err := r.ListActiveClusters(ctx, storage.ClusterQuery{})
	if err != nil {
		return nil, err
	}
	rows := make([]model.ClusterStatsRow, 0, len(clusters))
	for _, c := range clusters {
		rows = append(rows, c.StatsRow())
	}
	return rows, nil
}
