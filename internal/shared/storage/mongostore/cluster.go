package mongostore

import (
	"context"
	"time"

	"villas-admin/internal/shared/model"
	"villas-admin/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// ClusterStore
// ============================================================================

func activeCluster(clusterID string) bson.D {
	return bson.D{{Key: "clusterId", Value: clusterID}, {Key: "isActive", Value: true}}
}

func (s *Store) CreateCluster(ctx context.Context, c *model.Cluster) error {
	return insertOne(ctx, s.col(ColClusters), c)
}

func (s *Store) GetActiveCluster(ctx context.Context, clusterID string) (*model.Cluster, error) {
	return findOne[model.Cluster](ctx, s.col(ColClusters), activeCluster(clusterID))
}

func (s *Store) GetClusterByClusterID(ctx context.Context, clusterID string) (*model.Cluster, error) {
	return findOne[model.Cluster](ctx, s.col(ColClusters), bson.D{{Key: "clusterId", Value: clusterID}})
}

func (s *Store) ListActiveClusters(ctx context.Context, q storage.ClusterQuery) ([]*model.Cluster, error) {
	filter := bson.D{{Key: "isActive", Value: true}}
	if q.Status != "" {
		filter = append(filter, bson.E{Key: "villas.status", Value: q.Status})
	}
	if q.Search != "" {
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "clusterName", Value: containsRegex(q.Search)}},
			bson.D{{Key: "clusterId", Value: containsRegex(q.Search)}},
		}})
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return findMany[model.Cluster](ctx, s.col(ColClusters), filter, opts)
}

func (s *Store) ReplaceCluster(ctx context.Context, c *model.Cluster) error {
	res, err := s.col(ColClusters).ReplaceOne(ctx, activeCluster(c.ClusterID), c)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeactivateCluster(ctx context.Context, clusterID string) error {
	return updateWhere(ctx, s.col(ColClusters), activeCluster(clusterID), bson.D{{Key: "$set", Value: bson.D{
		{Key: "isActive", Value: false},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}})
}

func (s *Store) AppendVillaImage(ctx context.Context, clusterID, villaID, url string) error {
	now := time.Now().UTC()
	filter := append(activeCluster(clusterID), bson.E{Key: "villas.id", Value: villaID})
	return updateWhere(ctx, s.col(ColClusters), filter, bson.D{
		{Key: "$push", Value: bson.D{{Key: "villas.$.images", Value: url}}},
		{Key: "$set", Value: bson.D{
			{Key: "villas.$.updatedAt", Value: now},
			{Key: "updatedAt", Value: now},
		}},
	})
}

// ClusterStats 用聚合管道在服务端计算每个活跃地块的别墅统计
func (s *Store) ClusterStats(ctx context.Context) ([]model.ClusterStatsRow, error) {
	villas := bson.D{{Key: "$ifNull", Value: bson.A{"$villas", bson.A{}}}}
	countStatus := func(status model.VillaStatus) bson.D {
		return bson.D{{Key: "$size", Value: bson.D{{Key: "$filter", Value: bson.D{
			{Key: "input", Value: villas},
			{Key: "cond", Value: bson.D{{Key: "$eq", Value: bson.A{"$$this.status", string(status)}}}},
		}}}}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "isActive", Value: true}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "clusterId", Value: 1},
			{Key: "clusterName", Value: 1},
			{Key: "villaCount", Value: bson.D{{Key: "$size", Value: villas}}},
			{Key: "availableVillas", Value: countStatus(model.VillaAvailable)},
			{Key: "soldVillas", Value: countStatus(model.VillaSold)},
			{Key: "underConstructionVillas", Value: countStatus(model.VillaUnderConstruction)},
		}}},
	}
	return aggregate[model.ClusterStatsRow](ctx, s.col(ColClusters), pipeline)
}
