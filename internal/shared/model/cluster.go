package model

import "time"

// ============================================================================
// Villa
// ============================================================================

// VillaStatus 别墅销售状态
type VillaStatus string

const (
	VillaAvailable         VillaStatus = "Available"
	VillaSold              VillaStatus = "Sold"
	VillaUnderConstruction VillaStatus = "Under Construction"
)

// VillaStatuses 所有合法的别墅状态
var VillaStatuses = []VillaStatus{VillaAvailable, VillaSold, VillaUnderConstruction}

// Valid 判断状态是否合法
func (s VillaStatus) Valid() bool {
	for _, v := range VillaStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Villa 别墅单元，仅作为 Cluster 的内嵌文档存在
type Villa struct {
	ID          string      `json:"id" bson:"id"`
	Status      VillaStatus `json:"status" bson:"status"`
	Size        float64     `json:"size" bson:"size"`
	Type        string      `json:"type" bson:"type"`
	Price       *float64    `json:"price,omitempty" bson:"price,omitempty"`
	Bedrooms    *int        `json:"bedrooms,omitempty" bson:"bedrooms,omitempty"`
	Bathrooms   *int        `json:"bathrooms,omitempty" bson:"bathrooms,omitempty"`
	Description string      `json:"description,omitempty" bson:"description,omitempty"`
	Features    []string    `json:"features" bson:"features"`
	Images      []string    `json:"images" bson:"images"`
	CreatedAt   time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// ============================================================================
// Cluster
// ============================================================================

// Cluster 地块
//
// ClusterID 为业务主键（全局唯一，包括已软删除的记录），ID 为存储主键。
// 删除为软删除：IsActive=false 后对所有读接口不可见。
type Cluster struct {
	ID          string    `json:"id" bson:"_id" db:"id"`
	ClusterID   string    `json:"clusterId" bson:"clusterId" db:"cluster_id"`
	ClusterName string    `json:"clusterName" bson:"clusterName" db:"cluster_name"`
	X           float64   `json:"x" bson:"x" db:"x"`
	Y           float64   `json:"y" bson:"y" db:"y"`
	Description string    `json:"description,omitempty" bson:"description,omitempty" db:"description"`
	Amenities   []string  `json:"amenities" bson:"amenities" db:"amenities"`
	Villas      []Villa   `json:"villas" bson:"villas" db:"villas"`
	IsActive    bool      `json:"isActive" bson:"isActive" db:"is_active"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt" db:"updated_at"`
}

// FindVilla 按 villa id 查找内嵌别墅
func (c *Cluster) FindVilla(villaID string) (*Villa, bool) {
	for i := range c.Villas {
		if c.Villas[i].ID == villaID {
			return &c.Villas[i], true
		}
	}
	return nil, false
}

// VillaStats 单个地块的别墅统计（由 Villas 派生，不持久化）
type VillaStats struct {
	Total             int `json:"total"`
	Available         int `json:"available"`
	Sold              int `json:"sold"`
	UnderConstruction int `json:"underConstruction"`
}

// VillaStats 计算别墅统计
func (c *Cluster) VillaStats() VillaStats {
	st := VillaStats{Total: len(c.Villas)}
	for _, v := range c.Villas {
		switch v.Status {
		case VillaAvailable:
			st.Available++
		case VillaSold:
			st.Sold++
		case VillaUnderConstruction:
			st.UnderConstruction++
		}
	}
	return st
}

// ============================================================================
// 汇总统计
// ============================================================================

// ClusterStatsRow 全局统计中的单个地块行
type ClusterStatsRow struct {
	ClusterID               string `json:"clusterId" bson:"clusterId"`
	ClusterName             string `json:"clusterName" bson:"clusterName"`
	VillaCount              int    `json:"villaCount" bson:"villaCount"`
	AvailableVillas         int    `json:"availableVillas" bson:"availableVillas"`
	SoldVillas              int    `json:"soldVillas" bson:"soldVillas"`
	UnderConstructionVillas int    `json:"underConstructionVillas" bson:"underConstructionVillas"`
}

// StatsRow 由地块本身生成统计行
func (c *Cluster) StatsRow() ClusterStatsRow {
	st := c.VillaStats()
	return ClusterStatsRow{
		ClusterID:               c.ClusterID,
		ClusterName:             c.ClusterName,
		VillaCount:              st.Total,
		AvailableVillas:         st.Available,
		SoldVillas:              st.Sold,
		UnderConstructionVillas: st.UnderConstruction,
	}
}

// ClusterTotals 全部活跃地块的合计
type ClusterTotals struct {
	TotalVillas            int `json:"totalVillas"`
	TotalAvailable         int `json:"totalAvailable"`
	TotalSold              int `json:"totalSold"`
	TotalUnderConstruction int `json:"totalUnderConstruction"`
}

// SumClusterStats 将各地块行累加为合计
func SumClusterStats(rows []ClusterStatsRow) ClusterTotals {
	var t ClusterTotals
	for _, r := range rows {
		t.TotalVillas += r.VillaCount
		t.TotalAvailable += r.AvailableVillas
		t.TotalSold += r.SoldVillas
		t.TotalUnderConstruction += r.UnderConstructionVillas
	}
	return t
}
