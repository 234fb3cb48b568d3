package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCluster() *Cluster {
	return &Cluster{
		ClusterID:   "A",
		ClusterName: "Alpha",
		Villas: []Villa{
			{ID: "1", Status: VillaAvailable, Size: 200, Type: "Twin"},
			{ID: "2", Status: VillaSold, Size: 250, Type: "Standalone"},
			{ID: "3", Status: VillaUnderConstruction, Size: 300, Type: "Standalone"},
			{ID: "4", Status: VillaAvailable, Size: 220, Type: "Twin"},
		},
		IsActive: true,
	}
}

func TestVillaStatus_Valid(t *testing.T) {
	for _, s := range VillaStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, VillaStatus("Reserved").Valid())
	assert.False(t, VillaStatus("available").Valid())
}

// TestCluster_VillaStats 各状态计数之和等于 villa 总数
func TestCluster_VillaStats(t *testing.T) {
	c := sampleCluster()
	st := c.VillaStats()

	assert.Equal(t, VillaStats{Total: 4, Available: 2, Sold: 1, UnderConstruction: 1}, st)
	assert.Equal(t, st.Total, st.Available+st.Sold+st.UnderConstruction)

	empty := (&Cluster{}).VillaStats()
	assert.Zero(t, empty.Total)
}

func TestCluster_FindVilla(t *testing.T) {
	c := sampleCluster()

	v, ok := c.FindVilla("2")
	require.True(t, ok)
	assert.Equal(t, VillaSold, v.Status)

	// 返回的是切片元素本身
	v.Images = append(v.Images, "x.jpg")
	assert.Equal(t, []string{"x.jpg"}, c.Villas[1].Images)

	_, ok = c.FindVilla("99")
	assert.False(t, ok)
}

// TestSumClusterStats 合计等于各行之和
func TestSumClusterStats(t *testing.T) {
	a := sampleCluster()
	b := &Cluster{ClusterID: "B", ClusterName: "Beta", Villas: []Villa{{ID: "1", Status: VillaSold}}}

	totals := SumClusterStats([]ClusterStatsRow{a.StatsRow(), b.StatsRow()})
	assert.Equal(t, ClusterTotals{
		TotalVillas:            5,
		TotalAvailable:         2,
		TotalSold:              2,
		TotalUnderConstruction: 1,
	}, totals)

	assert.Equal(t, ClusterTotals{}, SumClusterStats(nil))
}

func TestCluster_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(sampleCluster())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"clusterId", "clusterName", "villas", "isActive", "createdAt"} {
		assert.Contains(t, raw, key)
	}
}

func TestUser_PasswordHashHidden(t *testing.T) {
	u := User{ID: NewID(), Username: "alice", PasswordHash: "secret-hash"}
	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-hash")
	assert.Len(t, u.ID, 24)
}
