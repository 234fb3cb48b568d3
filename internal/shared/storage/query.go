package storage

import "villas-admin/internal/shared/model"

// ClusterQuery 地块列表过滤条件
type ClusterQuery struct {
	// Status 非空时只返回包含该状态别墅的地块
	Status model.VillaStatus
	// Search 对 clusterName/clusterId 做大小写不敏感的子串匹配
	Search string
}

// ContactFilter 留言精确过滤条件（空字符串表示不过滤）
type ContactFilter struct {
	Status   string `json:"status,omitempty"`
	Priority string `json:"priority,omitempty"`
	Source   string `json:"source,omitempty"`
}

// ContactQuery 留言分页查询
type ContactQuery struct {
	ContactFilter
	// Search 对 name/email/phone/message/interestedUnit 做大小写不敏感的子串匹配
	Search string
	Page   model.PageRequest
	Sort   SortSpec
}

// SortSpec 排序规则
type SortSpec struct {
	Field string
	Desc  bool
}

// 可排序字段白名单，key 为 API 字段名
var contactSortFields = map[string]bool{
	"createdAt": true,
	"updatedAt": true,
	"name":      true,
	"email":     true,
	"status":    true,
	"priority":  true,
	"source":    true,
}

// NewSortSpec 规范化排序参数：未知字段回退为 createdAt，order 缺省为 desc，其他值视为升序
func NewSortSpec(field, order string) SortSpec {
	if !contactSortFields[field] {
		field = "createdAt"
	}
	return SortSpec{Field: field, Desc: order == "" || order == "desc"}
}

// GroupField 留言统计的分组字段
type GroupField string

const (
	GroupByStatus   GroupField = "status"
	GroupByPriority GroupField = "priority"
	GroupBySource   GroupField = "source"
)
