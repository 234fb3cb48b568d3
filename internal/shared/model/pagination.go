package model

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageRequest 分页请求（page 从 1 开始）
type PageRequest struct {
	Page  int
	Limit int
}

// NewPageRequest 规范化分页参数：page 最小为 1，limit 取值 [1,100]，0 表示默认值
func NewPageRequest(page, limit int) PageRequest {
	if page < 1 {
		page = DefaultPage
	}
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 1:
		limit = 1
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return PageRequest{Page: page, Limit: limit}
}

// Offset 跳过的记录数
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination 列表响应中的分页信息
type Pagination struct {
	Current    int   `json:"current"`
	Total      int   `json:"total"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
	TotalItems int64 `json:"totalItems"`
}

// NewPagination 由请求与总数计算分页信息
func NewPagination(p PageRequest, totalItems int64) Pagination {
	limit := int64(p.Limit)
	if limit < 1 {
		limit = DefaultLimit
	}
	pages := int((totalItems + limit - 1) / limit)
	return Pagination{
		Current:    p.Page,
		Total:      pages,
		HasNext:    int64(p.Page)*limit < totalItems,
		HasPrev:    p.Page > 1,
		TotalItems: totalItems,
	}
}
