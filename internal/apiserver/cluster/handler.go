// Package cluster 地块与别墅 - HTTP 处理
//
// 读接口公开；创建、修改、删除和图片上传仅限管理员。
// 所有读写只作用于活跃（未软删除）的地块。
package cluster

import (
	"context"
	"io"
	"net/http"
	"strings"

	"villas-admin/internal/apiserver/apierr"
	"villas-admin/internal/apiserver/auth"
	"villas-admin/internal/apiserver/validation"
	"villas-admin/internal/shared/model"
	"villas-admin/internal/shared/storage"
	"villas-admin/pkg/logging"
)

// ImageStore 别墅图片对象存储
type ImageStore interface {
	PutImage(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Handler 地块 HTTP 处理器
type Handler struct {
	store  storage.ClusterStore
	images ImageStore // 可选，为 nil 时图片上传返回 503
	log    *logging.Logger
	resp   *apierr.Responder
}

// NewHandler 创建地块处理器
func NewHandler(store storage.ClusterStore, images ImageStore, log *logging.Logger, resp *apierr.Responder) *Handler {
	return &Handler{store: store, images: images, log: log.Named("cluster"), resp: resp}
}

// RegisterRoutes 注册地块相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux, guard *auth.Guard) {
	mux.HandleFunc("GET /api/clusters", validation.Handler(validation.ClusterList, h.List))
	mux.HandleFunc("GET /api/clusters/stats", h.Stats)
	mux.HandleFunc("GET /api/clusters/clusterId/{clusterId}", h.Get)
	mux.HandleFunc("GET /api/clusters/villa/search/{combinedId}", validation.Handler(validation.VillaSearch, h.SearchVilla))

	mux.HandleFunc("POST /api/clusters", guard.Admin(validation.Handler(validation.Cluster, h.Create)))
	mux.HandleFunc("PUT /api/clusters/{clusterId}", guard.Admin(validation.Handler(validation.Cluster, h.Update)))
	mux.HandleFunc("DELETE /api/clusters/{clusterId}", guard.Admin(h.Delete))
	mux.HandleFunc("POST /api/clusters/{clusterId}/villas/{villaId}/images", guard.Admin(h.UploadImage))
}

func clusterNotFound() *apierr.Error {
	return apierr.NotFound("Cluster not found", "The requested cluster does not exist or is inactive")
}

// ============================================================================
// 查询
// ============================================================================

// List 列出活跃地块
// GET /api/clusters?status=&search=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := storage.ClusterQuery{
		Status: model.VillaStatus(r.URL.Query().Get("status")),
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
	}
	clusters, err := h.store.ListActiveClusters(r.Context(), q)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	h.log.WithContext(r.Context()).Debug("Retrieved clusters", "count", len(clusters))
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"clusters": clusters})
}

// Get 按 clusterId 查询地块及别墅统计
// GET /api/clusters/clusterId/{clusterId}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetActiveCluster(r.Context(), r.PathValue("clusterId"))
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if c == nil {
		h.resp.Write(w, r, clusterNotFound())
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{
		"cluster": c,
		"stats":   c.VillaStats(),
	})
}

// SplitCombinedID 按第一个下划线拆分 clusterId_villaId
func SplitCombinedID(combinedID string) (clusterID, villaID string, ok bool) {
	clusterID, villaID, found := strings.Cut(combinedID, "_")
	if !found || clusterID == "" || villaID == "" {
		return "", "", false
	}
	return clusterID, villaID, true
}

// SearchVilla 按组合 ID 查找别墅
// GET /api/clusters/villa/search/{combinedId}
func (h *Handler) SearchVilla(w http.ResponseWriter, r *http.Request) {
	combinedID := r.PathValue("combinedId")
	clusterID, villaID, ok := SplitCombinedID(combinedID)
	if !ok {
		h.resp.Write(w, r, apierr.BadRequest("Invalid format", "Use format: clusterId_villaId"))
		return
	}

	c, err := h.store.GetActiveCluster(r.Context(), clusterID)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if c == nil {
		h.resp.Write(w, r, clusterNotFound())
		return
	}
	villa, found := c.FindVilla(villaID)
	if !found {
		h.resp.Write(w, r, apierr.NotFound("Villa not found", "The requested villa does not exist in this cluster"))
		return
	}

	h.log.WithContext(r.Context()).Debug("Villa searched", "combined_id", combinedID)
	apierr.WriteJSON(w, http.StatusOK, map[string]any{
		"cluster": map[string]string{
			"clusterId":   c.ClusterID,
			"clusterName": c.ClusterName,
		},
		"villa": villa,
	})
}

// Stats 全部活跃地块的别墅统计与合计
// GET /api/clusters/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ClusterStats(r.Context())
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if rows == nil {
		rows = []model.ClusterStatsRow{}
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{
		"clusters": rows,
		"totals":   model.SumClusterStats(rows),
	})
}
