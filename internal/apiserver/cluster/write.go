package cluster

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"villas-admin/internal/apiserver/apierr"
	"villas-admin/internal/apiserver/auth"
	"villas-admin/internal/apiserver/validation"
	"villas-admin/internal/shared/model"
	"villas-admin/internal/shared/storage"
)

// ============================================================================
// 请求类型
// ============================================================================

type villaRequest struct {
	ID          string            `json:"id"`
	Status      model.VillaStatus `json:"status"`
	Size        float64           `json:"size"`
	Type        string            `json:"type"`
	Price       *float64          `json:"price"`
	Bedrooms    *int              `json:"bedrooms"`
	Bathrooms   *int              `json:"bathrooms"`
	Description string            `json:"description"`
	Features    []string          `json:"features"`
	Images      []string          `json:"images"`
}

type clusterRequest struct {
	ClusterName string         `json:"clusterName"`
	ClusterID   string         `json:"clusterId"`
	X           float64        `json:"x"`
	Y           float64        `json:"y"`
	Description string         `json:"description"`
	Amenities   []string       `json:"amenities"`
	Villas      []villaRequest `json:"villas"`
}

// duplicateVillaIDs 同一地块内别墅 ID 必须唯一
func duplicateVillaIDs(villas []villaRequest) []apierr.FieldError {
	var errs []apierr.FieldError
	seen := make(map[string]bool, len(villas))
	for i, v := range villas {
		if seen[v.ID] {
			errs = append(errs, apierr.FieldError{
				Field:   fmt.Sprintf("villas[%d].id", i),
				Message: "Villa ID must be unique within the cluster",
				Value:   v.ID,
			})
		}
		seen[v.ID] = true
	}
	return errs
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// toCluster 由请求构造地块；previous 非空时保留已有别墅的创建时间
func (req *clusterRequest) toCluster(now time.Time, previous *model.Cluster) *model.Cluster {
	c := &model.Cluster{
		ClusterID:   req.ClusterID,
		ClusterName: req.ClusterName,
		X:           req.X,
		Y:           req.Y,
		Description: req.Description,
		Amenities:   nonNil(req.Amenities),
		Villas:      make([]model.Villa, 0, len(req.Villas)),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, v := range req.Villas {
		status := v.Status
		if status == "" {
			status = model.VillaAvailable
		}
		villa := model.Villa{
			ID:          v.ID,
			Status:      status,
			Size:        v.Size,
			Type:        v.Type,
			Price:       v.Price,
			Bedrooms:    v.Bedrooms,
			Bathrooms:   v.Bathrooms,
			Description: v.Description,
			Features:    nonNil(v.Features),
			Images:      nonNil(v.Images),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if previous != nil {
			if old, ok := previous.FindVilla(v.ID); ok {
				villa.CreatedAt = old.CreatedAt
			}
		}
		c.Villas = append(c.Villas, villa)
	}
	if previous != nil {
		c.ID = previous.ID
		c.CreatedAt = previous.CreatedAt
	}
	return c
}

func (h *Handler) bindCluster(r *http.Request) (*clusterRequest, error) {
	var req clusterRequest
	if err := validation.Bind(r, &req); err != nil {
		return nil, err
	}
	if errs := duplicateVillaIDs(req.Villas); len(errs) > 0 {
		return nil, apierr.ValidationFailed(errs)
	}
	return &req, nil
}

func clusterExists() *apierr.Error {
	return apierr.Conflict("Cluster ID already exists", "A cluster with this ID already exists")
}

// ============================================================================
// 写操作
// ============================================================================

// Create 创建地块
// POST /api/clusters
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := h.bindCluster(r)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	ctx := r.Context()

	// 已软删除的地块同样占用 clusterId
	existing, err := h.store.GetClusterByClusterID(ctx, req.ClusterID)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if existing != nil {
		h.resp.Write(w, r, clusterExists())
		return
	}

	c := req.toCluster(time.Now().UTC(), nil)
	c.ID = model.NewID()
	if err := h.store.CreateCluster(ctx, c); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			h.resp.Write(w, r, clusterExists())
			return
		}
		h.resp.Write(w, r, err)
		return
	}

	h.log.WithContext(ctx).Info("Cluster created",
		"cluster_id", c.ClusterID, "villas", len(c.Villas), "by", auth.GetAuthUser(ctx).Email)
	apierr.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Cluster created successfully!",
		"cluster": c,
		"stats":   c.VillaStats(),
	})
}

// Update 整体替换地块的可变字段，clusterId 不可修改
// PUT /api/clusters/{clusterId}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	req, err := h.bindCluster(r)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	ctx := r.Context()
	clusterID := r.PathValue("clusterId")

	if req.ClusterID != clusterID {
		h.resp.Write(w, r, apierr.BadRequest("Cluster ID cannot be changed",
			fmt.Sprintf("Body clusterId %q does not match %q", req.ClusterID, clusterID)))
		return
	}

	previous, err := h.store.GetActiveCluster(ctx, clusterID)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if previous == nil {
		h.resp.Write(w, r, clusterNotFound())
		return
	}

	c := req.toCluster(time.Now().UTC(), previous)
	if err := h.store.ReplaceCluster(ctx, c); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.resp.Write(w, r, clusterNotFound())
			return
		}
		h.resp.Write(w, r, err)
		return
	}

	h.log.WithContext(ctx).Info("Cluster updated", "cluster_id", clusterID, "by", auth.GetAuthUser(ctx).Email)
	apierr.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Cluster updated successfully!",
		"cluster": c,
		"stats":   c.VillaStats(),
	})
}

// Delete 软删除地块
// DELETE /api/clusters/{clusterId}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clusterID := r.PathValue("clusterId")

	if err := h.store.DeactivateCluster(ctx, clusterID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.resp.Write(w, r, apierr.NotFound("Cluster not found",
				"The requested cluster does not exist or is already deleted"))
			return
		}
		h.resp.Write(w, r, err)
		return
	}

	h.log.WithContext(ctx).Info("Cluster deleted", "cluster_id", clusterID, "by", auth.GetAuthUser(ctx).Email)
	apierr.WriteJSON(w, http.StatusOK, map[string]string{"message": "Cluster deleted successfully!"})
}
