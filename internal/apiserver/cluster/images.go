package cluster

import (
	"errors"
	"net/http"
	"strings"

	"villas-admin/internal/apiserver/apierr"
	"villas-admin/internal/apiserver/auth"
	"villas-admin/internal/shared/objstore"
	"villas-admin/internal/shared/storage"
)

const (
	maxImageSize  = 5 << 20              // 单张图片上限
	maxUploadBody = maxImageSize + 1<<20 // 请求体上限，留出表单开销
)

// UploadImage 上传别墅图片，URL 追加到 villa.images
// POST /api/clusters/{clusterId}/villas/{villaId}/images  (multipart 字段 image)
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		h.resp.Write(w, r, apierr.Unavailable("Image storage is not configured"))
		return
	}
	ctx := r.Context()
	clusterID, villaID := r.PathValue("clusterId"), r.PathValue("villaId")

	c, err := h.store.GetActiveCluster(ctx, clusterID)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if c == nil {
		h.resp.Write(w, r, clusterNotFound())
		return
	}
	if _, ok := c.FindVilla(villaID); !ok {
		h.resp.Write(w, r, apierr.NotFound("Villa not found", "The requested villa does not exist in this cluster"))
		return
	}

	// 超出 maxImageSize 的部分落盘；r 可能已被中间件替换，net/http 不会代为清理
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.resp.Write(w, r, imageTooLarge())
			return
		}
		h.resp.Write(w, r, apierr.BadRequest("Invalid upload", err.Error()))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		h.resp.Write(w, r, apierr.BadRequest("Image file is required", "Send the file in the \"image\" form field"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		h.resp.Write(w, r, apierr.BadRequest("Only image files are allowed", contentType))
		return
	}
	if header.Size > maxImageSize {
		h.resp.Write(w, r, imageTooLarge())
		return
	}

	key := objstore.ImageKey(clusterID, villaID, header.Filename)
	url, err := h.images.PutImage(ctx, key, file, header.Size, contentType)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}

	if err := h.store.AppendVillaImage(ctx, clusterID, villaID, url); err != nil {
		// 地块在上传期间被删除或修改，回收已上传的对象
		if delErr := h.images.Delete(ctx, key); delErr != nil {
			h.log.WithContext(ctx).Warn("Failed to remove orphaned image", "key", key, "error", delErr)
		}
		if errors.Is(err, storage.ErrNotFound) {
			h.resp.Write(w, r, apierr.NotFound("Villa not found", "The requested villa does not exist in this cluster"))
			return
		}
		h.resp.Write(w, r, err)
		return
	}

	h.log.WithContext(ctx).Info("Villa image uploaded",
		"cluster_id", clusterID, "villa_id", villaID, "key", key, "by", auth.GetAuthUser(ctx).Email)
	apierr.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "Image uploaded successfully",
		"url":     url,
	})
}

func imageTooLarge() *apierr.Error {
	return apierr.BadRequest("Image too large", "Maximum size is 5MB")
}
