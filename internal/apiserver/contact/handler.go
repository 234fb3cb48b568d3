// Package contact 客户留言 - HTTP 处理
//
// 公开接口只有提交留言；查询、跟进、批量修改、统计和导出仅限管理员。
// 状态取值不做迁移合法性检查，任意状态之间都可以直接修改。
package contact

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"villas-admin/internal/apiserver/apierr"
	"villas-admin/internal/apiserver/auth"
	"villas-admin/internal/apiserver/validation"
	"villas-admin/internal/shared/model"
	"villas-admin/internal/shared/storage"
	"villas-admin/pkg/logging"
)

// IntakeRecorder 记录公开留言的提交量
type IntakeRecorder interface {
	ContactCreated(source model.ContactSource)
}

// Handler 留言 HTTP 处理器
type Handler struct {
	store   storage.ContactStore
	log     *logging.Logger
	resp    *apierr.Responder
	metrics IntakeRecorder // 可选
	now     func() time.Time
}

// NewHandler 创建留言处理器
func NewHandler(store storage.ContactStore, log *logging.Logger, resp *apierr.Responder, metrics IntakeRecorder) *Handler {
	return &Handler{
		store:   store,
		log:     log.Named("contact"),
		resp:    resp,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes 注册留言相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux, guard *auth.Guard) {
	mux.HandleFunc("POST /api/contacts", validation.Handler(validation.Contact, h.Create))

	mux.HandleFunc("GET /api/contacts", guard.Admin(validation.Handler(validation.Pagination, h.List)))
	mux.HandleFunc("GET /api/contacts/stats", guard.Admin(h.Stats))
	mux.HandleFunc("GET /api/contacts/export", guard.Admin(h.Export))
	mux.HandleFunc("PUT /api/contacts/bulk/update", guard.Admin(validation.Handler(validation.BulkUpdate, h.BulkUpdate)))
	mux.HandleFunc("GET /api/contacts/{id}", guard.Admin(validation.Handler(validation.ContactID, h.Get)))
	mux.HandleFunc("PUT /api/contacts/{id}", guard.Admin(validation.Handler(validation.ContactUpdate, h.Update)))
	mux.HandleFunc("DELETE /api/contacts/{id}", guard.Admin(validation.Handler(validation.ContactID, h.Delete)))
}

func contactNotFound() *apierr.Error {
	return apierr.NotFound("Contact not found", "The requested contact does not exist")
}

// filterFromQuery 精确过滤条件
func filterFromQuery(r *http.Request) storage.ContactFilter {
	q := r.URL.Query()
	return storage.ContactFilter{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Source:   q.Get("source"),
	}
}

// ============================================================================
// 公开提交
// ============================================================================

type createRequest struct {
	Name           string              `json:"name"`
	Email          string              `json:"email"`
	Phone          string              `json:"phone"`
	InterestedUnit string              `json:"interestedUnit"`
	Message        string              `json:"message"`
	Source         model.ContactSource `json:"source"`
}

// Create 提交留言
// POST /api/contacts
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := validation.Bind(r, &req); err != nil {
		h.resp.Write(w, r, err)
		return
	}

	now := h.now()
	c := &model.Contact{
		ID:             model.NewID(),
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		InterestedUnit: req.InterestedUnit,
		Message:        req.Message,
		Source:         req.Source,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.ApplyDefaults()

	if err := h.store.CreateContact(r.Context(), c); err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ContactCreated(c.Source)
	}

	h.log.WithContext(r.Context()).Info("New contact inquiry created", "contact_id", c.ID, "email", c.Email)
	apierr.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Your message has been received! We will get back to you soon.",
		"contact": c.Summary(),
	})
}

// ============================================================================
// 查询
// ============================================================================

// List 分页查询留言
// GET /api/contacts?page=&limit=&status=&priority=&source=&search=&sortBy=&sortOrder=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	query := storage.ContactQuery{
		ContactFilter: filterFromQuery(r),
		Search:        strings.TrimSpace(q.Get("search")),
		Page:          model.NewPageRequest(page, limit),
		Sort:          storage.NewSortSpec(q.Get("sortBy"), q.Get("sortOrder")),
	}
	contacts, total, err := h.store.ListContacts(r.Context(), query)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []*model.Contact{}
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]any{
		"contacts":   contacts,
		"pagination": model.NewPagination(query.Page, total),
	})
}

// Get 查询单条留言
// GET /api/contacts/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetContact(r.Context(), r.PathValue("id"))
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if c == nil {
		h.resp.Write(w, r, contactNotFound())
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"contact": c})
}

// Stats 留言统计
// GET /api/contacts/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := model.ContactStats{}

	byStatus, err := h.store.CountContactsBy(ctx, storage.GroupByStatus)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	stats.StatusStats = model.NewStatusTotals(byStatus)

	if stats.PriorityStats, err = h.store.CountContactsBy(ctx, storage.GroupByPriority); err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if stats.SourceStats, err = h.store.CountContactsBy(ctx, storage.GroupBySource); err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if stats.RecentActivity, err = h.store.CountContactsByDay(ctx, h.now().AddDate(0, 0, -7)); err != nil {
		h.resp.Write(w, r, err)
		return
	}

	for _, groups := range []*[]model.GroupCount{&stats.PriorityStats, &stats.SourceStats, &stats.RecentActivity} {
		if *groups == nil {
			*groups = []model.GroupCount{}
		}
	}
	apierr.WriteJSON(w, http.StatusOK, stats)
}

// ============================================================================
// 跟进
// ============================================================================

// Update 修改单条留言并记录修改者
// PUT /api/contacts/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.ContactPatch
	if err := validation.Bind(r, &patch); err != nil {
		h.resp.Write(w, r, err)
		return
	}
	ctx := r.Context()
	actor := auth.GetAuthUser(ctx)
	patch.Stamp(auth.Actor(actor), h.now())

	c, err := h.store.UpdateContact(ctx, r.PathValue("id"), &patch)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if c == nil {
		h.resp.Write(w, r, contactNotFound())
		return
	}

	h.log.WithContext(ctx).Info("Contact updated", "contact_id", c.ID, "by", actor.Email)
	apierr.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Contact updated successfully",
		"contact": c,
	})
}

// Delete 删除留言
// DELETE /api/contacts/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := h.store.DeleteContact(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.resp.Write(w, r, contactNotFound())
			return
		}
		h.resp.Write(w, r, err)
		return
	}

	h.log.WithContext(ctx).Info("Contact deleted", "contact_id", id, "by", auth.GetAuthUser(ctx).Email)
	apierr.WriteJSON(w, http.StatusOK, map[string]string{"message": "Contact deleted successfully"})
}

type bulkRequest struct {
	UpdateData model.ContactPatch `json:"updateData"`
}

// contactIDs 从请求体读取非空的 ID 字符串数组
func contactIDs(body map[string]any) ([]string, bool) {
	raw, ok := body["contactIds"].([]any)
	if !ok || len(raw) == 0 {
		return nil, false
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		id, isStr := v.(string)
		if !isStr {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// BulkUpdate 对多条留言应用同一补丁，不存在的 ID 忽略
// PUT /api/contacts/bulk/update
func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	ids, ok := contactIDs(validation.Body(r))
	if !ok {
		h.resp.Write(w, r, apierr.BadRequest("Invalid request", "Contact IDs array is required"))
		return
	}
	var req bulkRequest
	if err := validation.Bind(r, &req); err != nil {
		h.resp.Write(w, r, err)
		return
	}
	ctx := r.Context()
	actor := auth.GetAuthUser(ctx)
	req.UpdateData.Stamp(auth.Actor(actor), h.now())

	modified, err := h.store.BulkUpdateContacts(ctx, ids, &req.UpdateData)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}

	h.log.WithContext(ctx).Info("Bulk updated contacts", "requested", len(ids), "modified", modified, "by", actor.Email)
	apierr.WriteJSON(w, http.StatusOK, map[string]any{
		"message":       "Successfully updated " + strconv.FormatInt(modified, 10) + " contacts",
		"modifiedCount": modified,
	})
}
