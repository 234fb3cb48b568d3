package contact

import (
	"io"
	"net/http"
	"strings"
	"time"

	"villas-admin/internal/apiserver/apierr"
	"villas-admin/internal/shared/model"
	"villas-admin/internal/shared/storage"
)

// csvHeader 导出表头，列顺序固定
const csvHeader = "Name,Email,Phone,Interested Unit,Message,Status,Priority,Source,Created At\n"

// writeCSV 每个值用双引号包裹，行之间以 \n 分隔，末行无换行
//
// 值内的双引号和换行不做转义，下游导入方依赖这一格式。
func writeCSV(w io.Writer, contacts []*model.Contact) error {
	var b strings.Builder
	b.WriteString(csvHeader)
	for i, c := range contacts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fields := []string{
			c.Name, c.Email, c.Phone, c.InterestedUnit, c.Message,
			string(c.Status), string(c.Priority), string(c.Source),
			c.CreatedAt.UTC().Format(time.RFC3339),
		}
		for j, f := range fields {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(f)
			b.WriteByte('"')
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type exportInfo struct {
	Total      int                   `json:"total"`
	Filters    storage.ContactFilter `json:"filters"`
	ExportedAt time.Time             `json:"exportedAt"`
}

// Export 导出留言，format=csv|json（默认 json）
// GET /api/contacts/export?format=&status=&priority=&source=
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	filter := filterFromQuery(r)

	contacts, err := h.store.ExportContacts(ctx, filter)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []*model.Contact{}
	}

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=contacts.csv")
		w.WriteHeader(http.StatusOK)
		if err := writeCSV(w, contacts); err != nil {
			h.log.WithContext(ctx).Warn("CSV export interrupted", "error", err)
			return
		}
	} else {
		apierr.WriteJSON(w, http.StatusOK, map[string]any{
			"contacts": contacts,
			"exportInfo": exportInfo{
				Total:      len(contacts),
				Filters:    filter,
				ExportedAt: h.now(),
			},
		})
	}

	h.log.WithContext(ctx).Info("Exported contacts", "count", len(contacts), "format", format)
}
