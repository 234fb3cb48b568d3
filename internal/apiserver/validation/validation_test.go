package validation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"villas-admin/internal/apiserver/apierr"
)

func fields(errs []apierr.FieldError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestRegistration_CollectsAllErrors(t *testing.T) {
	in := &Input{Body: map[string]any{
		"username": "a!",
		"email":    "not-an-email",
		"password": "abc",
	}}
	errs := Registration.Validate(in)

	// username 两条、email 一条、password 两条，全部报告
	assert.Equal(t, []string{"username", "username", "email", "password", "password"}, fields(errs))
	assert.Equal(t, "not-an-email", errs[2].Value)
}

func TestRegistration_Valid(t *testing.T) {
	in := &Input{Body: map[string]any{
		"username": "  villa_fan  ",
		"email":    " Buyer@Example.COM ",
		"password": "Secret1",
	}}
	require.Empty(t, Registration.Validate(in))
	assert.Equal(t, "villa_fan", in.Body["username"])
	assert.Equal(t, "buyer@example.com", in.Body["email"])
}

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"Secret1", true},
		{"secret1", false},
		{"SECRET1", false},
		{"Secret", false},
		{"Ab1", true}, // 长度由单独的规则检查
	}
	check := StrongPassword()
	for _, tt := range tests {
		if got := check(tt.password); got != tt.ok {
			t.Errorf("StrongPassword(%q) = %v, want %v", tt.password, got, tt.ok)
		}
	}
}

func TestContactRules(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]any
		invalid []string
	}{
		{
			name: "valid",
			body: map[string]any{"name": "Jane Doe", "email": "jane@example.com", "phone": "+971501234567", "message": "Interested in a villa"},
		},
		{
			name:    "bad phone leading zero",
			body:    map[string]any{"name": "Jane Doe", "email": "jane@example.com", "phone": "0501234567", "message": "Interested in a villa"},
			invalid: []string{"phone"},
		},
		{
			name:    "digits in name",
			body:    map[string]any{"name": "Jane2", "email": "jane@example.com", "phone": "12345", "message": "Interested in a villa"},
			invalid: []string{"name"},
		},
		{
			name:    "short message and bad source",
			body:    map[string]any{"name": "Jane", "email": "jane@example.com", "phone": "12345", "message": "  hi  ", "source": "Fax"},
			invalid: []string{"message", "source"},
		},
		{
			name:    "interested unit too long",
			body:    map[string]any{"name": "Jane", "email": "jane@example.com", "phone": "12345", "message": "Interested in a villa", "interestedUnit": strings.Repeat("x", 201)},
			invalid: []string{"interestedUnit"},
		},
		{
			name:    "everything missing",
			body:    map[string]any{},
			invalid: []string{"name", "name", "email", "phone", "message"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Contact.Validate(&Input{Body: tt.body})
			assert.Equal(t, tt.invalid, fields(errs))
		})
	}
}

func TestClusterRules_WildcardPaths(t *testing.T) {
	in := &Input{Body: map[string]any{
		"clusterName": "Palm Grove",
		"clusterId":   "PG-1",
		"x":           "12.5",
		"y":           40.0,
		"villas": []any{
			map[string]any{"id": "v1", "size": 250.0, "type": "Townhouse"},
			map[string]any{"id": " ", "size": 0.0, "type": "Villa", "status": "Demolished", "bedrooms": 2.5},
		},
	}}
	errs := Cluster.Validate(in)
	assert.Equal(t, []string{"villas[1].id", "villas[1].size", "villas[1].status", "villas[1].bedrooms"}, fields(errs))
	assert.Equal(t, 12.5, in.Body["x"], "numeric strings are converted")
}

func TestClusterRules_NoVillas(t *testing.T) {
	errs := Cluster.Validate(&Input{Body: map[string]any{
		"clusterName": "Palm Grove",
		"clusterId":   "bad id!",
		"x":           1.0,
		"y":           "north",
		"villas":      []any{},
	}})
	assert.Equal(t, []string{"clusterId", "y", "villas"}, fields(errs))
}

func TestContactUpdateRules(t *testing.T) {
	in := &Input{
		Path: map[string]any{"id": "abc"},
		Body: map[string]any{
			"status":       "Done",
			"priority":     "Urgent",
			"followUpDate": "2025-03-01",
			"salesComment": strings.Repeat("c", 501),
		},
	}
	errs := ContactUpdate.Validate(in)
	assert.Equal(t, []string{"id", "status", "salesComment"}, fields(errs))
	assert.Equal(t, "2025-03-01T00:00:00Z", in.Body["followUpDate"])
}

func TestIsDate(t *testing.T) {
	tests := []struct {
		value any
		ok    bool
	}{
		{"2025-03-01", true},
		{"2024-02-29", true},
		{"2025-03-01T09:30:00Z", true},
		{"2025-03-01T09:30:00.123+04:00", true},
		{"2024-13-45", false},
		{"2023-02-29", false},
		{"2025-03-01T25:00:00Z", false},
		{"01/03/2025", false},
		{20250301, false},
	}
	check := IsDate()
	for _, tt := range tests {
		assert.Equal(t, tt.ok, check(tt.value), "%v", tt.value)
	}
}

func TestContactUpdateRules_ImpossibleDate(t *testing.T) {
	for _, date := range []string{"2024-13-45", "2024-02-30", "2024-02-30T00:00:00Z"} {
		errs := ContactUpdate.Validate(&Input{
			Path: map[string]any{"id": "65f1c2a9b3e4d5f6a7b8c9d0"},
			Body: map[string]any{"followUpDate": date},
		})
		require.Len(t, errs, 1, date)
		assert.Equal(t, "followUpDate", errs[0].Field)
		assert.Equal(t, "Follow-up date must be a valid date", errs[0].Message)
	}
}

func TestBulkUpdateRules_Nested(t *testing.T) {
	errs := BulkUpdate.Validate(&Input{Body: map[string]any{
		"contactIds": []any{"x"},
		"updateData": map[string]any{"status": "Resolved", "priority": "Sometime"},
	}})
	assert.Equal(t, []string{"updateData.priority"}, fields(errs))

	// updateData 缺失时所有字段按可选跳过
	assert.Empty(t, BulkUpdate.Validate(&Input{Body: map[string]any{"contactIds": []any{"x"}}}))
}

func TestPaginationRules(t *testing.T) {
	tests := []struct {
		query   map[string]any
		invalid []string
	}{
		{map[string]any{}, nil},
		{map[string]any{"page": "2", "limit": "100"}, nil},
		{map[string]any{"page": "0"}, []string{"page"}},
		{map[string]any{"limit": "101"}, []string{"limit"}},
		{map[string]any{"page": "1.5", "limit": "abc"}, []string{"page", "limit"}},
		{map[string]any{"page": ""}, nil},
	}
	for _, tt := range tests {
		errs := Pagination.Validate(&Input{Query: tt.query})
		assert.Equal(t, tt.invalid, fields(errs), "query %v", tt.query)
	}
}

func TestVillaSearchRule(t *testing.T) {
	tests := []struct {
		id string
		ok bool
	}{
		{"clusterA_v1", true},
		{"PG-1_villa-2", true},
		{"noUnderscore", false},
		{"_v1", false},
		{"clusterA_", false},
	}
	for _, tt := range tests {
		errs := VillaSearch.Validate(&Input{Path: map[string]any{"combinedId": tt.id}})
		if (len(errs) == 0) != tt.ok {
			t.Errorf("combinedId %q: errs = %v, want ok=%v", tt.id, errs, tt.ok)
		}
	}
}

func TestHandler(t *testing.T) {
	type loginReq struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	var got loginReq
	h := Handler(Login, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, Bind(r, &got))
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("valid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":" A@B.io ","password":"x"}`)))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "a@b.io", got.Email)
	})

	t.Run("invalid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":"nope"}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var body struct {
			Error   string              `json:"error"`
			Details []apierr.FieldError `json:"details"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Validation failed", body.Error)
		assert.Equal(t, []string{"email", "password"}, fields(body.Details))
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest("POST", "/login", strings.NewReader(`{"email":`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid JSON")
	})
}

func TestHandler_PathAndQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /villa/{combinedId}", Handler(VillaSearch, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.HandleFunc("GET /list", Handler(Pagination, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		path   string
		status int
	}{
		{"/villa/A_1", http.StatusOK},
		{"/villa/A1", http.StatusBadRequest},
		{"/list?page=2&limit=5", http.StatusOK},
		{"/list?limit=500", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
		assert.Equal(t, tt.status, rec.Code, tt.path)
	}
}
