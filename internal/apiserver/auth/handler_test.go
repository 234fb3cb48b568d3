package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"villas-admin/internal/apiserver/apierr"
	"villas-admin/internal/shared/model"
	sqlitedriver "villas-admin/internal/shared/storage/driver/sqlite"
	"villas-admin/internal/shared/storage/repository"
	"villas-admin/pkg/logging"
)

type testEnv struct {
	mux   *http.ServeMux
	store *repository.Store
	cfg   Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := repository.NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })

	cfg := Config{Secret: "test-secret", TokenTTL: time.Hour, CookieName: "token", BcryptCost: bcrypt.MinCost}
	log := logging.NewWithWriter(logging.Config{Level: "error"}, io.Discard)
	resp := apierr.NewResponder(log, true)

	mux := http.NewServeMux()
	NewHandler(store, cfg, log, resp).RegisterRoutes(mux, NewGuard(cfg, store, resp))
	return &testEnv{mux: mux, store: store, cfg: cfg}
}

func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedUser(t *testing.T, username, email, password string, role model.UserRole, active bool) *model.User {
	t.Helper()
	hash, err := HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now().UTC()
	u := &model.User{
		ID:           model.NewID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) tokenFor(t *testing.T, u *model.User) string {
	t.Helper()
	token, err := IssueToken(e.cfg, u)
	require.NoError(t, err)
	return token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// ============================================================================
// 注册 / 登录 / 登出
// ============================================================================

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do("POST", "/api/auth/register", `{"username":"alice","email":"Alice@Example.com","password":"Secret1"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "User registered successfully!", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, true, user["isActive"])
	assert.NotContains(t, rec.Body.String(), "$2a$")

	claims, err := ParseToken(env.cfg, body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, user["id"], claims.Subject)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Equal(t, body["token"], cookies[0].Value)
	assert.False(t, cookies[0].HttpOnly, "cookie is only hardened in production")
	assert.Equal(t, 3600, cookies[0].MaxAge)
}

func TestRegister_Conflict(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		details string
	}{
		{"same email", `{"username":"bob","email":"alice@example.com","password":"Secret1"}`, "Email already registered"},
		{"same username", `{"username":"alice","email":"other@example.com","password":"Secret1"}`, "Username already taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.seedUser(t, "alice", "alice@example.com", "Secret1", model.UserRoleUser, true)

			rec := env.do("POST", "/api/auth/register", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "User already exists", body["error"])
			assert.Equal(t, tt.details, body["details"])

			// 未创建新记录
			other, err := env.store.GetUserByEmail(context.Background(), "other@example.com")
			require.NoError(t, err)
			assert.Nil(t, other)
			bob, err := env.store.GetUserByUsername(context.Background(), "bob")
			require.NoError(t, err)
			assert.Nil(t, bob)
		})
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do("POST", "/api/auth/register", `{"username":"al","email":"x","password":"weak"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Validation failed", body["error"])
	assert.Len(t, body["details"], 4)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "alice", "alice@example.com", "Secret1", model.UserRoleUser, true)

	rec := env.do("POST", "/api/auth/login", `{"email":"ALICE@example.com","password":"Secret1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Login successful", body["message"])
	assert.NotEmpty(t, body["token"])

	stored, err := env.store.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.WithinDuration(t, time.Now(), *stored.LastLogin, time.Minute)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "alice@example.com", "Secret1", model.UserRoleUser, true)

	unknown := env.do("POST", "/api/auth/login", `{"email":"nobody@example.com","password":"Secret1"}`, "")
	wrong := env.do("POST", "/api/auth/login", `{"email":"alice@example.com","password":"Wrong1"}`, "")

	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
	assert.Equal(t, "Invalid credentials", decode(t, wrong)["error"])
}

func TestDummyHash_UsesConfiguredCost(t *testing.T) {
	log := logging.NewWithWriter(logging.Config{Level: "error"}, io.Discard)
	for _, cost := range []int{bcrypt.MinCost, bcrypt.MinCost + 1} {
		h := NewHandler(nil, Config{BcryptCost: cost}, log, apierr.NewResponder(log, true))

		dummy := h.dummyHash()
		got, err := bcrypt.Cost([]byte(dummy))
		require.NoError(t, err)
		assert.Equal(t, cost, got)
		assert.Equal(t, dummy, h.dummyHash(), "hash is built once per handler")
		assert.False(t, CheckPassword("", dummy))
	}
}

func TestLogin_Disabled(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "alice@example.com", "Secret1", model.UserRoleUser, false)

	rec := env.do("POST", "/api/auth/login", `{"email":"alice@example.com","password":"Secret1"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Account disabled", decode(t, rec)["error"])
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do("POST", "/api/auth/logout", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully!", decode(t, rec)["message"])

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

// ============================================================================
// 认证
// ============================================================================

func TestAuthenticate_Codes(t *testing.T) {
	env := newTestEnv(t)
	active := env.seedUser(t, "alice", "alice@example.com", "Secret1", model.UserRoleUser, true)
	inactive := env.seedUser(t, "bob", "bob@example.com", "Secret1", model.UserRoleUser, false)

	expired, err := IssueToken(Config{Secret: env.cfg.Secret, TokenTTL: -time.Minute}, active)
	require.NoError(t, err)
	ghost := &model.User{ID: model.NewID(), Role: model.UserRoleUser}

	tests := []struct {
		name   string
		token  string
		status int
		code   string
	}{
		{"no token", "", http.StatusUnauthorized, apierr.CodeNoToken},
		{"expired", expired, http.StatusUnauthorized, apierr.CodeTokenExpired},
		{"garbage", "abc.def.ghi", http.StatusUnauthorized, apierr.CodeInvalidToken},
		{"inactive user", env.tokenFor(t, inactive), http.StatusUnauthorized, apierr.CodeInvalidUser},
		{"deleted user", env.tokenFor(t, ghost), http.StatusUnauthorized, apierr.CodeInvalidUser},
		{"valid", env.tokenFor(t, active), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do("GET", "/api/auth/profile", "", tt.token)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, decode(t, rec)["code"])
			}
		})
	}
}

func TestAuthenticate_Cookie(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "alice", "alice@example.com", "Secret1", model.UserRoleUser, true)

	req := httptest.NewRequest("GET", "/api/auth/profile", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: env.tokenFor(t, u)})
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
}

func TestGuard_Admin(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice", "alice@example.com", "Secret1", model.UserRoleUser, true)
	admin := env.seedUser(t, "root", "root@example.com", "Secret1", model.UserRoleAdmin, true)

	resp := apierr.NewResponder(nil, false)
	guard := NewGuard(env.cfg, env.store, resp)
	h := guard.Admin(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "root", GetAuthUser(r.Context()).Username)
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest("DELETE", "/x", nil)
	req.Header.Set("Authorization", "Bearer "+env.tokenFor(t, user))
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest("DELETE", "/x", nil)
	req.Header.Set("Authorization", "Bearer "+env.tokenFor(t, admin))
	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// ============================================================================
// 资料 / 密码
// ============================================================================

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "alice", "alice@example.com", "Secret1", model.UserRoleUser, true)
	env.seedUser(t, "bob", "bob@example.com", "Secret1", model.UserRoleUser, true)
	token := env.tokenFor(t, u)

	rec := env.do("PUT", "/api/auth/profile", `{"email":"BOB@example.com"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already taken", decode(t, rec)["error"])

	rec = env.do("PUT", "/api/auth/profile", `{"username":"bob"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username already taken", decode(t, rec)["error"])

	rec = env.do("PUT", "/api/auth/profile", `{"username":"alice2"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Profile updated successfully", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice2", user["username"])
	assert.Equal(t, "alice@example.com", user["email"], "omitted email is kept")
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "alice", "alice@example.com", "Secret1", model.UserRoleUser, true)
	token := env.tokenFor(t, u)

	rec := env.do("PUT", "/api/auth/change-password", `{"currentPassword":"Wrong1","newPassword":"Newpass2"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Current password is incorrect", decode(t, rec)["error"])

	rec = env.do("PUT", "/api/auth/change-password", `{"currentPassword":"Secret1","newPassword":"weak"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation failed", decode(t, rec)["error"])

	rec = env.do("PUT", "/api/auth/change-password", `{"currentPassword":"Secret1","newPassword":"Newpass2"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do("POST", "/api/auth/login", `{"email":"alice@example.com","password":"Newpass2"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnsureAdminUser(t *testing.T) {
	env := newTestEnv(t)
	log := logging.NewWithWriter(logging.Config{Level: "error"}, io.Discard)
	ctx := context.Background()

	require.NoError(t, EnsureAdminUser(ctx, env.store, "", "", bcrypt.MinCost, log))
	require.NoError(t, EnsureAdminUser(ctx, env.store, "admin@example.com", "Admin123", bcrypt.MinCost, log))
	// 重复调用不报错
	require.NoError(t, EnsureAdminUser(ctx, env.store, "admin@example.com", "Admin123", bcrypt.MinCost, log))

	admin, err := env.store.GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, model.UserRoleAdmin, admin.Role)
	assert.True(t, admin.IsActive)
	assert.True(t, CheckPassword("Admin123", admin.PasswordHash))
}
