package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"villas-admin/internal/apiserver/apierr"
	"villas-admin/internal/shared/model"
	"villas-admin/internal/shared/storage"
	"villas-admin/pkg/logging"
)

// tokenFromRequest 优先读取会话 cookie，其次 Authorization: Bearer
func tokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ============================================================================
// 授权 gate
// ============================================================================

// Gate 授权判定，返回 nil 表示放行
type Gate func(r *http.Request, user *model.User) *apierr.Error

// RequireRole 角色必须属于 roles
func RequireRole(roles ...model.UserRole) Gate {
	required := make([]string, len(roles))
	for i, role := range roles {
		required[i] = string(role)
	}
	return func(r *http.Request, user *model.User) *apierr.Error {
		if user == nil {
			return apierr.Unauthenticated(apierr.CodeAuthRequired)
		}
		for _, role := range roles {
			if user.Role == role {
				return nil
			}
		}
		return apierr.Forbidden(required, string(user.Role))
	}
}

// RequireAdminOrOwner 管理员，或资源所有者本人
//
// 所有者 ID 依次取自路径参数 idField 与 JSON 请求体中的同名字段。
func RequireAdminOrOwner(idField string) Gate {
	return func(r *http.Request, user *model.User) *apierr.Error {
		if user == nil {
			return apierr.Unauthenticated(apierr.CodeAuthRequired)
		}
		if user.Role == model.UserRoleAdmin {
			return nil
		}
		if ownerID := ownerIDFromRequest(r, idField); ownerID != "" && ownerID == user.ID {
			return nil
		}
		return apierr.Forbidden([]string{string(model.UserRoleAdmin), "owner"}, string(user.Role))
	}
}

// ownerIDFromRequest 读取后恢复请求体，不影响后续处理器
func ownerIDFromRequest(r *http.Request, idField string) string {
	if id := r.PathValue(idField); id != "" {
		return id
	}
	if r.Body == nil {
		return ""
	}
	data, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	var body map[string]any
	if json.Unmarshal(data, &body) != nil {
		return ""
	}
	id, _ := body[idField].(string)
	return id
}

// ============================================================================
// Guard
// ============================================================================

// Guard 认证中间件：校验会话令牌并加载用户，再依次执行 gate
type Guard struct {
	cfg   Config
	users storage.UserStore
	resp  *apierr.Responder
}

// NewGuard 创建 Guard
func NewGuard(cfg Config, users storage.UserStore, resp *apierr.Responder) *Guard {
	return &Guard{cfg: cfg, users: users, resp: resp}
}

// Authenticated 要求已登录，并通过全部 gates
func (g *Guard) Authenticated(next http.HandlerFunc, gates ...Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := g.authenticate(r)
		if err != nil {
			g.resp.Write(w, r, err)
			return
		}
		ctx := WithAuthUser(r.Context(), user)
		logging.SetUserID(ctx, user.ID)
		r = r.WithContext(ctx)

		for _, gate := range gates {
			if denied := gate(r, user); denied != nil {
				apierr.Write(w, denied)
				return
			}
		}
		next(w, r)
	}
}

// Admin 仅管理员
func (g *Guard) Admin(next http.HandlerFunc) http.HandlerFunc {
	return g.Authenticated(next, RequireRole(model.UserRoleAdmin))
}

func (g *Guard) authenticate(r *http.Request) (*model.User, error) {
	token := tokenFromRequest(r, g.cfg.CookieName)
	if token == "" {
		return nil, apierr.Unauthenticated(apierr.CodeNoToken)
	}
	claims, err := ParseToken(g.cfg, token)
	switch {
	case errors.Is(err, ErrTokenExpired):
		return nil, apierr.Unauthenticated(apierr.CodeTokenExpired)
	case err != nil:
		return nil, apierr.Unauthenticated(apierr.CodeInvalidToken)
	}

	user, err := g.users.GetUserByID(r.Context(), claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, apierr.Unauthenticated(apierr.CodeInvalidUser)
	}
	return user, nil
}
