package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"villas-admin/internal/apiserver/apierr"
	"villas-admin/internal/apiserver/validation"
	"villas-admin/internal/shared/model"
	"villas-admin/internal/shared/storage"
	"villas-admin/pkg/logging"
)

// Handler 认证 HTTP 处理器
type Handler struct {
	store storage.UserStore
	cfg   Config
	log   *logging.Logger
	resp  *apierr.Responder

	dummyOnce sync.Once
	dummy     string
}

// NewHandler 创建认证处理器
func NewHandler(store storage.UserStore, cfg Config, log *logging.Logger, resp *apierr.Responder) *Handler {
	return &Handler{store: store, cfg: cfg, log: log.Named("auth"), resp: resp}
}

// dummyHash 邮箱不存在时比较用的哈希，cost 与真实密码一致，两种失败耗时相同
func (h *Handler) dummyHash() string {
	h.dummyOnce.Do(func() {
		hash, err := HashPassword("villas-admin-dummy", h.cfg.BcryptCost)
		if err != nil {
			h.log.Warn("Failed to build dummy password hash", "error", err)
			return
		}
		h.dummy = hash
	})
	return h.dummy
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux, guard *Guard) {
	mux.HandleFunc("POST /api/auth/register", validation.Handler(validation.Registration, h.Register))
	mux.HandleFunc("POST /api/auth/login", validation.Handler(validation.Login, h.Login))
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/auth/profile", guard.Authenticated(h.GetProfile))
	mux.HandleFunc("PUT /api/auth/profile", guard.Authenticated(validation.Handler(validation.ProfileUpdate, h.UpdateProfile)))
	mux.HandleFunc("PUT /api/auth/change-password", guard.Authenticated(validation.Handler(validation.ChangePassword, h.ChangePassword)))
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type authResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
	Token   string      `json:"token"`
}

// ============================================================================
// Handlers
// ============================================================================

// Register 用户注册
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := validation.Bind(r, &req); err != nil {
		h.resp.Write(w, r, err)
		return
	}

	existing, err := h.store.FindUserByEmailOrUsername(r.Context(), req.Email, req.Username)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if existing != nil {
		details := "Username already taken"
		if existing.Email == req.Email {
			details = "Email already registered"
		}
		h.resp.Write(w, r, apierr.Conflict("User already exists", details))
		return
	}

	hash, err := HashPassword(req.Password, h.cfg.BcryptCost)
	if err != nil {
		h.resp.Write(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           model.NewID(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.UserRoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		// 并发注册时预检查可能都通过，以唯一索引为准
		if errors.Is(err, storage.ErrDuplicate) {
			h.resp.Write(w, r, apierr.Conflict("User already exists", "Email or username already registered"))
			return
		}
		h.resp.Write(w, r, err)
		return
	}

	token, err := h.issueSession(w, user)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}

	h.log.WithContext(r.Context()).Info("User registered", "user_id", user.ID, "email", user.Email)
	apierr.WriteJSON(w, http.StatusCreated, authResponse{
		Message: "User registered successfully!",
		User:    user,
		Token:   token,
	})
}

// Login 用户登录
//
// 邮箱不存在与密码错误返回同一响应。
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := validation.Bind(r, &req); err != nil {
		h.resp.Write(w, r, err)
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if user == nil {
		CheckPassword(req.Password, h.dummyHash())
		h.resp.Write(w, r, apierr.InvalidCredentials())
		return
	}
	if !CheckPassword(req.Password, user.PasswordHash) {
		h.resp.Write(w, r, apierr.InvalidCredentials())
		return
	}
	if !user.IsActive {
		h.resp.Write(w, r, apierr.AccountDisabled())
		return
	}

	now := time.Now().UTC()
	if err := h.store.UpdateUserLastLogin(r.Context(), user.ID, now); err != nil {
		h.resp.Write(w, r, err)
		return
	}
	user.LastLogin = &now

	token, err := h.issueSession(w, user)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}

	h.log.WithContext(r.Context()).Info("User logged in", "user_id", user.ID)
	apierr.WriteJSON(w, http.StatusOK, authResponse{
		Message: "Login successful",
		User:    user,
		Token:   token,
	})
}

// Logout 清除会话 cookie
//
// 令牌本身无状态，在过期前仍然有效。
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w)
	h.log.WithContext(r.Context()).Info("User logged out")
	apierr.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully!"})
}

// GetProfile 当前用户资料
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"user": user})
}

// UpdateProfile 修改用户名/邮箱
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := validation.Bind(r, &req); err != nil {
		h.resp.Write(w, r, err)
		return
	}
	me := GetAuthUser(r.Context())
	ctx := r.Context()

	if req.Email != "" && req.Email != me.Email {
		other, err := h.store.GetUserByEmail(ctx, req.Email)
		if err != nil {
			h.resp.Write(w, r, err)
			return
		}
		if other != nil && other.ID != me.ID {
			h.resp.Write(w, r, apierr.Conflict("Email already taken", "This email is already registered by another user"))
			return
		}
	}
	if req.Username != "" && req.Username != me.Username {
		other, err := h.store.GetUserByUsername(ctx, req.Username)
		if err != nil {
			h.resp.Write(w, r, err)
			return
		}
		if other != nil && other.ID != me.ID {
			h.resp.Write(w, r, apierr.Conflict("Username already taken", "This username is already in use"))
			return
		}
	}

	if err := h.store.UpdateUserProfile(ctx, me.ID, req.Username, req.Email); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			h.resp.Write(w, r, apierr.Conflict("User already exists", "Email or username already registered"))
			return
		}
		h.resp.Write(w, r, err)
		return
	}

	user, err := h.currentUser(r)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	h.log.WithContext(ctx).Info("Profile updated", "user_id", me.ID)
	apierr.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// ChangePassword 修改密码
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := validation.Bind(r, &req); err != nil {
		h.resp.Write(w, r, err)
		return
	}

	// context 中的用户不含密码哈希，重新读取
	user, err := h.currentUser(r)
	if err != nil {
		h.resp.Write(w, r, err)
		return
	}
	if !CheckPassword(req.CurrentPassword, user.PasswordHash) {
		h.resp.Write(w, r, apierr.BadRequest("Current password is incorrect", ""))
		return
	}

	hash, err := HashPassword(req.NewPassword, h.cfg.BcryptCost)
	if err != nil {
		h.resp.Write(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	if err := h.store.UpdateUserPassword(r.Context(), user.ID, hash); err != nil {
		h.resp.Write(w, r, err)
		return
	}

	h.log.WithContext(r.Context()).Info("Password changed", "user_id", user.ID)
	apierr.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// ============================================================================
// 会话 cookie
// ============================================================================

func (h *Handler) currentUser(r *http.Request) (*model.User, error) {
	me := GetAuthUser(r.Context())
	if me == nil {
		return nil, apierr.Unauthenticated(apierr.CodeAuthRequired)
	}
	user, err := h.store.GetUserByID(r.Context(), me.ID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apierr.NotFound("User not found", "")
	}
	return user, nil
}

// issueSession 签发令牌并写入 cookie
func (h *Handler) issueSession(w http.ResponseWriter, user *model.User) (string, error) {
	token, err := IssueToken(h.cfg, user)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.TokenTTL.Seconds()),
		HttpOnly: h.cfg.Hardened,
		Secure:   h.cfg.Hardened,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: h.cfg.Hardened,
		Secure:   h.cfg.Hardened,
		SameSite: http.SameSiteLaxMode,
	})
}

// ============================================================================
// Admin Bootstrap
// ============================================================================

// EnsureAdminUser 确保管理员用户存在（启动时调用）
// 未配置 email/password 时跳过；用户已存在时不做修改
func EnsureAdminUser(ctx context.Context, store storage.UserStore, email, password string, cost int, log *logging.Logger) error {
	if email == "" || password == "" {
		return nil
	}

	existing, err := store.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if existing != nil {
		if existing.Role != model.UserRoleAdmin {
			log.Warn("Bootstrap email belongs to a non-admin user", "email", email, "user_id", existing.ID)
		}
		return nil
	}

	hash, err := HashPassword(password, cost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           model.NewID(),
		Username:     "admin",
		Email:        email,
		PasswordHash: hash,
		Role:         model.UserRoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Info("Created admin user", "email", email, "user_id", user.ID)
	return nil
}
