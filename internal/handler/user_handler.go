package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobmatch/internal/middleware"
	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Register(ctx context.Context, in user.RegisterInput) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context, limit, offset int) ([]*model.User, error)
	UpdateProfile(ctx context.Context, id string, in user.UpdateProfileInput) (*model.User, error)
	// Deactivate はユーザーを無効化し、そのユーザーの全セッションを破棄する。
	Deactivate(ctx context.Context, id string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// Register はユーザーを登録する。
// POST /api/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in user.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}

	u, err := h.service.Register(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, u.Safe())
}

// List はユーザー一覧を返す。
// GET /api/users?limit=10&offset=0
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", user.DefaultListLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}

	users, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	safe := make([]model.SafeUser, 0, len(users))
	for _, u := range users {
		safe = append(safe, u.Safe())
	}
	writeJSON(w, http.StatusOK, safe)
}

// Get は指定IDのユーザーを返す。
// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u.Safe())
}

// Update はプロフィールを更新する。本人または管理者のみ実行できる。
// PUT /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationRequiredError())
		return
	}
	if p.UserID != id && !isAdminSession(r) {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewInsufficientPermissionsError())
		return
	}

	var in user.UpdateProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), id, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u.Safe())
}

// Deactivate はユーザーを無効化する。
// DELETE /api/users/{id}
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "User deactivated successfully."})
}

// isAdminSession はセッション上のロールが管理者かどうかを返す。
func isAdminSession(r *http.Request) bool {
	s, ok := middleware.SessionFromContext(r.Context())
	return ok && s.Role == model.RoleAdmin
}

// queryInt はクエリパラメータを整数として読み取る。未指定の場合はdefを返す。
// 数値でない場合は400のレスポンスを書き込み、falseを返す。
func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(key+" must be a valid number"))
		return 0, false
	}
	return n, true
}
