// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/jobmatch/internal/auth"
	"github.com/hitoshi/jobmatch/internal/metrics"
	"github.com/hitoshi/jobmatch/internal/middleware"
	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/token"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// TokenRevoker はログアウト時のBearerトークン失効に必要なインターフェース。
// 失効リストが無効な場合、RevocationEnabledはfalseを返す。
type TokenRevoker interface {
	Verify(ctx context.Context, raw string) (*token.Claims, error)
	Revoke(ctx context.Context, claims *token.Claims) error
	RevocationEnabled() bool
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Cookies *middleware.SessionCookies
	// Tokens が設定され失効が有効な場合、ログアウト時に提示されたトークンを失効させる。
	Tokens  TokenRevoker
	Metrics metrics.MetricsCollector
}

// AuthHandler はログイン・ログアウト・セッション確認のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	mc := config.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: mc,
	}
}

type loginResponse struct {
	User  model.SafeUser `json:"user"`
	Token string         `json:"token"`
}

type validateResponse struct {
	Valid        bool   `json:"valid"`
	UserID       string `json:"userId"`
	SessionValid bool   `json:"sessionValid"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Login はメールアドレスとパスワードで認証し、セッションCookieとBearerトークンを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.RecordLoginLatency(time.Since(start)) }()

	var in auth.LoginInput
	if !decodeJSON(w, r, &in) {
		h.metrics.RecordLoginAttempt(metrics.LoginInvalidRequest)
		return
	}
	in.PriorSessionID = h.config.Cookies.SessionID(r)

	result, err := h.service.Login(r.Context(), in)
	if err != nil {
		var apiErr *model.APIError
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			h.metrics.RecordLoginAttempt(metrics.LoginInvalidCredentials)
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
		case errors.As(err, &apiErr):
			h.metrics.RecordLoginAttempt(metrics.LoginInvalidRequest)
			handleServiceError(w, err)
		default:
			h.metrics.RecordLoginAttempt(metrics.LoginError)
			handleServiceError(w, err)
		}
		return
	}

	h.config.Cookies.Set(w, result.Session)
	h.metrics.RecordLoginAttempt(metrics.LoginSuccess)

	writeJSON(w, http.StatusOK, loginResponse{
		User:  result.User.Safe(),
		Token: result.Token,
	})
}

// Logout はセッションを破棄し、セッションCookieを削除する。
// セッションが無い場合も成功とする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := h.config.Cookies.SessionID(r)

	if err := h.service.Logout(r.Context(), sessionID); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewLogoutFailedError())
		return
	}

	h.revokePresentedToken(r)

	h.config.Cookies.Clear(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// revokePresentedToken はAuthorizationヘッダーのトークンを失効リストに登録する。
// 失効が無効な場合や不正なトークンの場合は何もしない。
func (h *AuthHandler) revokePresentedToken(r *http.Request) {
	if h.config.Tokens == nil || !h.config.Tokens.RevocationEnabled() {
		return
	}
	raw, ok := middleware.BearerToken(r)
	if !ok {
		return
	}

	claims, err := h.config.Tokens.Verify(r.Context(), raw)
	if err != nil {
		return
	}
	if err := h.config.Tokens.Revoke(r.Context(), claims); err != nil {
		slog.Warn("failed to revoke token on logout", slog.String("error", err.Error()))
	}
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationRequiredError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.Safe())
}

// Validate はBearerトークンの有効性と、同じユーザーのセッションが同じリクエストにあるかを返す。
// BearerAuthの後に配置する。
// GET /auth/validate
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewMissingTokenError())
		return
	}
	session, ok := middleware.SessionFromContext(r.Context())
	sessionValid := ok && session.UserID == userID

	writeJSON(w, http.StatusOK, validateResponse{
		Valid:        true,
		UserID:       userID,
		SessionValid: sessionValid,
	})
}
