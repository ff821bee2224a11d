package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/jobmatch/internal/metrics"
	"github.com/hitoshi/jobmatch/internal/middleware"
	"github.com/hitoshi/jobmatch/internal/model"
)

// healthCheckTimeout は各依存先の疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthCheck は依存先の疎通確認を行う関数。
type HealthCheck func(ctx context.Context) error

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	SessionFinder     middleware.SessionFinder
	Cookies           *middleware.SessionCookies
	CSRF              middleware.CSRFConfig
	CORSAllowedOrigin string
	// SecureTransport はHTTPS配信時にtrueとし、HSTSヘッダーを付与する。
	SecureTransport bool
	// TrustProxyHeaders がtrueの場合、X-Forwarded-For等からクライアントIPを解決する。
	TrustProxyHeaders bool
	Authenticator     *middleware.Authenticator
	LoginLimiter      *middleware.LoginLimiter
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	Tokens      TokenRevoker

	// ユーザー
	UserService UserServiceInterface

	// 運用
	HealthChecks   map[string]HealthCheck
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → (RealIP) → Logging → SecurityHeaders → CORS → SessionLoader
//	→ GET /csrf-token → CSRF → 各ルート
//
// CSRFトークン発行ルートは検証ミドルウェアより先に登録する。
// 認証・認可（RequireAuth, BearerAuth, RequireRole）はルート単位で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	csrfConfig := deps.CSRF
	if csrfConfig.Metrics == nil {
		csrfConfig.Metrics = deps.Metrics
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.SecureTransport))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionLoader(deps.SessionFinder, deps.Cookies))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "NOT_FOUND",
			Message:  "Not found",
			Category: "system",
			Action:   "Check the request path.",
		})
	})

	// --- CSRF検証の対象外 ---
	r.Get("/health", healthHandler(deps.HealthChecks))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

	authHandler := NewAuthHandler(deps.AuthService, AuthHandlerConfig{
		Cookies: deps.Cookies,
		Tokens:  deps.Tokens,
		Metrics: deps.Metrics,
	})
	userHandler := NewUserHandler(deps.UserService)
	authn := deps.Authenticator

	// --- 状態変更メソッドはCSRF検証必須 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))

		r.Route("/auth", func(r chi.Router) {
			r.With(deps.LoginLimiter.Middleware).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.With(authn.RequireAuth).Get("/me", authHandler.Me)
			r.With(authn.BearerAuth).Get("/validate", authHandler.Validate)
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Use(deps.RateLimiter.Middleware)

			r.Post("/", userHandler.Register)
			r.With(middleware.RequireRole(model.RoleAdmin)).Get("/", userHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.With(authn.RequireAuth).Get("/", userHandler.Get)
				r.With(authn.RequireAuth).Put("/", userHandler.Update)
				r.With(middleware.RequireRole(model.RoleAdmin)).Delete("/", userHandler.Deactivate)
			})
		})
	})

	return r
}

// healthHandler は依存先の疎通確認結果を返すハンドラーを生成する。
// いずれかが失敗した場合は503を返す。
// GET /health
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))

		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := check(ctx)
			cancel()

			if err != nil {
				slog.Warn("health check failed",
					slog.String("dependency", name),
					slog.String("error", err.Error()),
				)
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]any{
			"status": overall,
			"checks": results,
		})
	}
}
