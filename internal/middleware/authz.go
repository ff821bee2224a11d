package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/jobmatch/internal/metrics"
	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/token"
)

// TokenVerifier はBearerトークンの検証に必要なインターフェース。
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*token.Claims, error)
}

// Authenticator はルート単位で適用する認証・認可ミドルウェアを提供する。
type Authenticator struct {
	verifier TokenVerifier
	metrics  metrics.MetricsCollector
}

// NewAuthenticator はAuthenticatorを生成する。mcがnilの場合はメトリクスを記録しない。
func NewAuthenticator(verifier TokenVerifier, mc metrics.MetricsCollector) *Authenticator {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Authenticator{verifier: verifier, metrics: mc}
}

// RequireAuth はセッションまたはBearerトークンによる認証を必須とするミドルウェア。
// セッションが有効であればそのまま通す。無い場合はAuthorizationヘッダーを検証する。
// 認証情報が何も無い場合は401、トークンが不正・期限切れの場合は403を返す。
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFromContext(r.Context()); ok && p.FromSession() {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := BearerToken(r)
		if !ok {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationRequiredError())
			return
		}

		ctx, ok := a.authenticateToken(w, r, raw)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerAuth はAuthorization: Bearerヘッダーによる認証を必須とするミドルウェア。
// ヘッダーが無い場合は401、トークンが不正・期限切れ・失効済みの場合は403を返す。
// セッションの有無は参照しない。
func (a *Authenticator) BearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := BearerToken(r)
		if !ok {
			a.metrics.RecordTokenFailure(metrics.TokenMissing)
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewMissingTokenError())
			return
		}

		ctx, ok := a.authenticateToken(w, r, raw)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticateToken はトークンを検証し、主体を注入したコンテキストを返す。
// 失敗時はレスポンスを書き込み、okがfalseとなる。
func (a *Authenticator) authenticateToken(w http.ResponseWriter, r *http.Request, raw string) (context.Context, bool) {
	claims, err := a.verifier.Verify(r.Context(), raw)
	if err != nil {
		if !token.IsRejected(err) {
			slog.Error("token verification failed",
				slog.String("error", err.Error()),
			)
			WriteInternalServerError(w)
			return nil, false
		}
		a.metrics.RecordTokenFailure(tokenFailureReason(err))
		WriteErrorResponse(w, http.StatusForbidden, model.NewInvalidTokenError())
		return nil, false
	}

	p := &model.Principal{
		UserID:  claims.UserID,
		Email:   claims.Email,
		Source:  model.PrincipalSourceToken,
		TokenID: claims.ID,
	}
	return ContextWithPrincipal(r.Context(), p), true
}

// RequireRole は認証済みセッションのロールが許可リストに含まれることを要求するミドルウェアを返す。
// ロールはサーバー側のセッションからのみ読み取る。
// セッションが無い場合は401、ロールが許可されていない場合は403を返す。
func RequireRole(roles ...string) func(next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationRequiredError())
				return
			}
			if _, ok := allowed[session.Role]; !ok {
				slog.Warn("role not permitted",
					slog.String("user_id", session.UserID),
					slog.String("role", session.Role),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewInsufficientPermissionsError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func tokenFailureReason(err error) string {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return metrics.TokenExpired
	case errors.Is(err, token.ErrTokenRevoked):
		return metrics.TokenRevoked
	default:
		return metrics.TokenInvalid
	}
}
