// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/security"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// SessionCookies はセッションCookieの署名・発行・削除を扱う。
type SessionCookies struct {
	signer *security.CookieSigner
	secure bool
	domain string
}

// NewSessionCookies はSessionCookiesを生成する。secretはCookie署名鍵。
func NewSessionCookies(secret []byte, secure bool, domain string) *SessionCookies {
	return &SessionCookies{
		signer: security.NewCookieSigner(secret),
		secure: secure,
		domain: domain,
	}
}

// SessionID はリクエストの署名付きセッションCookieからセッションIDを取り出す。
// Cookieが無い・署名が不正な場合は空文字列を返す。
func (c *SessionCookies) SessionID(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	id, ok := c.signer.Verify(cookie.Value)
	if !ok {
		return ""
	}
	return id
}

// Set はセッションCookieを発行する。有効期限はセッションに合わせる。
func (c *SessionCookies) Set(w http.ResponseWriter, s *model.Session) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    c.signer.Sign(s.ID),
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear はセッションCookieを削除する。
func (c *SessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// NewSessionLoader はセッションCookieを読み取り、有効なセッションと主体を
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieが無い・不正・期限切れの場合は何もせず次へ渡す（エラーにしない）。
// セッションストアの障害時のみ500を返す。
func NewSessionLoader(finder SessionFinder, cookies *SessionCookies) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := cookies.SessionID(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := finder.FindByID(r.Context(), id)
			if err != nil {
				slog.Error("failed to load session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := ContextWithSession(r.Context(), session)
			ctx = ContextWithPrincipal(ctx, sessionPrincipal(session))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
