package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/jobmatch/internal/model"
)

// newTestChain はSessionLoader → CSRF → RequireAuthの順でハンドラーを組み立てる。
func newTestChain(t *testing.T) (http.Handler, CSRFConfig) {
	t.Helper()
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session" {
				return activeSession(id, "user-chain", model.RoleWorker), nil
			}
			return nil, nil
		},
	}
	csrfConfig := CSRFConfig{Key: testCSRFKey}
	auth := newTestAuthenticator(nil)

	inner := auth.RequireAuth(okHandler())
	handler := NewSessionLoader(finder, newTestCookies())(NewCSRFMiddleware(csrfConfig)(inner))
	return handler, csrfConfig
}

// TestMiddlewareChain_ValidSessionWithoutCSRF_Returns403 は認証情報が有効でも
// CSRFトークンの無い状態変更リクエストが拒否されることを検証する。
func TestMiddlewareChain_ValidSessionWithoutCSRF_Returns403(t *testing.T) {
	handler, _ := newTestChain(t)

	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	req.AddCookie(signedSessionCookie("valid-session"))
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, testJWTSecret, time.Hour))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeCSRFInvalid {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeCSRFInvalid)
	}
}

func TestMiddlewareChain_ValidSessionWithCSRF_Passes(t *testing.T) {
	handler, csrfConfig := newTestChain(t)
	cookie, token := issueCSRF(t, csrfConfig, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	req.AddCookie(signedSessionCookie("valid-session"))
	req.AddCookie(cookie)
	req.Header.Set(CSRFHeaderName, token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestMiddlewareChain_GETWithoutCredentials_Returns401(t *testing.T) {
	handler, _ := newTestChain(t)

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
