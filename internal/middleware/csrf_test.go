package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/jobmatch/internal/metrics"
	"github.com/hitoshi/jobmatch/internal/security"
)

var testCSRFKey = []byte("test-csrf-key")

// issueCSRF はトークン取得エンドポイントを呼び出し、シークレットCookieとトークンを返す。
func issueCSRF(t *testing.T, config CSRFConfig, existing *http.Cookie) (*http.Cookie, string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/csrf-token", nil)
	if existing != nil {
		req.AddCookie(existing)
	}
	w := httptest.NewRecorder()
	NewCSRFTokenHandler(config).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}

	cookie := existing
	for _, c := range w.Result().Cookies() {
		if c.Name == CSRFCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("csrf cookie was not set")
	}
	return cookie, body["csrfToken"]
}

func csrfProtected(config CSRFConfig) http.Handler {
	return NewCSRFMiddleware(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFTokenHandler_SetsHttpOnlyStrictCookie(t *testing.T) {
	config := CSRFConfig{Key: testCSRFKey, CookieSecure: true}
	cookie, token := issueCSRF(t, config, nil)

	if !cookie.HttpOnly {
		t.Error("csrf cookie should be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("SameSite = %v, want %v", cookie.SameSite, http.SameSiteStrictMode)
	}
	if !cookie.Secure {
		t.Error("csrf cookie should be Secure")
	}
	if token == "" {
		t.Fatal("csrfToken should not be empty")
	}
	if token == cookie.Value {
		t.Error("csrfToken must not equal the cookie secret")
	}
	if want := security.DeriveToken(testCSRFKey, cookie.Value); token != want {
		t.Errorf("csrfToken = %q, want %q", token, want)
	}
}

func TestCSRFTokenHandler_ReusesExistingSecret(t *testing.T) {
	config := CSRFConfig{Key: testCSRFKey}
	cookie, first := issueCSRF(t, config, nil)

	req := httptest.NewRequest(http.MethodGet, "/csrf-token", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	NewCSRFTokenHandler(config).ServeHTTP(w, req)

	if len(w.Result().Cookies()) != 0 {
		t.Error("existing secret should not be replaced")
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["csrfToken"] != first {
		t.Errorf("csrfToken = %q, want %q", body["csrfToken"], first)
	}
}

func TestCSRFMiddleware_SafeMethods_SkipVerification(t *testing.T) {
	handler := csrfProtected(CSRFConfig{Key: testCSRFKey})

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/api/test", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
		})
	}
}

func TestCSRFMiddleware_ValidToken_Passes(t *testing.T) {
	config := CSRFConfig{Key: testCSRFKey}
	cookie, token := issueCSRF(t, config, nil)
	handler := csrfProtected(config)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/api/test", nil)
			req.AddCookie(cookie)
			req.Header.Set(CSRFHeaderName, token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
		})
	}
}

func TestCSRFMiddleware_Rejections(t *testing.T) {
	config := CSRFConfig{Key: testCSRFKey}
	cookie, token := issueCSRF(t, config, nil)
	_, otherToken := issueCSRF(t, config, nil)

	tests := []struct {
		name       string
		cookie     *http.Cookie
		header     string
		wantReason string
	}{
		{"missing cookie", nil, token, metrics.CSRFMissingSecret},
		{"missing header", cookie, "", metrics.CSRFMissingToken},
		{"token for another secret", cookie, otherToken, metrics.CSRFMismatch},
		{"echoed cookie value", cookie, cookie.Value, metrics.CSRFMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := &mockMetrics{}
			cfg := config
			cfg.Metrics = mc
			handler := csrfProtected(cfg)

			req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			if tt.header != "" {
				req.Header.Set(CSRFHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusForbidden {
				t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
			}
			body := decodeErrorBody(t, w)
			if body.Error != "Invalid CSRF token. Please try again." {
				t.Errorf("error = %q, want %q", body.Error, "Invalid CSRF token. Please try again.")
			}
			if len(mc.csrf) != 1 || mc.csrf[0] != tt.wantReason {
				t.Errorf("recorded reasons = %v, want [%s]", mc.csrf, tt.wantReason)
			}
		})
	}
}

func TestCSRFMiddleware_CustomErrorHandler_ReceivesCSRFError(t *testing.T) {
	var got *CSRFError
	config := CSRFConfig{
		Key: testCSRFKey,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err *CSRFError) {
			got = err
			w.WriteHeader(http.StatusTeapot)
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/test", nil)
	w := httptest.NewRecorder()
	csrfProtected(config).ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTeapot)
	}
	if got == nil || got.Reason != metrics.CSRFMissingSecret {
		t.Errorf("CSRFError = %+v, want reason %q", got, metrics.CSRFMissingSecret)
	}
}

func TestCSRFMiddleware_SignedCookie(t *testing.T) {
	config := CSRFConfig{Key: testCSRFKey, Signer: security.NewCookieSigner([]byte("cookie-secret"))}
	cookie, token := issueCSRF(t, config, nil)
	handler := csrfProtected(config)

	t.Run("valid signature passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
		req.AddCookie(cookie)
		req.Header.Set(CSRFHeaderName, token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("forged unsigned secret is rejected", func(t *testing.T) {
		forged := &http.Cookie{Name: CSRFCookieName, Value: "attacker-secret"}
		req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
		req.AddCookie(forged)
		req.Header.Set(CSRFHeaderName, security.DeriveToken(testCSRFKey, "attacker-secret"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}
