package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobmatch/internal/metrics"
	"github.com/hitoshi/jobmatch/internal/model"
	"github.com/hitoshi/jobmatch/internal/security"
)

const (
	// CSRFCookieName はCSRFシークレットを保持するCookieの名前。
	// HttpOnlyのためJavaScriptからは読めない。クライアントはトークン取得APIの応答値を使う。
	CSRFCookieName = "csrf_secret"

	// CSRFHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	CSRFHeaderName = "X-CSRF-Token"

	csrfSecretBytes  = 32
	csrfCookieMaxAge = 86400 // 24時間
)

// CSRFError はCSRF検証の失敗を表す。Reasonはmetricsのラベル値を使う。
type CSRFError struct {
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *CSRFError) Error() string {
	return fmt.Sprintf("csrf validation failed: %s", e.Reason)
}

// CSRFErrorHandler はCSRF検証の失敗時に呼び出される。
type CSRFErrorHandler func(w http.ResponseWriter, r *http.Request, err *CSRFError)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	// Key はCookieのシークレットからトークンを導出するHMAC鍵。必須。
	Key []byte
	// Signer が設定されている場合、シークレットCookieに署名を付与する。
	Signer       *security.CookieSigner
	CookieSecure bool
	CookieDomain string
	// ErrorHandler が未設定の場合はDefaultCSRFErrorHandlerを使う。
	ErrorHandler CSRFErrorHandler
	Metrics      metrics.MetricsCollector
}

// DefaultCSRFErrorHandler はCSRF違反を403の統一エラーレスポンスに変換する。
func DefaultCSRFErrorHandler(w http.ResponseWriter, r *http.Request, err *CSRFError) {
	WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFError())
}

// NewCSRFMiddleware はCSRFトークンの検証ミドルウェアを返す。
// 安全なメソッド（GET, HEAD, OPTIONS）はトークン検証をスキップする。
// 状態変更メソッドはヘッダーのトークンがCookieのシークレットから導出した値と
// 一致することを必須とする。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	onError := config.ErrorHandler
	if onError == nil {
		onError = DefaultCSRFErrorHandler
	}
	mc := config.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			if err := verifyCSRF(r, config); err != nil {
				slog.Warn("CSRF validation failed",
					slog.String("reason", err.Reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				mc.RecordCSRFRejection(err.Reason)
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func verifyCSRF(r *http.Request, config CSRFConfig) *CSRFError {
	secret, ok := readCSRFSecret(r, config)
	if !ok {
		return &CSRFError{Reason: metrics.CSRFMissingSecret}
	}

	headerToken := r.Header.Get(CSRFHeaderName)
	if headerToken == "" {
		return &CSRFError{Reason: metrics.CSRFMissingToken}
	}

	if !security.TokenEqual(headerToken, security.DeriveToken(config.Key, secret)) {
		return &CSRFError{Reason: metrics.CSRFMismatch}
	}
	return nil
}

// NewCSRFTokenHandler はCSRFトークン取得エンドポイントのハンドラーを返す。
// GET /csrf-token
// 有効なシークレットCookieがある場合はそれを使い、なければ新規生成してCookieに設定する。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret, ok := readCSRFSecret(r, config)
		if !ok {
			var err error
			secret, err = generateCSRFSecret()
			if err != nil {
				slog.Error("failed to generate CSRF secret", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
			setCSRFCookie(w, secret, config)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		json.NewEncoder(w).Encode(map[string]string{
			"csrfToken": security.DeriveToken(config.Key, secret),
		})
	})
}

// readCSRFSecret はCookieからシークレットを取り出す。
// Signerが設定されている場合は署名を検証する。
func readCSRFSecret(r *http.Request, config CSRFConfig) (string, bool) {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	if config.Signer == nil {
		return cookie.Value, true
	}
	return config.Signer.Verify(cookie.Value)
}

func setCSRFCookie(w http.ResponseWriter, secret string, config CSRFConfig) {
	value := secret
	if config.Signer != nil {
		value = config.Signer.Sign(secret)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    value,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// generateCSRFSecret は暗号的に安全なCSRFシークレットを生成する。
func generateCSRFSecret() (string, error) {
	b := make([]byte, csrfSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
