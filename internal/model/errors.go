package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（レスポンスのerrorフィールド）
	Category string // カテゴリ: auth, csrf, validation, rate_limit, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeCSRFInvalid        = "CSRF_INVALID"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeLogoutFailed       = "LOGOUT_FAILED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewAuthenticationRequiredError は認証情報が提示されていない場合のエラーを生成する。
func NewAuthenticationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required.",
		Category: "auth",
		Action:   "Log in and try again.",
	}
}

// NewInvalidCredentialsError はログイン失敗時のエラーを生成する。
// ユーザーの存在有無によらず同一の内容を返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
		Action:   "Check your email address and password.",
	}
}

// NewMissingTokenError はAuthorizationヘッダーが無い場合のエラーを生成する。
func NewMissingTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "Send an Authorization: Bearer header.",
	}
}

// NewInvalidTokenError はBearerトークンが不正または期限切れの場合のエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid token",
		Category: "auth",
		Action:   "Log in again to obtain a new token.",
	}
}

// NewInsufficientPermissionsError はロールが許可されていない場合のエラーを生成する。
func NewInsufficientPermissionsError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Insufficient permissions.",
		Category: "auth",
		Action:   "Use an account with the required role.",
	}
}

// NewCSRFError はCSRFトークン検証失敗時のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "Invalid CSRF token. Please try again.",
		Category: "csrf",
		Action:   "Fetch a new token from /csrf-token and resend it in the X-CSRF-Token header.",
	}
}

// NewLoginRateLimitedError はログイン試行回数の上限超過エラーを生成する。
func NewLoginRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many login attempts! Please try again after 10 minutes.",
		Category: "rate_limit",
		Action:   "Wait for the time given in the Retry-After header.",
	}
}

// NewRateLimitedError はAPI全般のレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "rate_limit",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("Invalid request data: %s", reason),
		Category: "validation",
		Action:   "Correct the highlighted fields and resubmit.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewEmailTakenError はメールアドレスが登録済みの場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "An account with this email already exists.",
		Category: "validation",
		Action:   "Log in or use a different email address.",
	}
}

// NewLogoutFailedError はセッション破棄に失敗した場合のエラーを生成する。
func NewLogoutFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLogoutFailed,
		Message:  "Could not log out",
		Category: "system",
		Action:   "Please try again shortly.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error.",
		Category: "system",
		Action:   "Please try again shortly.",
	}
}
