// Package token はステートレスなBearerトークン（HS256 JWT）の発行と検証を提供する。
//
// トークンはサーバー側に保存しない。有効性は署名と有効期限のみで判定するため、
// ログアウト後も期限まで有効なままとなる。失効が必要な場合はDenylistを設定する。
package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired はトークンの有効期限切れを表す。
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid は署名不正・形式不正・アルゴリズム不一致などを表す。
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenRevoked は失効リストに登録済みのトークンを表す。
	ErrTokenRevoked = errors.New("token revoked")
)

// IsRejected はトークン自体が拒否された（期限切れ・不正・失効）エラーかどうかを返す。
// falseの場合は失効リスト参照などのインフラ障害を意味する。
func IsRejected(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenRevoked)
}

// Subject はトークンに埋め込むユーザー情報。
type Subject struct {
	ID    string
	Email string
}

// Claims はBearerトークンのクレーム。
// jti（RegisteredClaims.ID）は失効リストのキーとして使う。
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
