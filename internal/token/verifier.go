package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Denylist は失効済みトークンIDの保存先。
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Verifier はBearerトークンの署名・有効期限・発行者を検証する。
// denylistがnilの場合はサーバー側の状態を一切参照しない。
type Verifier struct {
	secret   []byte
	issuer   string
	denylist Denylist
}

// NewVerifier はVerifierを生成する。denylistは省略可能（nil）。
func NewVerifier(secret []byte, issuer string, denylist Denylist) *Verifier {
	return &Verifier{
		secret:   secret,
		issuer:   issuer,
		denylist: denylist,
	}
}

// Verify はトークン文字列を検証しクレームを返す。
// 拒否理由はErrTokenExpired / ErrTokenInvalid / ErrTokenRevokedでラップされる。
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tok.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	if v.denylist != nil && claims.ID != "" {
		revoked, err := v.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Revoke はトークンを失効リストに登録する。denylist未設定の場合は何もしない。
func (v *Verifier) Revoke(ctx context.Context, claims *Claims) error {
	if v.denylist == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return v.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// RevocationEnabled は失効リストが設定されているかを返す。
func (v *Verifier) RevocationEnabled() bool {
	return v.denylist != nil
}
