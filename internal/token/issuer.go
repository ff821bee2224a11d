package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Issuer はHS256で署名したBearerトークンを発行する。
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewIssuer はIssuerを生成する。ttlはトークンの有効期間。
func NewIssuer(secret []byte, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
	}
}

// Issue はsubjectのトークンを発行する。
func (i *Issuer) Issue(subject Subject) (string, error) {
	if len(i.secret) == 0 {
		return "", fmt.Errorf("token issuer has empty secret")
	}

	now := time.Now()
	claims := &Claims{
		UserID: subject.ID,
		Email:  subject.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        ulid.Make().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
