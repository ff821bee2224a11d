package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// CookieSigner はCookie値に "<value>.<signature>" 形式の署名を付与する。
type CookieSigner struct {
	key []byte
}

// NewCookieSigner はCookieSignerを生成する。
func NewCookieSigner(key []byte) *CookieSigner {
	return &CookieSigner{key: key}
}

// Sign は値に署名を付与して返す。
func (s *CookieSigner) Sign(value string) string {
	return value + "." + base64.RawURLEncoding.EncodeToString(s.mac(value))
}

// Verify は署名付き値を検証し、元の値を返す。
// 署名が無い・一致しない場合はokがfalseとなる。
func (s *CookieSigner) Verify(signed string) (value string, ok bool) {
	idx := strings.LastIndexByte(signed, '.')
	if idx <= 0 || idx == len(signed)-1 {
		return "", false
	}
	value, sig := signed[:idx], signed[idx+1:]

	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(got, s.mac(value)) {
		return "", false
	}
	return value, true
}

func (s *CookieSigner) mac(value string) []byte {
	m := hmac.New(sha256.New, s.key)
	m.Write([]byte(value))
	return m.Sum(nil)
}

// DeriveToken はkeyでsecretのHMAC-SHA256を計算し、16進文字列で返す。
// CSRFトークンの生成と検証に使う。
func DeriveToken(key []byte, secret string) string {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(secret))
	return hex.EncodeToString(m.Sum(nil))
}

// TokenEqual は2つのトークン文字列を定数時間で比較する。
func TokenEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
