package security

import (
	"strings"
	"testing"
)

func TestTextSanitizer_StripsMarkup(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "プレーンテキストはそのまま", input: "Taro", want: "Taro"},
		{name: "scriptタグは除去される", input: "<script>alert(1)</script>Hanako", want: "Hanako"},
		{name: "タグ内のテキストは残る", input: "<b>Ichiro</b>", want: "Ichiro"},
		{name: "前後の空白は除去される", input: "  Jiro  ", want: "Jiro"},
		{name: "アポストロフィは保持される", input: "O'Brien", want: "O'Brien"},
		{name: "空文字列", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	input := `<img src=x onerror="alert(1)">Saburo &amp; co`

	once := s.Sanitize(input)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("Sanitize is not idempotent: %q != %q", once, twice)
	}
}

func TestCookieSigner_RoundTrip(t *testing.T) {
	signer := NewCookieSigner([]byte("cookie-secret"))

	signed := signer.Sign("abc123")
	if !strings.HasPrefix(signed, "abc123.") {
		t.Fatalf("Sign() = %q, want prefix %q", signed, "abc123.")
	}

	value, ok := signer.Verify(signed)
	if !ok {
		t.Fatal("Verify() ok = false, want true")
	}
	if value != "abc123" {
		t.Errorf("Verify() value = %q, want %q", value, "abc123")
	}
}

func TestCookieSigner_RejectsTampering(t *testing.T) {
	signer := NewCookieSigner([]byte("cookie-secret"))
	signed := signer.Sign("abc123")

	tests := []struct {
		name  string
		input string
	}{
		{name: "値の改ざん", input: "abd123" + signed[len("abc123"):]},
		{name: "署名の改ざん", input: signed[:len(signed)-2] + "xx"},
		{name: "署名なし", input: "abc123"},
		{name: "空の署名", input: "abc123."},
		{name: "空の値", input: "." + signed[len("abc123."):]},
		{name: "別の鍵で署名", input: NewCookieSigner([]byte("other")).Sign("abc123")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := signer.Verify(tt.input); ok {
				t.Errorf("Verify(%q) ok = true, want false", tt.input)
			}
		})
	}
}

func TestDeriveToken_DeterministicPerSecret(t *testing.T) {
	key := []byte("csrf-key")

	a := DeriveToken(key, "secret-1")
	if a != DeriveToken(key, "secret-1") {
		t.Error("DeriveToken should be deterministic")
	}
	if a == DeriveToken(key, "secret-2") {
		t.Error("different secrets should yield different tokens")
	}
	if a == DeriveToken([]byte("other-key"), "secret-1") {
		t.Error("different keys should yield different tokens")
	}
	if len(a) != 64 {
		t.Errorf("len(token) = %d, want 64", len(a))
	}
}

func TestTokenEqual(t *testing.T) {
	if !TokenEqual("abc", "abc") {
		t.Error("TokenEqual(abc, abc) = false, want true")
	}
	if TokenEqual("abc", "abd") {
		t.Error("TokenEqual(abc, abd) = true, want false")
	}
	if TokenEqual("abc", "") {
		t.Error("TokenEqual(abc, \"\") = true, want false")
	}
}
