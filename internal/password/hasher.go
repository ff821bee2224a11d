// Package password はパスワードの一方向ハッシュ化と検証を提供する。
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost はbcryptのデフォルトのワークファクター。
const DefaultCost = 10

// Hasher はbcryptによるソルト付きパスワードハッシュを扱う。
// 入力の妥当性（長さ・複雑さ）は呼び出し側で検証する。空文字列もハッシュできる。
type Hasher struct {
	cost int
}

// NewHasher はHasherを生成する。costがbcryptの許容範囲外の場合はDefaultCostを使う。
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Cost は現在のワークファクターを返す。
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash は平文パスワードのbcryptダイジェストを返す。
func (h *Hasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify は平文パスワードがダイジェストと一致するかを返す。
// 比較はbcrypt内部で定数時間で行われる。ダイジェストが不正な形式の場合もfalseを返す。
func (h *Hasher) Verify(plaintext, digest string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	return err == nil
}

// NeedsRehash はダイジェストのコストが現在の設定と異なるかを返す。
func (h *Hasher) NeedsRehash(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return true
	}
	return cost != h.cost
}
