// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/jobmatch/internal/model"
)

var (
	// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrSessionNotFound は対象セッションが存在しない（期限切れを含む）ことを表す。
	ErrSessionNotFound = errors.New("session not found")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスの完全一致でユーザーを取得する。
	// 大文字小文字は区別する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが登録済みの場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// List はcreated_at昇順でユーザー一覧を返す。
	List(ctx context.Context, limit, offset int) ([]*model.User, error)

	// UpdateLastLogin は最終ログイン日時を更新する。
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// UpdatePasswordHash はパスワードハッシュを置き換える（コスト変更時の再ハッシュ用）。
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// UpdateProfile はプロフィール項目を更新し、更新後のユーザーを返す。
	// nilのフィールドは変更しない。対象が存在しない場合はnilを返す。
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*model.User, error)

	// Deactivate はユーザーを無効化する。対象が存在しない場合はfalseを返す。
	Deactivate(ctx context.Context, id string) (bool, error)
}

// ProfileUpdate はプロフィール更新の差分。Phoneに空文字列を渡すと削除する。
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はユーザーのセッションを新規発行する。ロールはユーザーレコードの値を渡す。
	Create(ctx context.Context, userID, role string, ttl time.Duration) (*model.Session, error)
	// FindByID は指定IDのセッションを取得する。存在しない・期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しなくてもエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// Touch はセッションの有効期限をttl後に延長する。
	Touch(ctx context.Context, id string, ttl time.Duration) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
