// Package model はドメインモデルを定義する。
package model

import "time"

// ロール定義。セッション作成時にユーザーレコードから複写される。
const (
	RoleAdmin   = "admin"
	RoleWorker  = "worker"
	RoleCompany = "company"
	RoleManager = "manager"
)

// User はマーケットプレイスの利用者（worker, manager, company, admin）を表す。
// PasswordHash はクライアントへ返却してはならない。返却にはSafe()を使う。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	FirstName    string
	LastName     string
	Phone        string
	AvatarURL    string
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SafeUser はパスワードハッシュを除いたユーザーのJSON表現。
type SafeUser struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	FirstName string     `json:"firstName,omitempty"`
	LastName  string     `json:"lastName,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	AvatarURL string     `json:"avatarUrl,omitempty"`
	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Safe はパスワードハッシュを取り除いたSafeUserを返す。
func (u *User) Safe() SafeUser {
	return SafeUser{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		AvatarURL: u.AvatarURL,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Session はサーバー側で保持するログインセッションを表す。
// UserIDとRoleはログイン時点のユーザーレコードから設定され、クライアントの申告は信用しない。
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
