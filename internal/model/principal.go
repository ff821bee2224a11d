package model

// PrincipalSource は認証主体を解決した手段を表す。
type PrincipalSource string

const (
	// PrincipalSourceSession はセッションCookieから解決された主体。
	PrincipalSourceSession PrincipalSource = "session"
	// PrincipalSourceToken はBearerトークンから解決された主体。
	PrincipalSourceToken PrincipalSource = "token"
)

// Principal はミドルウェアがリクエストに付与する認証済み主体。
// リクエスト処理中は読み取り専用で、永続化しない。
// Roleはセッション由来の場合のみ設定される（トークンはロールを運ばない）。
type Principal struct {
	UserID    string
	Email     string
	Role      string
	Source    PrincipalSource
	SessionID string
	TokenID   string
}

// FromSession はセッション由来の主体かどうかを返す。
func (p *Principal) FromSession() bool {
	return p != nil && p.Source == PrincipalSourceSession
}
