package middleware

import (
	"context"
	"fmt"

	"github.com/hitoshi/jobmatch/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// principalContextKey は認証済み主体を格納するキー。
	principalContextKey = contextKey("principal")
	// sessionContextKey はSessionLoaderが解決したセッションを格納するキー。
	sessionContextKey = contextKey("session")
	// requestInfoContextKey はロギングミドルウェアが内側の処理結果を受け取るためのキー。
	requestInfoContextKey = contextKey("request_info")
)

// requestInfo は外側のミドルウェアが内側で解決された情報を参照するための入れ物。
// 同一リクエストのゴルーチン内でのみ読み書きする。
type requestInfo struct {
	userID string
}

// ContextWithPrincipal はコンテキストに認証済み主体を注入する。
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok && p != nil {
		info.userID = p.UserID
	}
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext はリクエストコンテキストから認証済み主体を取得する。
func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	return p, ok && p != nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return p.UserID, nil
}

// SessionFromContext はSessionLoaderが解決した有効なセッションを返す。
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(*model.Session)
	return s, ok && s != nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, s *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// sessionPrincipal はセッションから認証済み主体を組み立てる。
func sessionPrincipal(s *model.Session) *model.Principal {
	return &model.Principal{
		UserID:    s.UserID,
		Role:      s.Role,
		Source:    model.PrincipalSourceSession,
		SessionID: s.ID,
	}
}
