package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/jobmatch/internal/model"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
	sessionIDBytes       = 32
)

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// 1セッション1キーで保存し、キーのTTLを有効期限とする。
type RedisSessionRepo struct {
	client redis.Cmdable
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client redis.Cmdable) *RedisSessionRepo {
	return &RedisSessionRepo{client: client}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// userSessionsKey はユーザーごとのセッションID集合のキー。
// DeleteByUserIDで全セッションを破棄するために保持する。
func userSessionsKey(userID string) string {
	return userSessionKeyPrefix + userID
}

// indexSession はユーザーのセッション集合にIDを追加し、
// 集合のTTLを所属セッションの最長TTL以上に保つ。
func (r *RedisSessionRepo) indexSession(ctx context.Context, userID, id string, ttl time.Duration) error {
	key := userSessionsKey(userID)
	if err := r.client.SAdd(ctx, key, id).Err(); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	current, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to read session index ttl: %w", err)
	}
	if current < ttl {
		if err := r.client.PExpire(ctx, key, ttl).Err(); err != nil {
			return fmt.Errorf("failed to extend session index ttl: %w", err)
		}
	}
	return nil
}

// newSessionID は推測困難なセッションIDを生成する。
func newSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Create はセッションを新規発行する。
func (r *RedisSessionRepo) Create(ctx context.Context, userID, role string, ttl time.Duration) (*model.Session, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive: %s", ttl)
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:        id,
		UserID:    userID,
		Role:      role,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, sessionKey(id), data, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("session ID collision")
	}
	if err := r.indexSession(ctx, userID, id, ttl); err != nil {
		if delErr := r.client.Del(ctx, sessionKey(id)).Err(); delErr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to remove unindexed session: %w", delErr))
		}
		return nil, err
	}
	return session, nil
}

// FindByID は指定IDのセッションを取得する。存在しない・期限切れの場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, nil
	}

	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	session := &model.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if !session.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。存在しなくてもエラーにしない。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Touch はセッションの有効期限をttl後に延長する。
// セッションが存在しない場合はErrSessionNotFoundを返す。
func (r *RedisSessionRepo) Touch(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session ttl must be positive: %s", ttl)
	}

	session, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}

	session.ExpiresAt = time.Now().UTC().Add(ttl)
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	// 取得と更新の間に削除された場合は復活させない（XX）
	ok, err := r.client.SetXX(ctx, sessionKey(id), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return r.indexSession(ctx, session.UserID, id, ttl)
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *RedisSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	key := userSessionsKey(userID)
	ids, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, key)

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// PruneSessionIndex はユーザーごとのセッション集合から、既に存在しないセッションIDを取り除く。
// ログアウトや期限切れで本体キーが消えたIDが対象。取り除いた件数を返す。
func (r *RedisSessionRepo) PruneSessionIndex(ctx context.Context) (int64, error) {
	var removed int64

	iter := r.client.Scan(ctx, 0, userSessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ids, err := r.client.SMembers(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to list user sessions: %w", err)
		}

		var stale []interface{}
		for _, id := range ids {
			n, err := r.client.Exists(ctx, sessionKey(id)).Result()
			if err != nil {
				return removed, fmt.Errorf("failed to check session: %w", err)
			}
			if n == 0 {
				stale = append(stale, id)
			}
		}
		if len(stale) == 0 {
			continue
		}

		n, err := r.client.SRem(ctx, key, stale...).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to prune session index: %w", err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan session indexes: %w", err)
	}
	return removed, nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
