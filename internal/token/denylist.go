package token

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistKeyPrefix = "token:revoked:"

// RedisDenylist はRedisに失効済みトークンIDを保持する。
// キーのTTLはトークンの有効期限に合わせ、期限後は自動的に消える。
type RedisDenylist struct {
	client redis.Cmdable
}

// NewRedisDenylist はRedisDenylistを生成する。
func NewRedisDenylist(client redis.Cmdable) *RedisDenylist {
	return &RedisDenylist{client: client}
}

// Revoke はトークンIDを失効リストに登録する。既に期限切れの場合は何もしない。
func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, denylistKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked はトークンIDが失効リストに登録されているかを返す。
func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to look up revoked token: %w", err)
	}
	return n > 0, nil
}

var _ Denylist = (*RedisDenylist)(nil)
