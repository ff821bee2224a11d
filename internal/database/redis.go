package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions はRedis接続設定。
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// redisPingTimeout は起動時の疎通確認のタイムアウト。
const redisPingTimeout = 5 * time.Second

// OpenRedis はRedisクライアントを生成し、疎通確認を行う。
// セッションストア、ログイン試行カウンタ、トークン失効リストで共有する。
func OpenRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
