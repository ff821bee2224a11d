package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/jobmatch/internal/metrics"
	"github.com/hitoshi/jobmatch/internal/model"
)

const loginLimiterKeyPrefix = "ratelimit:login:"

// LoginLimiterConfig はログイン試行回数制限の設定。
type LoginLimiterConfig struct {
	// Max はウィンドウ内で許可する試行回数。
	Max int
	// Window は固定ウィンドウの長さ。最初の試行から計測する。
	Window  time.Duration
	Metrics metrics.MetricsCollector
}

// LoginLimiter はクライアントIP単位の固定ウィンドウでログイン試行を制限する。
// カウンタはRedisで共有するため、複数インスタンス間でも同じ上限が適用される。
type LoginLimiter struct {
	rdb     redis.Cmdable
	max     int64
	window  time.Duration
	metrics metrics.MetricsCollector
}

// NewLoginLimiter はLoginLimiterを生成する。
func NewLoginLimiter(rdb redis.Cmdable, config LoginLimiterConfig) *LoginLimiter {
	mc := config.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &LoginLimiter{
		rdb:     rdb,
		max:     int64(config.Max),
		window:  config.Window,
		metrics: mc,
	}
}

// Middleware はログイン試行回数制限ミドルウェアを返す。
// 成功・失敗を問わずすべての試行を数える。上限超過時は認証情報が正しくても429を返す。
// Redisに到達できない場合は制限せずに通す。
func (l *LoginLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := loginLimiterKeyPrefix + clientIP(r)

		count, err := l.rdb.Incr(ctx, key).Result()
		if err != nil {
			slog.Warn("login rate limiter unavailable, allowing request",
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		ttl := l.window
		if count == 1 {
			if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
				slog.Warn("failed to set login rate limit window", slog.String("error", err.Error()))
			}
		} else if ttl, err = l.rdb.PTTL(ctx, key).Result(); err != nil || ttl < 0 {
			// 有効期限の無いカウンタは新しいウィンドウとして扱い、期限を付け直す
			ttl = l.window
			if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
				slog.Warn("failed to repair login rate limit window", slog.String("error", err.Error()))
			}
		}

		remaining := l.max - count
		if remaining < 0 {
			remaining = 0
		}
		reset := strconv.Itoa(int(math.Ceil(ttl.Seconds())))
		w.Header().Set("RateLimit-Limit", strconv.FormatInt(l.max, 10))
		w.Header().Set("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("RateLimit-Reset", reset)

		if count > l.max {
			slog.Warn("login rate limit exceeded",
				slog.String("client_ip", clientIP(r)),
				slog.Int64("attempts", count),
			)
			l.metrics.RecordLoginAttempt(metrics.LoginRateLimited)
			w.Header().Set("Retry-After", reset)
			WriteErrorResponse(w, http.StatusTooManyRequests, model.NewLoginRateLimitedError())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP はリクエスト元のIPアドレスを返す。
// プロキシヘッダーの解釈はルーター側のRealIPミドルウェアに委ねる。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
