package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// ミドルウェアやサービスへはコンストラクタ引数として明示的に渡す。
type Config struct {
	// Database
	DatabaseURL string

	// Redis（セッションストア、ログイン試行カウンタ、トークン失効リスト）
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Session
	SessionSecret      string
	SessionTTL         time.Duration
	SessionRememberTTL time.Duration
	// SessionCleanupInterval はセッション索引の掃除間隔。
	SessionCleanupInterval time.Duration

	// CSRF
	CSRFSecret string

	// Cookie署名（任意）。設定時はCSRF Cookieに署名を付与する。
	CookieSecret string

	// JWT
	JWTSecret           string
	JWTIssuer           string
	JWTExpiry           time.Duration
	TokenRevokeOnLogout bool

	// Password
	BcryptCost int

	// Rate Limit
	LoginRateLimitMax    int
	LoginRateLimitWindow time.Duration
	RateLimitGeneral     int

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort string
	BaseURL    string
	// TrustProxyHeaders がtrueの場合、X-Forwarded-For / X-Real-IPをクライアントIPとして扱う。
	// リバースプロキシ配下でのみ有効にする。
	TrustProxyHeaders bool

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.CSRFSecret = os.Getenv("CSRF_SECRET")
	if cfg.CSRFSecret == "" {
		missing = append(missing, "CSRF_SECRET")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 2*time.Hour)
	cfg.SessionRememberTTL = getEnvDuration("SESSION_REMEMBER_TTL", 30*24*time.Hour)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.CookieSecret = os.Getenv("COOKIE_SECRET")
	cfg.JWTIssuer = getEnvString("JWT_ISSUER", "jobmatch")
	cfg.JWTExpiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)
	cfg.TokenRevokeOnLogout = getEnvBool("TOKEN_REVOKE_ON_LOGOUT", false)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.LoginRateLimitMax = getEnvInt("LOGIN_RATE_LIMIT_MAX", 5)
	cfg.LoginRateLimitWindow = getEnvDuration("LOGIN_RATE_LIMIT_WINDOW", 10*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.LogLevel = getEnvLogLevel("LOG_LEVEL", slog.LevelInfo)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	if cfg.SessionRememberTTL < cfg.SessionTTL {
		return nil, fmt.Errorf("SESSION_REMEMBER_TTL (%s) must not be shorter than SESSION_TTL (%s)",
			cfg.SessionRememberTTL, cfg.SessionTTL)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvLogLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
