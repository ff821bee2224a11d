package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/jobmatch/internal/auth"
	"github.com/hitoshi/jobmatch/internal/config"
	"github.com/hitoshi/jobmatch/internal/database"
	"github.com/hitoshi/jobmatch/internal/handler"
	"github.com/hitoshi/jobmatch/internal/logger"
	"github.com/hitoshi/jobmatch/internal/metrics"
	"github.com/hitoshi/jobmatch/internal/middleware"
	"github.com/hitoshi/jobmatch/internal/password"
	"github.com/hitoshi/jobmatch/internal/repository"
	"github.com/hitoshi/jobmatch/internal/security"
	"github.com/hitoshi/jobmatch/internal/token"
	"github.com/hitoshi/jobmatch/internal/user"
	"github.com/hitoshi/jobmatch/internal/validation"
	"github.com/hitoshi/jobmatch/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 設定読み込み前のエラーも出力できるよう、INFOレベルで初期化する
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化する
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// PostgreSQLとRedisへ接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	// 2. Redis接続
	rdb, err := database.OpenRedis(ctx, database.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()
	slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewRedisSessionRepo(rdb)

	// セッション索引の掃除をバックグラウンドで実行
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, slog.Default())
	cleanupJob.Interval = cfg.SessionCleanupInterval
	go cleanupJob.Start(ctx)

	// 4. 横断的サービスの初期化
	mc := metrics.NewCollector(prometheus.DefaultRegisterer)
	hasher := password.NewHasher(cfg.BcryptCost)
	v := validation.New()
	sanitizer := security.NewTextSanitizer()

	// 5. トークンの発行・検証
	var denylist token.Denylist
	if cfg.TokenRevokeOnLogout {
		denylist = token.NewRedisDenylist(rdb)
	}
	issuer := token.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTExpiry)
	verifier := token.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer, denylist)

	// 6. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, hasher, issuer, v, mc, auth.ServiceConfig{
		SessionTTL:  cfg.SessionTTL,
		RememberTTL: cfg.SessionRememberTTL,
	})
	userService := user.NewService(userRepo, sessionRepo, hasher, sanitizer, v)

	// 7. ミドルウェアの構築
	csrfConfig := middleware.CSRFConfig{
		Key:          []byte(cfg.CSRFSecret),
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
		Metrics:      mc,
	}
	if cfg.CookieSecret != "" {
		csrfConfig.Signer = security.NewCookieSigner([]byte(cfg.CookieSecret))
	}

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           mc,
		SessionFinder:     sessionRepo,
		Cookies:           middleware.NewSessionCookies([]byte(cfg.SessionSecret), cfg.CookieSecure, cfg.CookieDomain),
		CSRF:              csrfConfig,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		SecureTransport:   cfg.CookieSecure,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Authenticator:     middleware.NewAuthenticator(verifier, mc),
		LoginLimiter: middleware.NewLoginLimiter(rdb, middleware.LoginLimiterConfig{
			Max:     cfg.LoginRateLimitMax,
			Window:  cfg.LoginRateLimitWindow,
			Metrics: mc,
		}),
		RateLimiter: rateLimiter,

		AuthService: authService,
		Tokens:      verifier,
		UserService: userService,

		HealthChecks: map[string]handler.HealthCheck{
			"database": db.PingContext,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		},
		MetricsHandler: metrics.Handler(prometheus.DefaultGatherer),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
