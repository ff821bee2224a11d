// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン試行の結果ラベル。
const (
	LoginSuccess            = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginInvalidRequest     = "invalid_request"
	LoginRateLimited        = "rate_limited"
	LoginError              = "error"
)

// CSRF拒否理由ラベル。
const (
	CSRFMissingSecret = "missing_secret"
	CSRFMissingToken  = "missing_token"
	CSRFMismatch      = "mismatch"
)

// トークン検証失敗理由ラベル。
const (
	TokenMissing = "missing"
	TokenExpired = "expired"
	TokenInvalid = "invalid"
	TokenRevoked = "revoked"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordLoginAttempt(result string)
	RecordLoginLatency(duration time.Duration)
	RecordCSRFRejection(reason string)
	RecordTokenFailure(reason string)
	RecordSessionCreated()
	RecordLogout()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginAttempts   *prometheus.CounterVec
	loginLatency    prometheus.Histogram
	csrfRejections  *prometheus.CounterVec
	tokenFailures   *prometheus.CounterVec
	sessionsCreated prometheus.Counter
	logouts         prometheus.Counter
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmatch_login_attempts_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		loginLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobmatch_login_duration_seconds",
			Help:    "ログイン処理のレイテンシ（秒）。bcrypt照合を含む",
			Buckets: prometheus.DefBuckets,
		}),
		csrfRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmatch_csrf_rejections_total",
			Help: "理由別のCSRF検証失敗数",
		}, []string{"reason"}),
		tokenFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmatch_token_failures_total",
			Help: "理由別のBearerトークン検証失敗数",
		}, []string{"reason"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobmatch_sessions_created_total",
			Help: "発行したセッションの合計数",
		}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobmatch_logouts_total",
			Help: "ログアウトの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmatch_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.loginLatency,
		c.csrfRejections,
		c.tokenFailures,
		c.sessionsCreated,
		c.logouts,
		c.httpStatus,
	)

	return c
}

// RecordLoginAttempt はログイン試行を結果別に記録する。
func (c *Collector) RecordLoginAttempt(result string) {
	c.loginAttempts.WithLabelValues(result).Inc()
}

// RecordLoginLatency はログイン処理のレイテンシを記録する。
func (c *Collector) RecordLoginLatency(duration time.Duration) {
	c.loginLatency.Observe(duration.Seconds())
}

// RecordCSRFRejection はCSRF検証失敗を記録する。
func (c *Collector) RecordCSRFRejection(reason string) {
	c.csrfRejections.WithLabelValues(reason).Inc()
}

// RecordTokenFailure はトークン検証失敗を記録する。
func (c *Collector) RecordTokenFailure(reason string) {
	c.tokenFailures.WithLabelValues(reason).Inc()
}

// RecordSessionCreated はセッション発行を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout() {
	c.logouts.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordLoginAttempt(string) {}
func (Nop) RecordLoginLatency(time.Duration) {}
func (Nop) RecordCSRFRejection(string) {}
func (Nop) RecordTokenFailure(string) {}
func (Nop) RecordSessionCreated() {}
func (Nop) RecordLogout() {}
func (Nop) RecordHTTPStatus(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
