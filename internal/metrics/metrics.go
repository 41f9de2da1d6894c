// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// バックエンド呼び出しの結果ラベル。
const (
	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
)

// バックエンド名ラベル。
const (
	BackendIdentity = "identity"
	BackendRecord   = "record"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、バックエンドクライアント、サービス層から利用する。
type MetricsCollector interface {
	RecordAuthRejection(reason string)
	RecordBackendCall(backend, operation, outcome string, duration time.Duration)
	RecordBestEffortFailure(step string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authRejections     *prometheus.CounterVec
	backendLatency     *prometheus.HistogramVec
	bestEffortFailures *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bff_auth_rejections_total",
			Help: "認証ゲートで拒否したリクエスト数（理由別）",
		}, []string{"reason"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bff_backend_request_duration_seconds",
			Help:    "外部バックエンド呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "operation", "outcome"}),
		bestEffortFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bff_best_effort_failures_total",
			Help: "ベストエフォートで握りつぶした失敗の数（ステップ別）",
		}, []string{"step"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bff_http_responses_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authRejections,
		c.backendLatency,
		c.bestEffortFailures,
		c.httpStatus,
	)

	return c
}

// RecordAuthRejection は認証ゲートでの拒否を記録する。
func (c *Collector) RecordAuthRejection(reason string) {
	c.authRejections.WithLabelValues(reason).Inc()
}

// RecordBackendCall はバックエンド呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordBackendCall(backend, operation, outcome string, duration time.Duration) {
	c.backendLatency.WithLabelValues(backend, operation, outcome).Observe(duration.Seconds())
}

// RecordBestEffortFailure はベストエフォート処理の失敗を記録する。
func (c *Collector) RecordBestEffortFailure(step string) {
	c.bestEffortFailures.WithLabelValues(step).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordAuthRejection(string)                              {}
func (Nop) RecordBackendCall(string, string, string, time.Duration) {}
func (Nop) RecordBestEffortFailure(string)                          {}
func (Nop) RecordHTTPStatus(int)                                    {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
