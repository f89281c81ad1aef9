// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証ミドルウェア、マジックリンクフロー、クリーンアップジョブから利用する。
type MetricsCollector interface {
	RecordTokenVerification(result string)
	RecordMagicLinkIssued()
	RecordMagicLinkRedemption(result string)
	RecordMagicLinksDeleted(count int64)
	RecordHTTPRequest(statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	tokenVerifications   *prometheus.CounterVec
	magicLinksIssued     prometheus.Counter
	magicLinkRedemptions *prometheus.CounterVec
	magicLinksDeleted    prometheus.Counter
	httpStatus           *prometheus.CounterVec
	httpLatency          prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfsbase_token_verifications_total",
			Help: "セッショントークン検証の結果別件数",
		}, []string{"result"}),
		magicLinksIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfsbase_magic_links_issued_total",
			Help: "発行したマジックリンクの合計数",
		}),
		magicLinkRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfsbase_magic_link_redemptions_total",
			Help: "マジックリンク引き換えの結果別件数",
		}, []string{"result"}),
		magicLinksDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfsbase_magic_links_deleted_total",
			Help: "クリーンアップで削除したマジックリンクの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfsbase_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rfsbase_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.tokenVerifications,
		c.magicLinksIssued,
		c.magicLinkRedemptions,
		c.magicLinksDeleted,
		c.httpStatus,
		c.httpLatency,
	)

	return c
}

// RecordTokenVerification はトークン検証結果（verified / rejected / missing）を記録する。
func (c *Collector) RecordTokenVerification(result string) {
	c.tokenVerifications.WithLabelValues(result).Inc()
}

// RecordMagicLinkIssued はマジックリンクの発行を記録する。
func (c *Collector) RecordMagicLinkIssued() {
	c.magicLinksIssued.Inc()
}

// RecordMagicLinkRedemption はマジックリンク引き換え結果を記録する。
func (c *Collector) RecordMagicLinkRedemption(result string) {
	c.magicLinkRedemptions.WithLabelValues(result).Inc()
}

// RecordMagicLinksDeleted は削除件数を加算する。
func (c *Collector) RecordMagicLinksDeleted(count int64) {
	c.magicLinksDeleted.Add(float64(count))
}

// RecordHTTPRequest はステータスコードと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントのみを提供するHTTPハンドラーを返す。
// workerプロセスがAPIサーバーとは別に公開する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
