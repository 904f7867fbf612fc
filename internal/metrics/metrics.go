// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層から利用する。
type MetricsCollector interface {
	RecordSubscribeResult(outcome string)
	RecordUnsubscribe(subscriptionType string)
	RecordQuotaRejection()
	RecordDiscoveryScan(source string, candidateCount int)
	RecordCatalogSearchLatency(duration time.Duration)
}

// subscribeの結果ラベル値。
const (
	SubscribeOutcomeCreated           = "created"
	SubscribeOutcomeResubscribed      = "resubscribed"
	SubscribeOutcomeAlreadySubscribed = "already_subscribed"
	SubscribeOutcomeQuotaExceeded     = "quota_exceeded"
	SubscribeOutcomeNotFound          = "not_found"
	SubscribeOutcomeError             = "error"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	subscribeResults     *prometheus.CounterVec
	unsubscribes         *prometheus.CounterVec
	quotaRejections      prometheus.Counter
	discoveryScans       *prometheus.CounterVec
	discoveryCandidates  *prometheus.CounterVec
	catalogSearchLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		subscribeResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedhub_subscribe_total",
			Help: "subscribe操作の結果別の合計数",
		}, []string{"outcome"}),
		unsubscribes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedhub_unsubscribe_total",
			Help: "unsubscribe操作の購読種類別の合計数",
		}, []string{"type"}),
		quotaRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedhub_quota_rejection_total",
			Help: "購読上限超過によるsubscribe拒否の合計数",
		}),
		discoveryScans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedhub_discovery_scan_total",
			Help: "フィード探索の入力種類別の合計数",
		}, []string{"source"}),
		discoveryCandidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedhub_discovery_candidates_total",
			Help: "フィード探索で検出された候補の合計数",
		}, []string{"source"}),
		catalogSearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedhub_catalog_search_latency_seconds",
			Help:    "フィードカタログ検索のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.subscribeResults,
		c.unsubscribes,
		c.quotaRejections,
		c.discoveryScans,
		c.discoveryCandidates,
		c.catalogSearchLatency,
	)

	return c
}

// RecordSubscribeResult はsubscribe操作の結果を記録する。
func (c *Collector) RecordSubscribeResult(outcome string) {
	c.subscribeResults.WithLabelValues(outcome).Inc()
}

// RecordUnsubscribe はunsubscribe操作を記録する。
func (c *Collector) RecordUnsubscribe(subscriptionType string) {
	c.unsubscribes.WithLabelValues(subscriptionType).Inc()
}

// RecordQuotaRejection は購読上限超過による拒否を記録する。
func (c *Collector) RecordQuotaRejection() {
	c.quotaRejections.Inc()
}

// RecordDiscoveryScan はフィード探索の実行と検出候補数を記録する。
func (c *Collector) RecordDiscoveryScan(source string, candidateCount int) {
	c.discoveryScans.WithLabelValues(source).Inc()
	c.discoveryCandidates.WithLabelValues(source).Add(float64(candidateCount))
}

// RecordCatalogSearchLatency はカタログ検索のレイテンシを記録する。
func (c *Collector) RecordCatalogSearchLatency(duration time.Duration) {
	c.catalogSearchLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
