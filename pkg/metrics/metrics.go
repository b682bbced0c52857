// Package metrics 定义了网关的 Prometheus 指标。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP 请求
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_gateway_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_gateway_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// 客户库会话
	SessionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_gateway_db_sessions_in_flight",
			Help: "Number of open per-request database sessions",
		},
	)

	// 文件下载，mode 为 in_database 或 catalog
	FileFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_gateway_file_fetch_total",
			Help: "Total number of file retrievals by storage mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	FileBytesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crm_gateway_file_bytes_sent_total",
			Help: "Total bytes streamed to callers by the file endpoint",
		},
	)

	// 外部文档生成
	GeneratorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_gateway_generator_runs_total",
			Help: "Total number of document generator runs by outcome",
		},
		[]string{"outcome"},
	)

	GeneratorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crm_gateway_generator_duration_seconds",
			Help:    "Document generator process wall time in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// 访问日志事件
	JournalEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_gateway_journal_events_total",
			Help: "Access journal events by sink and result",
		},
		[]string{"sink", "result"},
	)
)

// Handler 返回 Prometheus 抓取端点。
func Handler() http.Handler {
	return promhttp.Handler()
}
