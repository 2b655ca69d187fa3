package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_requests_total",
		Help: "Total number of parking-lot queries by operation",
	}, []string{"op"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parking_request_duration_ms",
		Help:    "Query duration in milliseconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 20, 50, 100, 200, 500},
	}, []string{"op"})
	NotFoundTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parking_not_found_total",
		Help: "Total nearest lookups answered with not-found (empty index)",
	})
	InvalidCoordinateTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parking_invalid_coordinate_total",
		Help: "Total requests rejected for an invalid coordinate",
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_cache_hits_total",
		Help: "Total result cache hits by tier",
	}, []string{"tier"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_cache_misses_total",
		Help: "Total result cache misses by tier",
	}, []string{"tier"})
	IndexLots = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parking_index_lots",
		Help: "Number of parking lots in the live index",
	})
	ReloadTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_reload_total",
		Help: "Index reloads by status",
	}, []string{"status"})
	ReloadDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parking_reload_duration_ms",
		Help:    "Index reload duration in milliseconds",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000},
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(NotFoundTotal)
	prometheus.MustRegister(InvalidCoordinateTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(IndexLots)
	prometheus.MustRegister(ReloadTotal)
	prometheus.MustRegister(ReloadDurationMs)
}

// ObserveRequest 记录一次查询的次数与耗时
func ObserveRequest(op string, began time.Time) {
	RequestsTotal.WithLabelValues(op).Inc()
	RequestDurationMs.WithLabelValues(op).Observe(float64(time.Since(began).Microseconds()) / 1000)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
