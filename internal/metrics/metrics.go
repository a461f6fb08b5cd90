// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapeRunsTotal          *prometheus.CounterVec
	scrapeProductsTotal      *prometheus.CounterVec
	scrapeProductDurSeconds  *prometheus.HistogramVec
	scrapeRunDurationSeconds prometheus.Histogram
	cacheRefreshesTotal      *prometheus.CounterVec
	cachedProducts           prometheus.Gauge
	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDurSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		scrapeRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esim_scrape_runs_total",
				Help: "Total scrape runs, labeled by fetch channel and outcome.",
			},
			[]string{"channel", "outcome"},
		)

		scrapeProductsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esim_scrape_products_total",
				Help: "Total products processed, labeled by channel and outcome.",
			},
			[]string{"channel", "outcome"},
		)

		scrapeProductDurSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "esim_product_fetch_duration_seconds",
				Help:    "Histogram of per-product fetch+extract latencies by channel.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"channel"},
		)

		scrapeRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "esim_scrape_run_duration_seconds",
				Help:    "Histogram of full run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		cacheRefreshesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esim_cache_refreshes_total",
				Help: "Total cache refresh attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		cachedProducts = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "esim_cached_products",
				Help: "Number of product records in the current cached result.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records one completed or failed scrape run.
func ObserveRun(channel, outcome string, dur time.Duration) {
	scrapeRunsTotal.WithLabelValues(channel, outcome).Inc()
	scrapeRunDurationSeconds.Observe(dur.Seconds())
}

// ObserveProduct records one processed product.
func ObserveProduct(channel, outcome string, dur time.Duration) {
	scrapeProductsTotal.WithLabelValues(channel, outcome).Inc()
	if dur > 0 {
		scrapeProductDurSeconds.WithLabelValues(channel).Observe(dur.Seconds())
	}
}

// ObserveCacheRefresh records one refresh attempt outcome.
func ObserveCacheRefresh(outcome string) {
	cacheRefreshesTotal.WithLabelValues(outcome).Inc()
}

// SetCachedProducts tracks the size of the cached result set.
func SetCachedProducts(n int) {
	cachedProducts.Set(float64(n))
}

// ObserveHTTPRequest records an API request.
func ObserveHTTPRequest(method, route string, code int, dur time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurSeconds.WithLabelValues(method, route).Observe(dur.Seconds())
}
