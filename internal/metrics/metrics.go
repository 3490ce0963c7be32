// Package metrics provides Prometheus instrumentation for the bot.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BalanceSyncSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrlbot_balance_sync_success_total",
		Help: "Successful balance synchronisations",
	})

	BalanceSyncFail = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrlbot_balance_sync_fail_total",
		Help: "Failed balance synchronisations",
	})

	PriceSyncFail = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrlbot_price_sync_fail_total",
		Help: "Failed price synchronisations",
	})

	PriceMissing = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrlbot_price_missing_total",
		Help: "Job runs that could not resolve a price from any source",
	})

	PriceChange = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrlbot_price_change_total",
		Help: "Observed changes of the traded price between price syncs",
	})

	// PriceFetchLatency latency of the last successful exchange price fetch.
	PriceFetchLatency = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qrlbot_price_fetch_latency_seconds",
		Help: "Latency of the last successful price fetch",
	})

	// TaskRuns counts job invocations by task and resulting status.
	TaskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrlbot_task_runs_total",
		Help: "Job invocations by task and status",
	}, []string{"task", "status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qrlbot_job_duration_seconds",
		Help:    "Job duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"task"})

	// TradesTotal counts recorded trades by side and status.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrlbot_trades_total",
		Help: "Recorded trades",
	}, []string{"side", "status"})

	RiskRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrlbot_risk_rejections_total",
		Help: "Signals rejected by risk checks",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrlbot_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qrlbot_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and duration per route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
