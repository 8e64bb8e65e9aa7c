// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeromicro/go-zero/core/logx"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Poller metrics
	PollCycles      *prometheus.CounterVec
	PollDuration    prometheus.Histogram
	FetchErrors     *prometheus.CounterVec
	SamplesRecorded *prometheus.CounterVec
	SamplesEvicted  prometheus.Counter

	// Store metrics
	StoreSeries  prometheus.Gauge
	StoreSamples prometheus.Gauge

	// Status metrics
	StatusPrice *prometheus.GaugeVec

	// Report metrics
	ReportsServed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "marketpulse"
	}

	return &Metrics{
		PollCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Total number of poll cycles by status",
		}, []string{"status"}),
		PollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "fetch_errors_total",
			Help:      "Total number of snapshot fetch errors by symbol",
		}, []string{"symbol"}),
		SamplesRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "samples_recorded_total",
			Help:      "Total number of metric samples recorded by metric kind",
		}, []string{"metric"}),
		SamplesEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "samples_evicted_total",
			Help:      "Total number of samples evicted past retention",
		}),
		StoreSeries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "series",
			Help:      "Current number of symbol/metric series held in memory",
		}),
		StoreSamples: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "samples",
			Help:      "Current number of samples held in memory",
		}),
		StatusPrice: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "price",
			Help:      "Last price observed by the status refresher",
		}, []string{"symbol"}),
		ReportsServed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "served_total",
			Help:      "Total number of report commands served",
		}, []string{"command"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr in a background goroutine and returns the
// server so callers can shut it down.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Errorf("observability: metrics server: %v", err)
		}
	}()
	return srv
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPollCycle records one completed poll cycle.
func RecordPollCycle(status string, durationSeconds float64) {
	DefaultMetrics.PollCycles.WithLabelValues(status).Inc()
	DefaultMetrics.PollDuration.Observe(durationSeconds)
}

// RecordFetchError increments the fetch error counter for a symbol.
func RecordFetchError(symbol string) {
	DefaultMetrics.FetchErrors.WithLabelValues(symbol).Inc()
}

// RecordSample increments the recorded sample counter for a metric kind.
func RecordSample(metric string) {
	DefaultMetrics.SamplesRecorded.WithLabelValues(metric).Inc()
}

// RecordEvictions adds evicted samples to the eviction counter.
func RecordEvictions(n int) {
	if n > 0 {
		DefaultMetrics.SamplesEvicted.Add(float64(n))
	}
}

// UpdateStoreSize refreshes the in-memory store gauges.
func UpdateStoreSize(series, samples int) {
	DefaultMetrics.StoreSeries.Set(float64(series))
	DefaultMetrics.StoreSamples.Set(float64(samples))
}

// UpdateStatusPrice refreshes the status price gauge for a symbol.
func UpdateStatusPrice(symbol string, price float64) {
	DefaultMetrics.StatusPrice.WithLabelValues(symbol).Set(price)
}

// RecordReport increments the served report counter for a command.
func RecordReport(command string) {
	DefaultMetrics.ReportsServed.WithLabelValues(command).Inc()
}
