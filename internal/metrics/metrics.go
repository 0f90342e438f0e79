package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's collectors; /metrics serves only this registry.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cromos",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cromos",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cromos",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Committed lifecycle transitions by entity kind and operation.",
		},
		[]string{"kind", "operation"},
	)

	cascadeRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cromos",
			Subsystem: "lifecycle",
			Name:      "cascade_rows_total",
			Help:      "Dependent rows removed by hard deletes.",
		},
		[]string{"table"},
	)

	reports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cromos",
			Subsystem: "moderation",
			Name:      "reports_total",
			Help:      "Report submissions and resolutions.",
		},
		[]string{"event", "value"},
	)

	sweepEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cromos",
			Subsystem: "retention",
			Name:      "sweep_entries_total",
			Help:      "Retention entries handled by the sweep, by outcome.",
		},
		[]string{"outcome"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cromos",
			Subsystem: "retention",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of retention sweep runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	rateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cromos",
			Name:      "ratelimit_rejections_total",
			Help:      "Requests rejected by the admin rate guard.",
		},
		[]string{"route"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		transitions,
		cascadeRows,
		reports,
		sweepEntries,
		sweepDuration,
		rateLimitRejections,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordTransition counts a committed lifecycle operation
// (soft_delete, restore, hard_delete, suspend, unsuspend, status_change).
func RecordTransition(kind, operation string) {
	transitions.WithLabelValues(kind, operation).Inc()
}

func RecordCascade(chats, trades, media, listings, templates int64) {
	cascadeRows.WithLabelValues("chat_messages").Add(float64(chats))
	cascadeRows.WithLabelValues("trades").Add(float64(trades))
	cascadeRows.WithLabelValues("media_files").Add(float64(media))
	cascadeRows.WithLabelValues("listings").Add(float64(listings))
	cascadeRows.WithLabelValues("templates").Add(float64(templates))
}

func RecordReportSubmitted(reason string) {
	reports.WithLabelValues("submitted", reason).Inc()
}

func RecordReportResolved(action string) {
	reports.WithLabelValues("resolved", action).Inc()
}

func RecordSweep(erased, skipped, failed int, d time.Duration) {
	sweepEntries.WithLabelValues("erased").Add(float64(erased))
	sweepEntries.WithLabelValues("skipped").Add(float64(skipped))
	sweepEntries.WithLabelValues("failed").Add(float64(failed))
	sweepDuration.Observe(d.Seconds())
}

func RecordRateLimitRejection(route string) {
	rateLimitRejections.WithLabelValues(route).Inc()
}
