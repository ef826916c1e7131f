package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PollCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_poll_cycles_total",
			Help: "Total number of mailbox poll cycles (count)",
		},
		[]string{"status"},
	)

	PollCycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mail_poll_cycle_duration_ms",
			Help:    "Duration of one mailbox poll cycle in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"status"},
	)

	EmailsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_processed_total",
			Help: "Total number of emails handled by the pipeline (count)",
		},
		[]string{"status"},
	)

	SeenCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dedup_seen_cache_size",
			Help: "Current size of the in-process dedup cache (count)",
		},
	)

	MailboxReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailbox_reconnects_total",
			Help: "Total number of mailbox reconnect attempts (count)",
		},
	)

	PrintSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "print_submissions_total",
			Help: "Total number of files submitted to the spooler (count)",
		},
		[]string{"path", "status"},
	)

	PrintJobWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "print_job_wait_duration_ms",
			Help:    "Time spent waiting for a spooler job to reach a terminal state in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 15000, 30000},
		},
		[]string{"outcome"},
	)

	RenderTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_total",
			Help: "Total number of render operations (count)",
		},
		[]string{"kind", "status"},
	)

	PagesEstimated = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "print_pages_estimated",
			Help:    "Estimated page count per submitted document",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

func RegisterEngineMetrics() {
	prometheus.MustRegister(PollCyclesTotal)
	prometheus.MustRegister(PollCycleDuration)
	prometheus.MustRegister(EmailsProcessedTotal)
	prometheus.MustRegister(SeenCacheSize)
	prometheus.MustRegister(MailboxReconnectsTotal)
}

func RegisterPrintingMetrics() {
	prometheus.MustRegister(PrintSubmissionsTotal)
	prometheus.MustRegister(PrintJobWaitDuration)
	prometheus.MustRegister(RenderTotal)
	prometheus.MustRegister(PagesEstimated)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterAPIMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func IncPollCycle(status string) {
	PollCyclesTotal.WithLabelValues(status).Inc()
}

func ObserveCycleDuration(duration time.Duration, status string) {
	PollCycleDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func IncEmailProcessed(status string) {
	EmailsProcessedTotal.WithLabelValues(status).Inc()
}

func AddEmailsProcessed(status string, count int) {
	if count <= 0 {
		return
	}
	EmailsProcessedTotal.WithLabelValues(status).Add(float64(count))
}

func IncMailboxReconnect() {
	MailboxReconnectsTotal.Inc()
}

func SetSeenCacheSize(size int) {
	SeenCacheSize.Set(float64(size))
}

func IncPrintSubmission(path, status string) {
	PrintSubmissionsTotal.WithLabelValues(path, status).Inc()
}

func ObserveJobWaitDuration(duration time.Duration, outcome string) {
	PrintJobWaitDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func IncRender(kind, status string) {
	RenderTotal.WithLabelValues(kind, status).Inc()
}

func ObservePagesEstimated(pages int) {
	PagesEstimated.Observe(float64(pages))
}
