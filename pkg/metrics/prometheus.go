// Package metrics provides Prometheus metrics for the judgeboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// defaultBuckets are millisecond latency buckets.
var defaultBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500} //nolint:gochecknoglobals // read-only

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace      string
	latencyBuckets []float64
	enabled        bool
	constLabels    map[string]string
	metricPrefix   string
	registry       prometheus.Registerer

	// Scoring
	submissions        *prometheus.CounterVec
	scoreUpserts       *prometheus.CounterVec
	commentWrites      *prometheus.CounterVec
	submissionLatency  prometheus.Histogram
	validationFailures prometheus.Counter

	// Leaderboard
	leaderboardBuilds   *prometheus.CounterVec
	leaderboardLatency  prometheus.Histogram
	leaderboardTeams    prometheus.Gauge
	leaderboardExports  *prometheus.CounterVec
	registeredJudges    prometheus.Gauge
	registeredTeams     prometheus.Gauge
	registeredScoreRows prometheus.Gauge

	// Identity
	signIns              *prometheus.CounterVec
	sessionInvalidations *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // service registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "judgeboard",
		latencyBuckets: defaultBuckets,
		enabled:        true,
		constLabels:    make(map[string]string),
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.constLabels)
	msBuckets := m.latencyBuckets

	m.submissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("submissions_total"),
		Help: "Score submissions by outcome (ok, partial, rejected)",
	}, []string{"outcome"})

	m.scoreUpserts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("score_upserts_total"),
		Help: "Per-category score upserts by outcome",
	}, []string{"outcome"})

	m.commentWrites = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("comment_writes_total"),
		Help: "Comment writes by outcome (ok, error, skipped)",
	}, []string{"outcome"})

	m.submissionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name:    m.name("submission_duration_ms"),
		Help:    "Time to apply one submission including the re-read",
		Buckets: msBuckets,
	})

	m.validationFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("validation_failures_total"),
		Help: "Submissions refused by the validation gate",
	})

	m.leaderboardBuilds = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("leaderboard_builds_total"),
		Help: "Leaderboard computations by outcome",
	}, []string{"outcome"})

	m.leaderboardLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name:    m.name("leaderboard_duration_ms"),
		Help:    "Time to fetch inputs and rank teams",
		Buckets: msBuckets,
	})

	m.leaderboardTeams = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("leaderboard_teams"),
		Help: "Teams in the last computed leaderboard",
	})

	m.leaderboardExports = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("leaderboard_exports_total"),
		Help: "Leaderboard exports by format",
	}, []string{"format"})

	m.registeredJudges = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("judges"),
		Help: "Registered judges",
	})

	m.registeredTeams = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("teams"),
		Help: "Registered teams",
	})

	m.registeredScoreRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("score_rows"),
		Help: "Persisted score rows seen by the last leaderboard computation",
	})

	m.signIns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("sign_ins_total"),
		Help: "Sign-in attempts by identity kind and outcome",
	}, []string{"kind", "outcome"})

	m.sessionInvalidations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("session_invalidations_total"),
		Help: "Session invalidations by source (signout, notification)",
	}, []string{"source"})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name:    m.name("store_duration_ms"),
		Help:    "Data service call latency by operation",
		Buckets: msBuckets,
	}, []string{"op"})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("store_errors_total"),
		Help: "Data service errors by operation",
	}, []string{"op"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("http_requests_total"),
		Help: "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name:    m.name("http_request_duration_ms"),
		Help:    "HTTP request latency",
		Buckets: msBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("errors_by_type_total"),
		Help: "Errors by type and severity",
	}, []string{"error_type", "severity"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("errors_by_endpoint_total"),
		Help: "Errors by endpoint, method and type",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("system_memory_bytes"),
		Help: "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name: m.name("system_goroutines"),
		Help: "Live goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, ConstLabels: constLabels,
		Name:    m.name("system_gc_pause_ms"),
		Help:    "Average GC pause",
		Buckets: msBuckets,
	})
}

// RecordSubmission counts one submission with outcome ok, partial or rejected.
func (m *Manager) RecordSubmission(outcome string, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
	m.submissionLatency.Observe(latencyMs)
}

// RecordScoreUpsert counts one per-category write.
func (m *Manager) RecordScoreUpsert(outcome string) {
	if m.enabled {
		m.scoreUpserts.WithLabelValues(outcome).Inc()
	}
}

// RecordCommentWrite counts one comment write attempt.
func (m *Manager) RecordCommentWrite(outcome string) {
	if m.enabled {
		m.commentWrites.WithLabelValues(outcome).Inc()
	}
}

// RecordValidationFailure counts a payload refused by the validation gate.
func (m *Manager) RecordValidationFailure() {
	if m.enabled {
		m.validationFailures.Inc()
	}
}

// RecordLeaderboard records one leaderboard computation.
func (m *Manager) RecordLeaderboard(outcome string, latencyMs float64, teams, scoreRows int) {
	if !m.enabled {
		return
	}
	m.leaderboardBuilds.WithLabelValues(outcome).Inc()
	m.leaderboardLatency.Observe(latencyMs)
	if outcome == OutcomeOK {
		m.leaderboardTeams.Set(float64(teams))
		m.registeredTeams.Set(float64(teams))
		m.registeredScoreRows.Set(float64(scoreRows))
	}
}

// RecordExport counts a leaderboard export.
func (m *Manager) RecordExport(format string) {
	if m.enabled {
		m.leaderboardExports.WithLabelValues(format).Inc()
	}
}

// UpdateJudgeCount sets the registered judges gauge.
func (m *Manager) UpdateJudgeCount(n int) {
	if m.enabled {
		m.registeredJudges.Set(float64(n))
	}
}

// RecordSignIn counts a sign-in attempt.
func (m *Manager) RecordSignIn(kind, outcome string) {
	if m.enabled {
		m.signIns.WithLabelValues(kind, outcome).Inc()
	}
}

// RecordSessionInvalidation counts an invalidation by source.
func (m *Manager) RecordSessionInvalidation(source string) {
	if m.enabled {
		m.sessionInvalidations.WithLabelValues(source).Inc()
	}
}

// RecordStoreCall observes a data service call.
func (m *Manager) RecordStoreCall(op string, latencyMs float64, err error) {
	if !m.enabled {
		return
	}
	m.storeLatency.WithLabelValues(op).Observe(latencyMs)
	if err != nil {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}

// RecordHTTPRequest counts one HTTP request and observes its latency.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError counts an HTTP error response.
func (m *Manager) RecordHTTPError(endpoint, method, errorType, severity string) {
	if !m.enabled {
		return
	}
	m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	m.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// UpdateSystem sets the process gauges.
func (m *Manager) UpdateSystem(memBytes uint64, goroutines int, avgGCPauseMs float64) {
	if !m.enabled {
		return
	}
	m.systemMemoryUsage.Set(float64(memBytes))
	m.systemGoroutineCount.Set(float64(goroutines))
	if avgGCPauseMs > 0 {
		m.systemGCPauseTime.Observe(avgGCPauseMs)
	}
}

// Package-level helpers on the global manager.

func RecordSubmission(outcome string, latencyMs float64) {
	globalManager.RecordSubmission(outcome, latencyMs)
}

func RecordScoreUpsert(outcome string) { globalManager.RecordScoreUpsert(outcome) }

func RecordCommentWrite(outcome string) { globalManager.RecordCommentWrite(outcome) }

func RecordValidationFailure() { globalManager.RecordValidationFailure() }

func RecordLeaderboard(outcome string, latencyMs float64, teams, scoreRows int) {
	globalManager.RecordLeaderboard(outcome, latencyMs, teams, scoreRows)
}

func RecordExport(format string) { globalManager.RecordExport(format) }

func UpdateJudgeCount(n int) { globalManager.UpdateJudgeCount(n) }

func RecordSignIn(kind, outcome string) { globalManager.RecordSignIn(kind, outcome) }

func RecordSessionInvalidation(source string) { globalManager.RecordSessionInvalidation(source) }

func RecordStoreCall(op string, latencyMs float64, err error) {
	globalManager.RecordStoreCall(op, latencyMs, err)
}

func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

func RecordHTTPError(endpoint, method, errorType, severity string) {
	globalManager.RecordHTTPError(endpoint, method, errorType, severity)
}

func UpdateSystem(memBytes uint64, goroutines int, avgGCPauseMs float64) {
	globalManager.UpdateSystem(memBytes, goroutines, avgGCPauseMs)
}

// GetRegistry returns the registry the global manager registers on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
