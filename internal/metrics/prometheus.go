package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every metric a batch pass records. A nil *Manager is valid
// and records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         *prometheus.Registry

	// Categorization
	eventsCategorized       *prometheus.CounterVec
	categorizationFailures  prometheus.Counter
	categorizationRetries   *prometheus.CounterVec
	categorizationCacheHits prometheus.Counter

	// Integrity
	alerts *prometheus.CounterVec

	// Publishing
	profilesPublished prometheus.Counter
	lastPassUnix      prometheus.Gauge
	profileCount      prometheus.Gauge
	partyCount        prometheus.Gauge

	stageDuration *prometheus.HistogramVec
}

// NewManager creates a new metrics manager. Without WithRegistry it uses a
// fresh registry, so Go runtime collectors stay out of textfile exports.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "poldna",
		subsystem:        "pass",
		histogramBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		enabled:          true,
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsCategorized = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_categorized_total",
		Help:      "Voting events categorized, by result source (llm, cache)",
	}, []string{"source"})

	m.categorizationFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "categorization_failures_total",
		Help:      "Voting events left uncategorized after all attempts",
	})

	m.categorizationRetries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "categorization_retries_total",
		Help:      "Retried categorizer calls, by provider",
	}, []string{"provider"})

	m.categorizationCacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "categorization_cache_hits_total",
		Help:      "Categorizations served from cache",
	})

	m.alerts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "alerts_total",
		Help:      "Promise-deviation alerts raised, by severity",
	}, []string{"severity"})

	m.profilesPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "profiles_published_total",
		Help:      "Profiles written by successful publishes",
	})

	m.lastPassUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_success_unixtime",
		Help:      "Unix time of the last successful publish",
	})

	m.profileCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "profiles",
		Help:      "Profiles in the current snapshot",
	})

	m.partyCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "parties",
		Help:      "Party aggregates in the current snapshot",
	})

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_duration_seconds",
		Help:      "Duration of batch pass stages",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})
}

func (m *Manager) active() bool {
	return m != nil && m.enabled
}

// Registry returns the registry backing the manager
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordCategorized counts one categorized event
func (m *Manager) RecordCategorized(source string) {
	if !m.active() {
		return
	}
	m.eventsCategorized.WithLabelValues(source).Inc()
	if source == "cache" {
		m.categorizationCacheHits.Inc()
	}
}

// RecordCategorizationFailure counts one event that could not be categorized
func (m *Manager) RecordCategorizationFailure() {
	if !m.active() {
		return
	}
	m.categorizationFailures.Inc()
}

// RecordRetry counts one retried categorizer call
func (m *Manager) RecordRetry(provider string) {
	if !m.active() {
		return
	}
	m.categorizationRetries.WithLabelValues(provider).Inc()
}

// RecordAlerts counts n alerts of one severity
func (m *Manager) RecordAlerts(severity string, n int) {
	if !m.active() || n <= 0 {
		return
	}
	m.alerts.WithLabelValues(severity).Add(float64(n))
}

// RecordPublish records a successful snapshot publish
func (m *Manager) RecordPublish(profiles, parties int, at time.Time) {
	if !m.active() {
		return
	}
	m.profilesPublished.Add(float64(profiles))
	m.profileCount.Set(float64(profiles))
	m.partyCount.Set(float64(parties))
	m.lastPassUnix.Set(float64(at.Unix()))
}

// ObserveStage records how long one stage of a pass took
func (m *Manager) ObserveStage(stage string, d time.Duration) {
	if !m.active() {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile writes every metric to path in the text exposition format,
// for the node exporter textfile collector
func (m *Manager) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return nil
}
