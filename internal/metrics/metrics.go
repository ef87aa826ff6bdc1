package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chainsnap"

// LedgerMetrics records ledger reader activity.
type LedgerMetrics struct {
	pages   *prometheus.CounterVec
	latency *prometheus.HistogramVec
	entries *prometheus.CounterVec
}

// PipelineMetrics records snapshot pipeline phases.
type PipelineMetrics struct {
	phase   *prometheus.HistogramVec
	records *prometheus.GaugeVec
}

// APIMetrics records HTTP API traffic and verification outcomes.
type APIMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	verify   *prometheus.CounterVec
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics

	pipelineOnce     sync.Once
	pipelineRegistry *PipelineMetrics

	apiOnce     sync.Once
	apiRegistry *APIMetrics
)

// Ledger returns the lazily-initialised ledger reader metrics.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			pages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "pages_total",
				Help:      "Pages fetched from the ledger node per namespace.",
			}, []string{"namespace"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "page_seconds",
				Help:      "Latency of ledger page requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"namespace"}),
			entries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "entries_total",
				Help:      "Entries yielded by the reader, by decode outcome.",
			}, []string{"namespace", "outcome"}),
		}
		prometheus.MustRegister(ledgerRegistry.pages, ledgerRegistry.latency, ledgerRegistry.entries)
	})
	return ledgerRegistry
}

// ObservePage records one fetched page.
func (m *LedgerMetrics) ObservePage(ns string, duration time.Duration) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(ns).Inc()
	m.latency.WithLabelValues(ns).Observe(duration.Seconds())
}

// ObserveEntry records a decoded or skipped entry.
func (m *LedgerMetrics) ObserveEntry(ns string, decoded bool) {
	if m == nil {
		return
	}
	outcome := "decoded"
	if !decoded {
		outcome = "skipped"
	}
	m.entries.WithLabelValues(ns, outcome).Inc()
}

// Entries returns the entry counter for tests and reports.
func (m *LedgerMetrics) Entries() *prometheus.CounterVec {
	return m.entries
}

// Pipeline returns the lazily-initialised pipeline metrics.
func Pipeline() *PipelineMetrics {
	pipelineOnce.Do(func() {
		pipelineRegistry = &PipelineMetrics{
			phase: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "phase_seconds",
				Help:      "Duration of snapshot pipeline phases.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			}, []string{"phase"}),
			records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "records",
				Help:      "Records written by the last run of each snapshot.",
			}, []string{"snapshot"}),
		}
		prometheus.MustRegister(pipelineRegistry.phase, pipelineRegistry.records)
	})
	return pipelineRegistry
}

// ObservePhase records a phase duration.
func (m *PipelineMetrics) ObservePhase(phase string, duration time.Duration) {
	if m == nil {
		return
	}
	m.phase.WithLabelValues(phase).Observe(duration.Seconds())
}

// SetRecords records the size of a written snapshot.
func (m *PipelineMetrics) SetRecords(snapshot string, n int) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(snapshot).Set(float64(n))
}

// API returns the lazily-initialised HTTP API metrics.
func API() *APIMetrics {
	apiOnce.Do(func() {
		apiRegistry = &APIMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "HTTP requests by route pattern and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "request_seconds",
				Help:      "HTTP request latency by route pattern.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			verify: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "verify_total",
				Help:      "Attestation verifications by scheme and outcome.",
			}, []string{"scheme", "outcome"}),
		}
		prometheus.MustRegister(apiRegistry.requests, apiRegistry.latency, apiRegistry.verify)
	})
	return apiRegistry
}

// ObserveRequest records one HTTP request.
func (m *APIMetrics) ObserveRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveVerify records a verification outcome: valid, invalid or malformed.
func (m *APIMetrics) ObserveVerify(scheme, outcome string) {
	if m == nil {
		return
	}
	m.verify.WithLabelValues(scheme, outcome).Inc()
}

// Verify returns the verification counter for tests.
func (m *APIMetrics) Verify() *prometheus.CounterVec {
	return m.verify
}
