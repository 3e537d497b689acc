// Package metrics holds the Prometheus collectors for the credit report API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Report processing outcomes
const (
	OutcomeSuccess      = "success"
	OutcomeDecodeError  = "decode_error"
	OutcomeArchiveError = "archive_error"
	OutcomeStoreError   = "store_error"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	reportsProcessed *prometheus.CounterVec
	processDuration  prometheus.Histogram
	accountsPerFile  prometheus.Histogram
	extractionFaults *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditreport_http_requests_total",
				Help: "HTTP requests by route, method and status.",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "creditreport_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		reportsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditreport_reports_processed_total",
				Help: "Uploaded reports by processing outcome.",
			},
			[]string{"outcome"},
		),
		processDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "creditreport_process_duration_seconds",
				Help:    "Time to decode, extract and persist one report.",
				Buckets: prometheus.DefBuckets,
			},
		),
		accountsPerFile: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "creditreport_accounts_per_report",
				Help:    "Number of credit accounts extracted per report.",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
		),
		extractionFaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creditreport_extraction_faults_total",
				Help: "Extraction sections that fell back to defaults after a fault.",
			},
			[]string{"section"},
		),
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// IncrProcessed counts a processed upload by outcome.
func (m *Metrics) IncrProcessed(outcome string) {
	m.reportsProcessed.WithLabelValues(outcome).Inc()
}

// ObserveProcessing records pipeline duration and extracted account count.
func (m *Metrics) ObserveProcessing(d time.Duration, accounts int) {
	m.processDuration.Observe(d.Seconds())
	m.accountsPerFile.Observe(float64(accounts))
}

// IncrExtractionFault counts a section that recovered from a fault.
func (m *Metrics) IncrExtractionFault(section string) {
	m.extractionFaults.WithLabelValues(section).Inc()
}

// ProcessedCount returns the current counter value for an outcome.
func (m *Metrics) ProcessedCount(outcome string) float64 {
	return counterValue(m.reportsProcessed, outcome)
}

// ExtractionFaultCount returns the current counter value for a section.
func (m *Metrics) ExtractionFaultCount(section string) float64 {
	return counterValue(m.extractionFaults, section)
}

// HTTPRequestCount returns the request counter for one route, method and
// status.
func (m *Metrics) HTTPRequestCount(route, method, status string) float64 {
	return counterValue(m.httpRequests, route, method, status)
}

func counterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
