package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors of the service. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	AnomaliesTotal     *prometheus.CounterVec
	DetectorErrors     *prometheus.CounterVec
	DetectionDuration  prometheus.Histogram
	DetectionRuns      *prometheus.CounterVec
	AlertsTotal        *prometheus.CounterVec
	StockChangesTotal  *prometheus.CounterVec
	StoreOperationTime *prometheus.HistogramVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New(prefix string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AnomaliesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_anomalies_total",
			Help: "Total number of anomalies emitted by detection",
		}, []string{"type", "severity"}),
		DetectorErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_detector_errors_total",
			Help: "Total number of detector failures",
		}, []string{"detector"}),
		DetectionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_detection_duration_seconds",
			Help:    "Duration of detection passes in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		DetectionRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_detection_runs_total",
			Help: "Total number of detection passes by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		AlertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_alerts_total",
			Help: "Total number of alerts created",
		}, []string{"type", "severity"}),
		StockChangesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_stock_changes_total",
			Help: "Total number of applied stock changes",
		}, []string{"type"}),
		StoreOperationTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_store_operation_duration_seconds",
			Help:    "Duration of ledger store operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) RecordAnomaly(anomalyType, severity string) {
	if m == nil {
		return
	}
	m.AnomaliesTotal.WithLabelValues(anomalyType, severity).Inc()
}

func (m *Metrics) RecordDetectorError(detector string) {
	if m == nil {
		return
	}
	m.DetectorErrors.WithLabelValues(detector).Inc()
}

func (m *Metrics) ObserveDetection(start time.Time) {
	if m == nil {
		return
	}
	m.DetectionDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) RecordRun(trigger, outcome string) {
	if m == nil {
		return
	}
	m.DetectionRuns.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) RecordAlert(alertType, severity string) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(alertType, severity).Inc()
}

func (m *Metrics) RecordStockChange(txType string) {
	if m == nil {
		return
	}
	m.StockChangesTotal.WithLabelValues(txType).Inc()
}

// TrackStoreOperation returns a function that records the duration of a store call.
//
//	defer m.TrackStoreOperation("list_products")(time.Now())
func (m *Metrics) TrackStoreOperation(operation string) func(start time.Time) {
	return func(start time.Time) {
		if m == nil {
			return
		}
		m.StoreOperationTime.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
