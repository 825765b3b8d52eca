package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)

	m.RecordAnomaly("low_stock", "high")
	m.RecordAnomaly("low_stock", "high")
	m.RecordDetectorError("expiry_warning")
	m.RecordStockChange("sale")
	m.RecordAlert("security", "error")
	m.RecordRun("timer", "ok")
	m.ObserveDetection(time.Now())
	m.TrackStoreOperation("list_products")(time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnomaliesTotal.WithLabelValues("low_stock", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DetectorErrors.WithLabelValues("expiry_warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StockChangesTotal.WithLabelValues("sale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsTotal.WithLabelValues("security", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DetectionRuns.WithLabelValues("timer", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StoreOperationTime))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAnomaly("low_stock", "high")
		m.RecordDetectorError("x")
		m.RecordStockChange("sale")
		m.RecordAlert("security", "error")
		m.RecordRun("manual", "error")
		m.ObserveDetection(time.Now())
		m.TrackStoreOperation("x")(time.Now())
	})
}
