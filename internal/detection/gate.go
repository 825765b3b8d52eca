package detection

import (
	"context"
	"fmt"

	"inventory-backend/internal/metrics"
	"inventory-backend/internal/models"
	"inventory-backend/internal/store"

	"go.uber.org/zap"
)

// Gate is the persistence boundary for one pass. Rules already decided what is a
// duplicate; the gate only writes the batch.
type Gate struct {
	store   store.AnomalyStore
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewGate(st store.AnomalyStore, log *zap.Logger, m *metrics.Metrics) *Gate {
	return &Gate{store: st, log: log, metrics: m}
}

// Persist writes all anomalies in one bulk insert and fills in their ids.
func (g *Gate) Persist(ctx context.Context, anomalies []models.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}
	if err := g.store.InsertAnomalies(ctx, anomalies); err != nil {
		g.log.Error("persisting anomalies failed", zap.Int("count", len(anomalies)), zap.Error(err))
		return fmt.Errorf("persist %d anomalies: %w", len(anomalies), err)
	}
	for _, a := range anomalies {
		g.metrics.RecordAnomaly(string(a.Type), string(a.Severity))
	}
	return nil
}
