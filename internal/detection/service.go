package detection

import (
	"context"
	"fmt"
	"time"

	"inventory-backend/internal/metrics"
	"inventory-backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AlertGenerator interface {
	Generate(ctx context.Context, now time.Time) ([]models.Alert, error)
}

type Result struct {
	RunID     string           `json:"run_id"`
	Anomalies []models.Anomaly `json:"anomalies"`
	Alerts    []models.Alert   `json:"alerts"`
}

// Service wires engine, gate and alert generation into one detection pass.
type Service struct {
	engine  *Engine
	gate    *Gate
	alerts  AlertGenerator
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(engine *Engine, gate *Gate, alerts AlertGenerator, log *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		engine:  engine,
		gate:    gate,
		alerts:  alerts,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// DetectAnomalies runs the rules and persists what they found. When persisting
// fails the detected anomalies are still returned alongside the error.
func (s *Service) DetectAnomalies(ctx context.Context, now time.Time, runID string) ([]models.Anomaly, error) {
	anomalies, err := s.engine.Detect(ctx, now, runID)
	if err != nil {
		return nil, fmt.Errorf("detect anomalies: %w", err)
	}
	if err := s.gate.Persist(ctx, anomalies); err != nil {
		return anomalies, err
	}
	return anomalies, nil
}

// RunDetection is one full pass: detect, persist, then raise alerts for every
// open anomaly. It is safe to call at any time, including concurrently.
func (s *Service) RunDetection(ctx context.Context) (*Result, error) {
	start := time.Now()
	defer s.metrics.ObserveDetection(start)

	res := &Result{RunID: uuid.NewString(), Anomalies: []models.Anomaly{}, Alerts: []models.Alert{}}
	now := s.now()
	log := s.log.With(zap.String("run_id", res.RunID))

	anomalies, err := s.DetectAnomalies(ctx, now, res.RunID)
	if anomalies != nil {
		res.Anomalies = anomalies
	}
	if err != nil {
		log.Error("detection pass failed", zap.Error(err))
		return res, err
	}

	alerts, err := s.alerts.Generate(ctx, now)
	if alerts != nil {
		res.Alerts = alerts
	}
	if err != nil {
		log.Error("alert generation failed", zap.Error(err))
		return res, fmt.Errorf("generate alerts: %w", err)
	}

	log.Info("detection pass finished",
		zap.Int("anomalies", len(res.Anomalies)),
		zap.Int("alerts", len(res.Alerts)),
		zap.Duration("took", time.Since(start)))
	return res, nil
}
