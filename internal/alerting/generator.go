// Package alerting turns open anomalies into user-facing alerts.
package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"inventory-backend/internal/metrics"
	"inventory-backend/internal/models"
	"inventory-backend/internal/store"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Policy decides the alert type, severity mapping and per-product cooldown.
type Policy struct {
	Name      string
	AlertType string
	Cooldown  time.Duration
	Severity  func(models.Severity) models.AlertSeverity
}

// SecurityPolicy is the theft-focused policy: every alert is a security error.
var SecurityPolicy = Policy{
	Name:      "security",
	AlertType: models.AlertTypeSecurity,
	Cooldown:  2 * time.Hour,
	Severity:  func(models.Severity) models.AlertSeverity { return models.AlertError },
}

var StandardPolicy = Policy{
	Name:      "standard",
	AlertType: models.AlertTypeAnomaly,
	Cooldown:  time.Hour,
	Severity:  standardSeverity,
}

func standardSeverity(s models.Severity) models.AlertSeverity {
	switch s {
	case models.SeverityCritical:
		return models.AlertError
	case models.SeverityHigh, models.SeverityMedium:
		return models.AlertWarning
	default:
		return models.AlertInfo
	}
}

func PolicyByName(name string) (Policy, error) {
	switch name {
	case SecurityPolicy.Name, "":
		return SecurityPolicy, nil
	case StandardPolicy.Name:
		return StandardPolicy, nil
	}
	return Policy{}, fmt.Errorf("unknown alert policy %q", name)
}

type Store interface {
	FindAnomalies(ctx context.Context, f store.AnomalyFilter) ([]models.Anomaly, error)
	AlertExists(ctx context.Context, f store.AlertFilter) (bool, error)
	InsertAlerts(ctx context.Context, alerts []models.Alert) error
}

type Generator struct {
	store   Store
	policy  Policy
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewGenerator(st Store, policy Policy, log *zap.Logger, m *metrics.Metrics) *Generator {
	return &Generator{store: st, policy: policy, log: log, metrics: m}
}

var severityRank = map[models.Severity]int{
	models.SeverityLow:      0,
	models.SeverityMedium:   1,
	models.SeverityHigh:     2,
	models.SeverityCritical: 3,
}

// Generate re-reads every open anomaly and raises at most one alert per product
// (system-wide anomalies share one scope) unless an alert of the policy's type was
// already raised for it within the cooldown. The most severe anomaly wins.
func (g *Generator) Generate(ctx context.Context, now time.Time) ([]models.Alert, error) {
	open, err := g.store.FindAnomalies(ctx, store.AnomalyFilter{Resolved: store.Bool(false)})
	if err != nil {
		return nil, fmt.Errorf("load open anomalies: %w", err)
	}

	sort.SliceStable(open, func(i, j int) bool {
		return severityRank[open[i].Severity] > severityRank[open[j].Severity]
	})

	handled := map[uint]bool{}
	alerts := []models.Alert{}
	for _, a := range open {
		var scope uint
		if a.ProductID != nil {
			scope = *a.ProductID
		}
		if handled[scope] {
			continue
		}

		exists, err := g.store.AlertExists(ctx, store.AlertFilter{
			ProductID:  a.ProductID,
			SystemWide: a.ProductID == nil,
			Type:       g.policy.AlertType,
			Since:      now.Add(-g.policy.Cooldown),
		})
		if err != nil {
			g.log.Warn("alert cooldown check failed", zap.Uint("anomaly_id", a.ID), zap.Error(err))
			continue
		}
		handled[scope] = true
		if exists {
			continue
		}

		alerts = append(alerts, g.build(a, now))
	}

	if len(alerts) == 0 {
		return alerts, nil
	}
	if err := g.store.InsertAlerts(ctx, alerts); err != nil {
		return nil, fmt.Errorf("insert %d alerts: %w", len(alerts), err)
	}
	for _, al := range alerts {
		g.metrics.RecordAlert(al.Type, string(al.Severity))
	}
	return alerts, nil
}

func (g *Generator) build(a models.Anomaly, now time.Time) models.Alert {
	msg := a.Description
	if a.Product != nil {
		msg = fmt.Sprintf("%s: %s", a.Product.Name, a.Description)
	}

	meta, _ := json.Marshal(map[string]any{
		"anomaly_id":       a.ID,
		"anomaly_type":     a.Type,
		"anomaly_severity": a.Severity,
		"confidence":       a.Confidence,
	})

	return models.Alert{
		Type:      g.policy.AlertType,
		Title:     Title(a.Type),
		Message:   msg,
		Severity:  g.policy.Severity(a.Severity),
		ProductID: a.ProductID,
		Metadata:  datatypes.JSON(meta),
		CreatedAt: now,
	}
}

// Title turns "potential_theft" into "POTENTIAL THEFT".
func Title(t models.AnomalyType) string {
	return strings.ToUpper(strings.Join(strings.Split(string(t), "_"), " "))
}
