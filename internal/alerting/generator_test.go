package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"inventory-backend/internal/metrics"
	"inventory-backend/internal/models"
	"inventory-backend/internal/store"
	"inventory-backend/internal/store/storetest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTitle(t *testing.T) {
	assert.Equal(t, "POTENTIAL THEFT", Title(models.AnomalyPotentialTheft))
	assert.Equal(t, "LOW STOCK", Title(models.AnomalyLowStock))
	assert.Equal(t, "UNAUTHORIZED ACCESS PATTERN", Title(models.AnomalyUnauthorizedAccess))
	assert.Equal(t, "SECURITY", Title(models.AnomalySecurity))
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	require.NoError(t, err)
	assert.Equal(t, "security", p.Name)

	p, err = PolicyByName("standard")
	require.NoError(t, err)
	assert.Equal(t, models.AlertTypeAnomaly, p.AlertType)
	assert.Equal(t, time.Hour, p.Cooldown)

	_, err = PolicyByName("loud")
	assert.Error(t, err)
}

func TestPolicySeverity(t *testing.T) {
	tests := []struct {
		in       models.Severity
		security models.AlertSeverity
		standard models.AlertSeverity
	}{
		{models.SeverityCritical, models.AlertError, models.AlertError},
		{models.SeverityHigh, models.AlertError, models.AlertWarning},
		{models.SeverityMedium, models.AlertError, models.AlertWarning},
		{models.SeverityLow, models.AlertError, models.AlertInfo},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.security, SecurityPolicy.Severity(tt.in))
			assert.Equal(t, tt.standard, StandardPolicy.Severity(tt.in))
		})
	}
}

func anomaly(productID *uint, typ models.AnomalyType, sev models.Severity, at time.Time) models.Anomaly {
	return models.Anomaly{ProductID: productID, Type: typ, Severity: sev, Description: "something is off", Confidence: 0.9, CreatedAt: at}
}

func TestGenerateOneAlertPerProduct(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	p := storetest.Product(t, st, func(p *models.Product) { p.Name = "Saffron" })
	other := storetest.Product(t, st, nil)
	now := time.Now()

	require.NoError(t, st.InsertAnomalies(ctx, []models.Anomaly{
		anomaly(&p.ID, models.AnomalyLowStock, models.SeverityMedium, now.Add(-time.Minute)),
		anomaly(&p.ID, models.AnomalyPotentialTheft, models.SeverityCritical, now.Add(-2*time.Minute)),
		anomaly(&other.ID, models.AnomalyExpiryWarning, models.SeverityLow, now.Add(-time.Minute)),
		anomaly(nil, models.AnomalyOrganizedTheft, models.SeverityCritical, now.Add(-time.Minute)),
		anomaly(nil, models.AnomalySecurity, models.SeverityHigh, now.Add(-time.Minute)),
	}))

	reg := prometheus.NewRegistry()
	m := metrics.New("test", reg)
	alerts, err := NewGenerator(st, StandardPolicy, zap.NewNop(), m).Generate(ctx, now)
	require.NoError(t, err)
	require.Len(t, alerts, 3)

	byScope := map[uint]models.Alert{}
	for _, a := range alerts {
		var scope uint
		if a.ProductID != nil {
			scope = *a.ProductID
		}
		byScope[scope] = a
		assert.NotZero(t, a.ID)
		assert.Equal(t, models.AlertTypeAnomaly, a.Type)
	}

	top := byScope[p.ID]
	assert.Equal(t, "POTENTIAL THEFT", top.Title, "the most severe anomaly wins")
	assert.Equal(t, "Saffron: something is off", top.Message)
	assert.Equal(t, models.AlertError, top.Severity)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(top.Metadata, &meta))
	assert.Equal(t, "potential_theft", meta["anomaly_type"])
	assert.Equal(t, "critical", meta["anomaly_severity"])

	assert.Equal(t, models.AlertInfo, byScope[other.ID].Severity)
	assert.Equal(t, "ORGANIZED THEFT PATTERN", byScope[0].Title)
	assert.Equal(t, "something is off", byScope[0].Message)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertsTotal.WithLabelValues("anomaly", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsTotal.WithLabelValues("anomaly", "info")))
}

func TestGenerateRespectsCooldown(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	p := storetest.Product(t, st, nil)
	now := time.Now()

	require.NoError(t, st.InsertAnomalies(ctx, []models.Anomaly{
		anomaly(&p.ID, models.AnomalyStockDiscrepancy, models.SeverityMedium, now.Add(-time.Hour)),
	}))

	gen := NewGenerator(st, SecurityPolicy, zap.NewNop(), nil)
	first, err := gen.Generate(ctx, now)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, models.AlertTypeSecurity, first[0].Type)

	again, err := gen.Generate(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, again)

	later, err := gen.Generate(ctx, now.Add(2*time.Hour+time.Minute))
	require.NoError(t, err)
	assert.Len(t, later, 1)
}

func TestGenerateCooldownIsPerPolicyType(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	p := storetest.Product(t, st, nil)
	now := time.Now()

	require.NoError(t, st.InsertAnomalies(ctx, []models.Anomaly{anomaly(&p.ID, models.AnomalyLowStock, models.SeverityHigh, now)}))
	require.NoError(t, st.InsertAlerts(ctx, []models.Alert{{Type: models.AlertTypeAnomaly, Title: "LOW STOCK", Severity: models.AlertWarning, ProductID: &p.ID, CreatedAt: now}}))

	alerts, err := NewGenerator(st, SecurityPolicy, zap.NewNop(), nil).Generate(ctx, now)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestGenerateSkipsResolvedAnomalies(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	p := storetest.Product(t, st, nil)
	now := time.Now()

	batch := []models.Anomaly{anomaly(&p.ID, models.AnomalyLowStock, models.SeverityHigh, now)}
	require.NoError(t, st.InsertAnomalies(ctx, batch))
	_, _, err := st.ResolveAnomaly(ctx, batch[0].ID, now)
	require.NoError(t, err)

	alerts, err := NewGenerator(st, SecurityPolicy, zap.NewNop(), nil).Generate(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

type flakyStore struct {
	anomalies []models.Anomaly
	findErr   error
	existsErr map[uint]error
	insertErr error
	inserted  []models.Alert
}

func (s *flakyStore) FindAnomalies(context.Context, store.AnomalyFilter) ([]models.Anomaly, error) {
	return s.anomalies, s.findErr
}

func (s *flakyStore) AlertExists(_ context.Context, f store.AlertFilter) (bool, error) {
	if f.ProductID != nil {
		return false, s.existsErr[*f.ProductID]
	}
	return false, nil
}

func (s *flakyStore) InsertAlerts(_ context.Context, alerts []models.Alert) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, alerts...)
	return nil
}

func TestGenerateSkipsAnomalyWhenCooldownCheckFails(t *testing.T) {
	now := time.Now()
	st := &flakyStore{
		anomalies: []models.Anomaly{
			anomaly(store.UintPtr(1), models.AnomalyLowStock, models.SeverityHigh, now),
			anomaly(store.UintPtr(2), models.AnomalyLowStock, models.SeverityHigh, now),
		},
		existsErr: map[uint]error{1: errors.New("timeout")},
	}

	alerts, err := NewGenerator(st, SecurityPolicy, zap.NewNop(), nil).Generate(bg(), now)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, uint(2), *alerts[0].ProductID)
	assert.Len(t, st.inserted, 1)
}

func TestGenerateErrors(t *testing.T) {
	now := time.Now()

	_, err := NewGenerator(&flakyStore{findErr: errors.New("down")}, SecurityPolicy, zap.NewNop(), nil).Generate(bg(), now)
	assert.ErrorContains(t, err, "load open anomalies")

	st := &flakyStore{
		anomalies: []models.Anomaly{anomaly(store.UintPtr(1), models.AnomalyLowStock, models.SeverityHigh, now)},
		insertErr: errors.New("constraint"),
	}
	alerts, err := NewGenerator(st, SecurityPolicy, zap.NewNop(), nil).Generate(bg(), now)
	assert.ErrorContains(t, err, "insert 1 alerts")
	assert.Nil(t, alerts)
}

func TestGenerateNothingOpen(t *testing.T) {
	alerts, err := NewGenerator(&flakyStore{}, SecurityPolicy, zap.NewNop(), nil).Generate(bg(), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}

func bg() context.Context { return context.Background() }
