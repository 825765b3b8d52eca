// Package detection scans product ledgers for anomalous stock patterns.
//
// Each rule is a function of one product, its recent ledger and the pass time.
// Rules never see each other's output; the engine runs them in a fixed order and
// a cross-product pass runs once all products are done.
package detection

import (
	"context"
	"encoding/json"
	"time"

	"inventory-backend/internal/models"
	"inventory-backend/internal/store"

	"gorm.io/datatypes"
)

const (
	day = 24 * time.Hour

	// LedgerWindow is the widest window any rule looks at.
	LedgerWindow = 90 * day
)

// History answers "was an anomaly like this already recorded" questions.
type History interface {
	AnomalyExists(ctx context.Context, f store.AnomalyFilter) (bool, error)
}

type Input struct {
	Product models.Product
	// Ledger holds the product's transactions of the last LedgerWindow, oldest first.
	Ledger   []models.Transaction
	Now      time.Time
	RunID    string
	Location *time.Location
}

// Since returns the ledger suffix created at or after Now-d.
func (in Input) Since(d time.Duration) []models.Transaction {
	from := in.Now.Add(-d)
	for i, tx := range in.Ledger {
		if !tx.CreatedAt.Before(from) {
			return in.Ledger[i:]
		}
	}
	return nil
}

func (in Input) productID() *uint {
	id := in.Product.ID
	return &id
}

type DetectFunc func(ctx context.Context, in Input, h History) ([]models.Anomaly, error)

type CrossDetectFunc func(ctx context.Context, inputs []Input, now time.Time, runID string, h History) ([]models.Anomaly, error)

type Rule struct {
	Name   string
	Detect DetectFunc
}

type CrossRule struct {
	Name   string
	Detect CrossDetectFunc
}

// DefaultRules is the per-product rule set in execution order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: string(models.AnomalyLowStock), Detect: DetectLowStock},
		{Name: string(models.AnomalyExpiryWarning), Detect: DetectExpiry},
		{Name: string(models.AnomalyPotentialTheft), Detect: DetectPotentialTheft},
		{Name: string(models.AnomalyInventoryShrinkage), Detect: DetectShrinkage},
		{Name: string(models.AnomalyUnauthorizedAccess), Detect: DetectUnauthorizedAccess},
	}
}

func DefaultCrossRules() []CrossRule {
	return []CrossRule{
		{Name: string(models.AnomalyOrganizedTheft), Detect: DetectOrganizedTheft},
	}
}

func openAnomaly(productID *uint, types ...models.AnomalyType) store.AnomalyFilter {
	return store.AnomalyFilter{ProductID: productID, Types: types, Resolved: store.Bool(false)}
}

func recentAnomaly(productID *uint, since time.Time, types ...models.AnomalyType) store.AnomalyFilter {
	return store.AnomalyFilter{ProductID: productID, Types: types, Since: since}
}

func evidence(runID string, fields map[string]any) datatypes.JSON {
	fields["detection_run"] = runID
	b, err := json.Marshal(fields)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

func newAnomaly(in Input, typ models.AnomalyType, sev models.Severity, desc string, confidence float64, fields map[string]any) models.Anomaly {
	return models.Anomaly{
		ProductID:   in.productID(),
		Type:        typ,
		Severity:    sev,
		Description: desc,
		Confidence:  confidence,
		Metadata:    evidence(in.RunID, fields),
		CreatedAt:   in.Now,
	}
}
