package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AnomalyType string

const (
	AnomalyLowStock           AnomalyType = "low_stock"
	AnomalyExpiryWarning      AnomalyType = "expiry_warning"
	AnomalyUnusualPattern     AnomalyType = "unusual_pattern"
	AnomalyPotentialTheft     AnomalyType = "potential_theft"
	AnomalyInventoryShrinkage AnomalyType = "inventory_shrinkage"
	AnomalyUnauthorizedAccess AnomalyType = "unauthorized_access_pattern"
	AnomalyOrganizedTheft     AnomalyType = "organized_theft_pattern"
	AnomalySecurity           AnomalyType = "security"
	AnomalyStockDiscrepancy   AnomalyType = "stock_discrepancy"
	AnomalyHighVariance       AnomalyType = "high_variance"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Anomaly rows are created by detection and only ever updated to mark them resolved.
// A nil ProductID means the anomaly is system-wide.
type Anomaly struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ProductID   *uint          `gorm:"index:idx_anomalies_lookup,priority:1" json:"product_id"`
	Product     *Product       `json:"-"`
	Type        AnomalyType    `gorm:"size:40;not null;index:idx_anomalies_lookup,priority:2" json:"type"`
	Severity    Severity       `gorm:"size:20;not null" json:"severity"`
	Description string         `gorm:"size:500;not null" json:"description"`
	Confidence  float64        `gorm:"not null" json:"confidence"`
	Resolved    bool           `gorm:"not null;default:false;index:idx_anomalies_lookup,priority:3" json:"resolved"`
	ResolvedAt  *time.Time     `json:"resolved_at"`
	Metadata    datatypes.JSON `json:"metadata"`
	CreatedAt   time.Time      `gorm:"index:idx_anomalies_lookup,priority:4" json:"created_at"`
}

func (a *Anomaly) BeforeCreate(*gorm.DB) error {
	if len(a.Metadata) == 0 {
		a.Metadata = datatypes.JSON("{}")
	}
	return nil
}
