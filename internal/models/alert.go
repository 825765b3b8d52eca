package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AlertSeverity string

const (
	AlertInfo     AlertSeverity = "info"
	AlertWarning  AlertSeverity = "warning"
	AlertError    AlertSeverity = "error"
	AlertCritical AlertSeverity = "critical"
)

const (
	AlertTypeSecurity = "security"
	AlertTypeAnomaly  = "anomaly"
)

// Alert is the user-facing notification derived from an anomaly.
// Metadata carries the source anomaly id; there is no foreign key.
type Alert struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Type      string         `gorm:"size:40;not null;index" json:"type"`
	Title     string         `gorm:"size:150;not null" json:"title"`
	Message   string         `gorm:"size:700;not null" json:"message"`
	Severity  AlertSeverity  `gorm:"size:20;not null" json:"severity"`
	IsRead    bool           `gorm:"not null;default:false" json:"read"`
	ProductID *uint          `gorm:"index" json:"product_id"`
	Metadata  datatypes.JSON `json:"metadata"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (a *Alert) BeforeCreate(*gorm.DB) error {
	if len(a.Metadata) == 0 {
		a.Metadata = datatypes.JSON("{}")
	}
	return nil
}
