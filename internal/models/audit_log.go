package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditAction string

const (
	AuditActionCreate  AuditAction = "create"
	AuditActionUpdate  AuditAction = "update"
	AuditActionResolve AuditAction = "resolve"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// who
	Actor string `gorm:"size:100" json:"actor"`

	// which entity ("product", "anomaly")
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint   `gorm:"index" json:"entity_id"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	BeforeData datatypes.JSON `json:"before_data"`
	AfterData  datatypes.JSON `json:"after_data"`
}

// BeforeCreate stores a JSON null instead of an empty string, which jsonb rejects.
func (l *AuditLog) BeforeCreate(*gorm.DB) error {
	if len(l.BeforeData) == 0 {
		l.BeforeData = datatypes.JSON("null")
	}
	if len(l.AfterData) == 0 {
		l.AfterData = datatypes.JSON("null")
	}
	return nil
}
