// Package audit records direct edits that bypass the stock ledger.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"inventory-backend/internal/models"
	"inventory-backend/internal/store"

	"gorm.io/datatypes"
)

const (
	EntityProduct = "product"
	EntityAnomaly = "anomaly"
)

type LogOptions struct {
	Actor       string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

type Service struct {
	store store.AuditStore
}

func NewService(st store.AuditStore) *Service {
	return &Service{store: st}
}

func (s *Service) WriteLog(ctx context.Context, opts LogOptions) error {
	entry := models.AuditLog{
		Actor:       opts.Actor,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  snapshot(opts.Before),
		AfterData:   snapshot(opts.After),
	}
	if entry.Actor == "" {
		entry.Actor = models.SystemActor
	}

	if err := s.store.WriteAuditLog(ctx, &entry); err != nil {
		return fmt.Errorf("audit log not written: %w", err)
	}
	return nil
}

// snapshot marshals v, falling back to JSON null (jsonb rejects empty strings).
func snapshot(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}
