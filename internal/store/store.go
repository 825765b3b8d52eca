// Package store is the ledger store: products with their quantity snapshot, the
// per-product transaction ledger, anomalies, alerts and audit logs.
package store

import (
	"context"
	"errors"
	"time"

	"inventory-backend/internal/models"
)

var ErrNotFound = errors.New("record not found")

type ProductFilter struct {
	Category string
	// MinPrice keeps products priced strictly above it when positive.
	MinPrice     float64
	LowStockOnly bool
}

type AnomalyFilter struct {
	ProductID *uint
	// SystemWide selects anomalies without a product. Ignored when ProductID is set.
	SystemWide bool
	Types      []models.AnomalyType
	Resolved   *bool
	Since      time.Time
	Limit      int
}

type AlertFilter struct {
	ProductID  *uint
	SystemWide bool
	Type       string
	UnreadOnly bool
	Since      time.Time
	Limit      int
}

type AuditFilter struct {
	EntityType string
	EntityID   uint
	Limit      int
}

// BuildTransaction computes the ledger line for a stock change from the locked
// product row. Returning an error aborts the change without writing anything.
type BuildTransaction func(p models.Product) (models.Transaction, error)

type ProductStore interface {
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	// UpdateProduct writes only the named columns of p. Quantity is written only
	// when listed, and never through the ledger.
	UpdateProduct(ctx context.Context, p *models.Product, columns ...string) error
	UpdateProductQuantity(ctx context.Context, id uint, quantity int) error
}

type LedgerStore interface {
	// ListTransactions returns the ledger of a product between from and to, oldest
	// first. A zero to means no upper bound.
	ListTransactions(ctx context.Context, productID uint, from, to time.Time) ([]models.Transaction, error)
	InsertTransactions(ctx context.Context, txs []models.Transaction) error
	// ApplyStockChange locks the product row, inserts the transaction built from it
	// and sets the product quantity to its NewQuantity, all in one unit.
	ApplyStockChange(ctx context.Context, productID uint, build BuildTransaction) (*models.Transaction, error)
}

type AnomalyStore interface {
	InsertAnomalies(ctx context.Context, anomalies []models.Anomaly) error
	FindAnomalies(ctx context.Context, f AnomalyFilter) ([]models.Anomaly, error)
	AnomalyExists(ctx context.Context, f AnomalyFilter) (bool, error)
	ResolveAnomaly(ctx context.Context, id uint, at time.Time) (a *models.Anomaly, changed bool, err error)
}

type AlertStore interface {
	InsertAlerts(ctx context.Context, alerts []models.Alert) error
	FindAlerts(ctx context.Context, f AlertFilter) ([]models.Alert, error)
	AlertExists(ctx context.Context, f AlertFilter) (bool, error)
	MarkAlertRead(ctx context.Context, id uint) (*models.Alert, error)
}

type AuditStore interface {
	WriteAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, f AuditFilter) ([]models.AuditLog, error)
}

type Store interface {
	ProductStore
	LedgerStore
	AnomalyStore
	AlertStore
	AuditStore
}

func Bool(b bool) *bool { return &b }

func UintPtr(id uint) *uint { return &id }
