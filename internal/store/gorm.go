package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-backend/internal/metrics"
	"inventory-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB, m *metrics.Metrics) *GormStore {
	return &GormStore{db: db, metrics: m}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// utc keeps stored timestamps in one zone so range filters compare correctly on
// drivers that persist time as text.
func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func (s *GormStore) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	defer s.metrics.TrackStoreOperation("get_product")(time.Now())

	var p models.Product
	if err := s.conn(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormStore) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	defer s.metrics.TrackStoreOperation("list_products")(time.Now())

	q := s.conn(ctx).Model(&models.Product{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.MinPrice > 0 {
		q = q.Where("price > ?", f.MinPrice)
	}
	if f.LowStockOnly {
		q = q.Where("quantity <= minimum_stock")
	}

	var products []models.Product
	if err := q.Order("id asc").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *GormStore) CreateProduct(ctx context.Context, p *models.Product) error {
	defer s.metrics.TrackStoreOperation("create_product")(time.Now())

	if err := s.conn(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (s *GormStore) UpdateProduct(ctx context.Context, p *models.Product, columns ...string) error {
	defer s.metrics.TrackStoreOperation("update_product")(time.Now())

	if len(columns) == 0 {
		_, err := s.GetProduct(ctx, p.ID)
		return err
	}
	res := s.conn(ctx).Model(&models.Product{}).Where("id = ?", p.ID).Select(columns).Omit("id", "created_at").Updates(p)
	if res.Error != nil {
		return fmt.Errorf("update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) UpdateProductQuantity(ctx context.Context, id uint, quantity int) error {
	defer s.metrics.TrackStoreOperation("update_product_quantity")(time.Now())

	res := s.conn(ctx).Model(&models.Product{}).Where("id = ?", id).Update("quantity", quantity)
	if res.Error != nil {
		return fmt.Errorf("update product quantity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListTransactions(ctx context.Context, productID uint, from, to time.Time) ([]models.Transaction, error) {
	defer s.metrics.TrackStoreOperation("list_transactions")(time.Now())

	q := s.conn(ctx).Where("product_id = ?", productID)
	if !from.IsZero() {
		q = q.Where("created_at >= ?", utc(from))
	}
	if !to.IsZero() {
		q = q.Where("created_at <= ?", utc(to))
	}

	var txs []models.Transaction
	if err := q.Order("created_at asc, id asc").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *GormStore) InsertTransactions(ctx context.Context, txs []models.Transaction) error {
	defer s.metrics.TrackStoreOperation("insert_transactions")(time.Now())

	if len(txs) == 0 {
		return nil
	}
	for i := range txs {
		txs[i].CreatedAt = utc(txs[i].CreatedAt)
	}
	if err := s.conn(ctx).Create(&txs).Error; err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}
	return nil
}

func (s *GormStore) ApplyStockChange(ctx context.Context, productID uint, build BuildTransaction) (*models.Transaction, error) {
	defer s.metrics.TrackStoreOperation("apply_stock_change")(time.Now())

	var created models.Transaction
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var p models.Product
		if err := q.First(&p, "id = ?", productID).Error; err != nil {
			return notFound(err)
		}

		t, err := build(p)
		if err != nil {
			return err
		}
		t.ProductID = p.ID
		t.CreatedAt = utc(t.CreatedAt)

		if err := tx.Create(&t).Error; err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if err := tx.Model(&models.Product{}).Where("id = ?", p.ID).Update("quantity", t.NewQuantity).Error; err != nil {
			return fmt.Errorf("update product quantity: %w", err)
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *GormStore) anomalyQuery(ctx context.Context, f AnomalyFilter) *gorm.DB {
	q := s.conn(ctx).Model(&models.Anomaly{})
	switch {
	case f.ProductID != nil:
		q = q.Where("product_id = ?", *f.ProductID)
	case f.SystemWide:
		q = q.Where("product_id IS NULL")
	}
	if len(f.Types) > 0 {
		q = q.Where("type IN ?", f.Types)
	}
	if f.Resolved != nil {
		q = q.Where("resolved = ?", *f.Resolved)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", utc(f.Since))
	}
	return q
}

func (s *GormStore) InsertAnomalies(ctx context.Context, anomalies []models.Anomaly) error {
	defer s.metrics.TrackStoreOperation("insert_anomalies")(time.Now())

	if len(anomalies) == 0 {
		return nil
	}
	for i := range anomalies {
		anomalies[i].CreatedAt = utc(anomalies[i].CreatedAt)
	}
	if err := s.conn(ctx).Omit(clause.Associations).Create(&anomalies).Error; err != nil {
		return fmt.Errorf("insert anomalies: %w", err)
	}
	return nil
}

func (s *GormStore) FindAnomalies(ctx context.Context, f AnomalyFilter) ([]models.Anomaly, error) {
	defer s.metrics.TrackStoreOperation("find_anomalies")(time.Now())

	q := s.anomalyQuery(ctx, f).Preload("Product").Order("created_at desc, id desc")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var anomalies []models.Anomaly
	if err := q.Find(&anomalies).Error; err != nil {
		return nil, fmt.Errorf("find anomalies: %w", err)
	}
	return anomalies, nil
}

func (s *GormStore) AnomalyExists(ctx context.Context, f AnomalyFilter) (bool, error) {
	defer s.metrics.TrackStoreOperation("anomaly_exists")(time.Now())

	var count int64
	if err := s.anomalyQuery(ctx, f).Limit(1).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count anomalies: %w", err)
	}
	return count > 0, nil
}

// ResolveAnomaly marks an open anomaly resolved. An already resolved anomaly is
// returned unchanged with changed set to false.
func (s *GormStore) ResolveAnomaly(ctx context.Context, id uint, at time.Time) (*models.Anomaly, bool, error) {
	defer s.metrics.TrackStoreOperation("resolve_anomaly")(time.Now())

	at = utc(at)
	res := s.conn(ctx).Model(&models.Anomaly{}).Where("id = ? AND resolved = ?", id, false).Updates(map[string]any{
		"resolved":    true,
		"resolved_at": at,
	})
	if res.Error != nil {
		return nil, false, fmt.Errorf("resolve anomaly: %w", res.Error)
	}

	var a models.Anomaly
	if err := s.conn(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, false, notFound(err)
	}
	return &a, res.RowsAffected > 0, nil
}

func (s *GormStore) alertQuery(ctx context.Context, f AlertFilter) *gorm.DB {
	q := s.conn(ctx).Model(&models.Alert{})
	switch {
	case f.ProductID != nil:
		q = q.Where("product_id = ?", *f.ProductID)
	case f.SystemWide:
		q = q.Where("product_id IS NULL")
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", utc(f.Since))
	}
	return q
}

func (s *GormStore) InsertAlerts(ctx context.Context, alerts []models.Alert) error {
	defer s.metrics.TrackStoreOperation("insert_alerts")(time.Now())

	if len(alerts) == 0 {
		return nil
	}
	for i := range alerts {
		alerts[i].CreatedAt = utc(alerts[i].CreatedAt)
	}
	if err := s.conn(ctx).Create(&alerts).Error; err != nil {
		return fmt.Errorf("insert alerts: %w", err)
	}
	return nil
}

func (s *GormStore) FindAlerts(ctx context.Context, f AlertFilter) ([]models.Alert, error) {
	defer s.metrics.TrackStoreOperation("find_alerts")(time.Now())

	q := s.alertQuery(ctx, f).Order("created_at desc, id desc")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var alerts []models.Alert
	if err := q.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("find alerts: %w", err)
	}
	return alerts, nil
}

func (s *GormStore) AlertExists(ctx context.Context, f AlertFilter) (bool, error) {
	defer s.metrics.TrackStoreOperation("alert_exists")(time.Now())

	var count int64
	if err := s.alertQuery(ctx, f).Limit(1).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count alerts: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) MarkAlertRead(ctx context.Context, id uint) (*models.Alert, error) {
	defer s.metrics.TrackStoreOperation("mark_alert_read")(time.Now())

	res := s.conn(ctx).Model(&models.Alert{}).Where("id = ?", id).Update("is_read", true)
	if res.Error != nil {
		return nil, fmt.Errorf("mark alert read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var a models.Alert
	if err := s.conn(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *GormStore) WriteAuditLog(ctx context.Context, entry *models.AuditLog) error {
	defer s.metrics.TrackStoreOperation("write_audit_log")(time.Now())

	if err := s.conn(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func (s *GormStore) ListAuditLogs(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	defer s.metrics.TrackStoreOperation("list_audit_logs")(time.Now())

	q := s.conn(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var logs []models.AuditLog
	if err := q.Order("created_at desc, id desc").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
