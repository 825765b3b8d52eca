// Package storetest opens an isolated in-memory SQLite ledger store for tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"inventory-backend/internal/database"
	"inventory-backend/internal/models"
	"inventory-backend/internal/store"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func New(t testing.TB) *store.GormStore {
	t.Helper()
	return store.NewGormStore(Open(t), nil)
}

// Product creates a product with sane defaults; mutate adjusts it before insert.
func Product(t testing.TB, s store.ProductStore, mutate func(p *models.Product)) models.Product {
	t.Helper()

	p := models.Product{
		Name:         "Widget",
		Category:     "general",
		Quantity:     50,
		Price:        10,
		MinimumStock: models.DefaultMinimumStock,
	}
	if mutate != nil {
		mutate(&p)
	}
	require.NoError(t, s.CreateProduct(context.Background(), &p))
	return p
}

// Ledger inserts transactions for productID chaining previous/new quantities from
// start, one per delta, spaced step apart and ending at end.
func Ledger(t testing.TB, s store.LedgerStore, productID uint, start int, deltas []int, txType models.TransactionType, end time.Time, step time.Duration) []models.Transaction {
	t.Helper()

	txs := make([]models.Transaction, 0, len(deltas))
	qty := start
	at := end.Add(-step * time.Duration(len(deltas)-1))
	for _, d := range deltas {
		next := max(0, qty+d)
		txs = append(txs, models.Transaction{
			ProductID:        productID,
			Type:             txType,
			Quantity:         d,
			PreviousQuantity: qty,
			NewQuantity:      next,
			Actor:            models.SystemActor,
			CreatedAt:        at,
		})
		qty = next
		at = at.Add(step)
	}
	require.NoError(t, s.InsertTransactions(context.Background(), txs))
	return txs
}
