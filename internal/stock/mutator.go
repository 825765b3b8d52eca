// Package stock applies quantity changes to products and records each change as
// one ledger transaction.
package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-backend/internal/metrics"
	"inventory-backend/internal/models"
	"inventory-backend/internal/store"

	"go.uber.org/zap"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidType     = errors.New("invalid transaction type")
)

type Change struct {
	ProductID uint
	Quantity  int
	Type      models.TransactionType
	Reason    string
	Actor     string
}

func (c Change) Validate() error {
	if c.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !c.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, c.Type)
	}
	return nil
}

// SignedDelta is negative for sale, expiry and damage, positive otherwise.
func (c Change) SignedDelta() int {
	if c.Type.Decreases() {
		return -c.Quantity
	}
	return c.Quantity
}

// NextQuantity floors the result at zero; over-selling clamps instead of failing.
func NextQuantity(previous, delta int) int {
	return max(0, previous+delta)
}

type Mutator struct {
	store   store.LedgerStore
	locks   *keyLock
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewMutator(st store.LedgerStore, log *zap.Logger, m *metrics.Metrics) *Mutator {
	return &Mutator{
		store:   st,
		locks:   newKeyLock(),
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Apply validates the change, then writes the transaction and the new product
// quantity as one unit. Changes to the same product never interleave.
func (m *Mutator) Apply(ctx context.Context, c Change) (*models.Transaction, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(c.ProductID)
	defer unlock()

	delta := c.SignedDelta()
	actor := c.Actor
	if actor == "" {
		actor = models.SystemActor
	}

	tx, err := m.store.ApplyStockChange(ctx, c.ProductID, func(p models.Product) (models.Transaction, error) {
		return models.Transaction{
			ProductID:        p.ID,
			Type:             c.Type,
			Quantity:         delta,
			PreviousQuantity: p.Quantity,
			NewQuantity:      NextQuantity(p.Quantity, delta),
			Reason:           c.Reason,
			Actor:            actor,
			CreatedAt:        m.now(),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply stock change to product %d: %w", c.ProductID, err)
	}

	m.metrics.RecordStockChange(string(c.Type))
	m.log.Debug("stock changed",
		zap.Uint("product_id", c.ProductID),
		zap.String("type", string(c.Type)),
		zap.Int("delta", delta),
		zap.Int("previous_quantity", tx.PreviousQuantity),
		zap.Int("new_quantity", tx.NewQuantity),
		zap.String("actor", actor))
	return tx, nil
}
