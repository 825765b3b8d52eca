package models

import "time"

type TransactionType string

const (
	TransactionSale       TransactionType = "sale"
	TransactionRestock    TransactionType = "restock"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionExpiry     TransactionType = "expiry"
	TransactionDamage     TransactionType = "damage"
	TransactionPurchase   TransactionType = "purchase"
)

// SystemActor marks transactions written by the service itself.
const SystemActor = "system"

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionSale, TransactionRestock, TransactionAdjustment,
		TransactionExpiry, TransactionDamage, TransactionPurchase:
		return true
	}
	return false
}

// Decreases reports whether the type removes stock.
func (t TransactionType) Decreases() bool {
	return t == TransactionSale || t == TransactionExpiry || t == TransactionDamage
}

// Transaction is one immutable ledger line. Rows are only inserted, never updated.
type Transaction struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ProductID        uint            `gorm:"index:idx_transactions_product_created,priority:1;not null" json:"product_id"`
	Type             TransactionType `gorm:"size:20;not null" json:"type"`
	Quantity         int             `gorm:"not null" json:"quantity"` // signed delta
	PreviousQuantity int             `gorm:"not null" json:"previous_quantity"`
	NewQuantity      int             `gorm:"not null" json:"new_quantity"`
	Reason           string          `gorm:"size:255" json:"reason,omitempty"`
	Actor            string          `gorm:"size:100;index" json:"actor,omitempty"`
	CreatedAt        time.Time       `gorm:"index:idx_transactions_product_created,priority:2" json:"created_at"`
}
