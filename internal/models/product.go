package models

import "time"

const DefaultMinimumStock = 10

type Product struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"size:100;not null" json:"name"`
	Category     string     `gorm:"size:50;index" json:"category"`
	Quantity     int        `gorm:"not null;default:0" json:"quantity"`
	Price        float64    `gorm:"not null;default:0" json:"price"`
	ExpiryDate   *time.Time `json:"expiry_date"`
	MinimumStock int        `gorm:"not null" json:"minimum_stock"`
	Currency     string     `gorm:"size:3" json:"currency"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// DaysUntilExpiry rounds partial days up; ok is false when the product has no expiry date.
func (p Product) DaysUntilExpiry(now time.Time) (days int, ok bool) {
	if p.ExpiryDate == nil {
		return 0, false
	}
	d := p.ExpiryDate.Sub(now)
	days = int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days, true
}
