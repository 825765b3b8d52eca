package detection

import (
	"context"
	"fmt"

	"inventory-backend/internal/models"
)

const (
	lowStockConfidence = 0.95
	expiryConfidence   = 0.90
	expiryHorizonDays  = 30
	expiryUrgentDays   = 7
)

// DetectLowStock fires when quantity is at or below the minimum stock level.
func DetectLowStock(ctx context.Context, in Input, h History) ([]models.Anomaly, error) {
	p := in.Product
	if p.Quantity > p.MinimumStock {
		return nil, nil
	}

	exists, err := h.AnomalyExists(ctx, openAnomaly(in.productID(), models.AnomalyLowStock))
	if err != nil || exists {
		return nil, err
	}

	sev := models.SeverityHigh
	desc := fmt.Sprintf("Low stock: %s has %d units left (minimum %d)", p.Name, p.Quantity, p.MinimumStock)
	if p.Quantity == 0 {
		sev = models.SeverityCritical
		desc = fmt.Sprintf("Out of stock: %s (minimum %d)", p.Name, p.MinimumStock)
	}

	return []models.Anomaly{newAnomaly(in, models.AnomalyLowStock, sev, desc, lowStockConfidence, map[string]any{
		"current_quantity": p.Quantity,
		"minimum_stock":    p.MinimumStock,
	})}, nil
}

// DetectExpiry fires for products expiring within the next 30 days. Already
// expired products are left to the expiry transactions.
func DetectExpiry(ctx context.Context, in Input, h History) ([]models.Anomaly, error) {
	p := in.Product
	days, ok := p.DaysUntilExpiry(in.Now)
	if !ok || days <= 0 || days > expiryHorizonDays {
		return nil, nil
	}

	exists, err := h.AnomalyExists(ctx, openAnomaly(in.productID(), models.AnomalyExpiryWarning))
	if err != nil || exists {
		return nil, err
	}

	sev := models.SeverityMedium
	if days <= expiryUrgentDays {
		sev = models.SeverityHigh
	}

	return []models.Anomaly{newAnomaly(in, models.AnomalyExpiryWarning, sev,
		fmt.Sprintf("%s expires in %d days (%d units, value %.2f)", p.Name, days, p.Quantity, float64(p.Quantity)*p.Price),
		expiryConfidence,
		map[string]any{
			"days_until_expiry": days,
			"expiry_date":       p.ExpiryDate,
			"quantity":          p.Quantity,
			"value_at_risk":     float64(p.Quantity) * p.Price,
		})}, nil
}
