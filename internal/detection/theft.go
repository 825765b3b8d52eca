package detection

import (
	"context"
	"fmt"
	"time"

	"inventory-backend/internal/models"
)

const (
	theftWindow          = 30 * day
	theftConfirmWindow   = 24 * time.Hour
	theftRecentLossAge   = 7 * day
	lossTolerance        = 2
	minTotalLoss         = 3
	criticalLossValue    = 500
	highTotalLoss        = 10
	maxTheftConfidence   = 0.95
	organizedMinPrice    = 100
	organizedMinProducts = 3
	organizedConfidence  = 0.85

	lossKindLedger  = "ledger_gap"
	lossKindCurrent = "current_discrepancy"
)

type lossEvent struct {
	Amount        int       `json:"amount"`
	At            time.Time `json:"at"`
	Kind          string    `json:"kind"`
	TransactionID uint      `json:"transaction_id,omitempty"`
}

// findLosses replays the ledger and reports every point where the recorded stock
// fell more than lossTolerance units below what the transactions explain. After a
// loss the running total is resynchronised so one gap is not counted again.
func findLosses(p models.Product, ledger []models.Transaction, now time.Time) []lossEvent {
	if len(ledger) == 0 {
		return nil
	}

	var losses []lossEvent
	calculated := ledger[0].PreviousQuantity
	for _, tx := range ledger {
		calculated += tx.Quantity
		if gap := calculated - tx.NewQuantity; gap > lossTolerance {
			losses = append(losses, lossEvent{Amount: gap, At: tx.CreatedAt, Kind: lossKindLedger, TransactionID: tx.ID})
			calculated = tx.NewQuantity
		}
	}

	last := ledger[len(ledger)-1]
	if gap := last.NewQuantity - p.Quantity; gap > lossTolerance {
		losses = append(losses, lossEvent{Amount: gap, At: now, Kind: lossKindCurrent, TransactionID: last.ID})
	}
	return losses
}

func theftConfidence(losses []lossEvent, totalLoss int, now time.Time) float64 {
	c := 0.5
	if len(losses) > 2 {
		c += 0.1
	}
	if len(losses) > 5 {
		c += 0.1
	}
	if totalLoss > 10 {
		c += 0.1
	}
	if totalLoss > 25 {
		c += 0.1
	}
	for _, l := range losses {
		if now.Sub(l.At) <= theftRecentLossAge {
			c += 0.1
			break
		}
	}
	return min(c, maxTheftConfidence)
}

func theftSeverity(totalLoss int, lossValue float64) models.Severity {
	switch {
	case lossValue > criticalLossValue:
		return models.SeverityCritical
	case totalLoss > highTotalLoss:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

// DetectPotentialTheft is a two-strike rule. The first pass that sees more than
// minTotalLoss unexplained units records a stock_discrepancy; a potential_theft is
// only emitted when an open stock_discrepancy or potential_theft from the last 24
// hours confirms it.
func DetectPotentialTheft(ctx context.Context, in Input, h History) ([]models.Anomaly, error) {
	p := in.Product
	losses := findLosses(p, in.Since(theftWindow), in.Now)

	totalLoss := 0
	for _, l := range losses {
		totalLoss += l.Amount
	}
	if totalLoss <= minTotalLoss {
		return nil, nil
	}

	f := openAnomaly(in.productID(), models.AnomalyPotentialTheft, models.AnomalyStockDiscrepancy)
	f.Since = in.Now.Add(-theftConfirmWindow)
	confirmed, err := h.AnomalyExists(ctx, f)
	if err != nil {
		return nil, err
	}

	lossValue := float64(totalLoss) * p.Price
	confidence := theftConfidence(losses, totalLoss, in.Now)
	fields := map[string]any{
		"total_loss":           totalLoss,
		"estimated_loss_value": lossValue,
		"loss_events":          losses,
		"current_quantity":     p.Quantity,
		"currency":             p.Currency,
	}

	if !confirmed {
		return []models.Anomaly{newAnomaly(in, models.AnomalyStockDiscrepancy, models.SeverityMedium,
			fmt.Sprintf("Stock discrepancy: %d units of %s not explained by transactions", totalLoss, p.Name),
			confidence, fields)}, nil
	}

	return []models.Anomaly{newAnomaly(in, models.AnomalyPotentialTheft, theftSeverity(totalLoss, lossValue),
		fmt.Sprintf("Potential theft: %d units of %s unaccounted for across %d events (estimated loss %.2f)",
			totalLoss, p.Name, len(losses), lossValue),
		confidence, fields)}, nil
}

type suspiciousItem struct {
	ProductID   uint    `json:"product_id"`
	Name        string  `json:"name"`
	Discrepancy int     `json:"discrepancy"`
	Value       float64 `json:"value"`
}

// DetectOrganizedTheft looks across high-value products touched in the last 24
// hours and fires a system-wide anomaly when at least three of them hold less
// stock than their latest transaction recorded.
func DetectOrganizedTheft(ctx context.Context, inputs []Input, now time.Time, runID string, h History) ([]models.Anomaly, error) {
	var items []suspiciousItem
	totalValue := 0.0
	for _, in := range inputs {
		p := in.Product
		if p.Price <= organizedMinPrice {
			continue
		}
		recent := in.Since(day)
		if len(recent) == 0 {
			continue
		}
		disc := recent[len(recent)-1].NewQuantity - p.Quantity
		if disc <= 0 {
			continue
		}
		value := float64(disc) * p.Price
		items = append(items, suspiciousItem{ProductID: p.ID, Name: p.Name, Discrepancy: disc, Value: value})
		totalValue += value
	}
	if len(items) < organizedMinProducts {
		return nil, nil
	}

	f := openAnomaly(nil, models.AnomalyOrganizedTheft)
	f.SystemWide = true
	f.Since = now.Add(-day)
	exists, err := h.AnomalyExists(ctx, f)
	if err != nil || exists {
		return nil, err
	}

	return []models.Anomaly{{
		Type:     models.AnomalyOrganizedTheft,
		Severity: models.SeverityCritical,
		Description: fmt.Sprintf("Organized theft pattern: %d high-value products short in the last 24h (estimated value %.2f)",
			len(items), totalValue),
		Confidence: organizedConfidence,
		Metadata: evidence(runID, map[string]any{
			"suspicious_items":      items,
			"item_count":            len(items),
			"total_estimated_value": totalValue,
		}),
		CreatedAt: now,
	}}, nil
}
