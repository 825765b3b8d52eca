package detection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"inventory-backend/internal/models"
)

const (
	shrinkageWindow          = 90 * day
	shrinkageMinTransactions = 10
	shrinkageMinDailyRate    = 0.5
	shrinkageMinUnits        = 5
	shrinkageHighDailyRate   = 2
	shrinkageCooldown        = 7 * day
	shrinkageConfidence      = 0.80

	accessWindow            = 7 * day
	accessCooldown          = day
	afterHoursThreshold     = 2
	actorActivityLimit      = 10
	accessPatternConfidence = 0.70
)

var afterHours = []int{23, 0, 1, 2, 3, 4, 5}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// DetectShrinkage compares the stock that sales and restocks of the last 90 days
// explain with the live quantity. Only checks recency of earlier shrinkage
// anomalies, resolved or not.
func DetectShrinkage(ctx context.Context, in Input, h History) ([]models.Anomaly, error) {
	p := in.Product
	txs := in.Since(shrinkageWindow)
	if len(txs) < shrinkageMinTransactions {
		return nil, nil
	}

	expected := txs[0].PreviousQuantity
	for _, tx := range txs {
		switch tx.Type {
		case models.TransactionRestock, models.TransactionPurchase:
			expected += abs(tx.Quantity)
		case models.TransactionSale:
			expected -= abs(tx.Quantity)
		}
	}

	shrinkage := expected - p.Quantity
	dailyRate := float64(shrinkage) / (shrinkageWindow.Hours() / 24)
	if dailyRate <= shrinkageMinDailyRate || shrinkage <= shrinkageMinUnits {
		return nil, nil
	}

	exists, err := h.AnomalyExists(ctx, recentAnomaly(in.productID(), in.Now.Add(-shrinkageCooldown), models.AnomalyInventoryShrinkage))
	if err != nil || exists {
		return nil, err
	}

	sev := models.SeverityMedium
	if dailyRate > shrinkageHighDailyRate {
		sev = models.SeverityHigh
	}

	return []models.Anomaly{newAnomaly(in, models.AnomalyInventoryShrinkage, sev,
		fmt.Sprintf("Inventory shrinkage: %s is %d units below expected over 90 days (%.2f units/day)", p.Name, shrinkage, dailyRate),
		shrinkageConfidence,
		map[string]any{
			"expected_stock":       expected,
			"actual_stock":         p.Quantity,
			"shrinkage":            shrinkage,
			"daily_rate":           dailyRate,
			"transaction_count":    len(txs),
			"estimated_loss_value": float64(shrinkage) * p.Price,
		})}, nil
}

// DetectUnauthorizedAccess looks at when and by whom the product was touched in
// the last 7 days. Only checks recency of earlier access anomalies, resolved or not.
func DetectUnauthorizedAccess(ctx context.Context, in Input, h History) ([]models.Anomaly, error) {
	loc := in.Location
	if loc == nil {
		loc = in.Now.Location()
	}

	var hourly [24]int
	byActor := map[string]int{}
	for _, tx := range in.Since(accessWindow) {
		hourly[tx.CreatedAt.In(loc).Hour()]++
		if tx.Actor != "" {
			byActor[tx.Actor]++
		}
	}

	offHours := 0
	for _, hr := range afterHours {
		offHours += hourly[hr]
	}

	var patterns []string
	if offHours > afterHoursThreshold {
		patterns = append(patterns, fmt.Sprintf("after-hours access: %d transactions between 23:00 and 06:00", offHours))
	}

	actors := make([]string, 0, len(byActor))
	for actor := range byActor {
		actors = append(actors, actor)
	}
	sort.Strings(actors)

	var busy []string
	for _, actor := range actors {
		if actor == models.SystemActor || byActor[actor] <= actorActivityLimit {
			continue
		}
		busy = append(busy, actor)
		patterns = append(patterns, fmt.Sprintf("excessive user activity: %s made %d transactions", actor, byActor[actor]))
	}

	if len(patterns) == 0 {
		return nil, nil
	}

	exists, err := h.AnomalyExists(ctx, recentAnomaly(in.productID(), in.Now.Add(-accessCooldown), models.AnomalyUnauthorizedAccess))
	if err != nil || exists {
		return nil, err
	}

	sev := models.SeverityMedium
	if offHours > afterHoursThreshold {
		sev = models.SeverityHigh
	}

	return []models.Anomaly{newAnomaly(in, models.AnomalyUnauthorizedAccess, sev,
		fmt.Sprintf("Unusual access to %s: %s", in.Product.Name, strings.Join(patterns, "; ")),
		accessPatternConfidence,
		map[string]any{
			"after_hours_count": offHours,
			"hourly":            hourly,
			"busy_actors":       busy,
			"actor_counts":      byActor,
		})}, nil
}
