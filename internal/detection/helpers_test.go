package detection

import (
	"context"
	"encoding/json"
	"slices"
	"testing"
	"time"

	"inventory-backend/internal/models"
	"inventory-backend/internal/store"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

// memHistory applies store.AnomalyFilter semantics to a slice.
type memHistory struct {
	anomalies []models.Anomaly
	err       error
	calls     []store.AnomalyFilter
}

func (h *memHistory) AnomalyExists(_ context.Context, f store.AnomalyFilter) (bool, error) {
	h.calls = append(h.calls, f)
	if h.err != nil {
		return false, h.err
	}
	for _, a := range h.anomalies {
		switch {
		case f.ProductID != nil:
			if a.ProductID == nil || *a.ProductID != *f.ProductID {
				continue
			}
		case f.SystemWide:
			if a.ProductID != nil {
				continue
			}
		}
		if len(f.Types) > 0 && !slices.Contains(f.Types, a.Type) {
			continue
		}
		if f.Resolved != nil && a.Resolved != *f.Resolved {
			continue
		}
		if !f.Since.IsZero() && a.CreatedAt.Before(f.Since) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func product(mutate func(p *models.Product)) models.Product {
	p := models.Product{ID: 7, Name: "Espresso beans", Category: "coffee", Quantity: 40, Price: 20, MinimumStock: 10}
	if mutate != nil {
		mutate(&p)
	}
	return p
}

func input(p models.Product, ledger ...models.Transaction) Input {
	return Input{Product: p, Ledger: ledger, Now: testNow, RunID: "run-1", Location: time.UTC}
}

func tx(at time.Time, typ models.TransactionType, delta, prev, next int) models.Transaction {
	return models.Transaction{ProductID: 7, Type: typ, Quantity: delta, PreviousQuantity: prev, NewQuantity: next, CreatedAt: at, Actor: models.SystemActor}
}

// chain builds consistent transactions of the same type, one per step, ending at end.
func chain(start int, typ models.TransactionType, deltas []int, end time.Time, step time.Duration) []models.Transaction {
	out := make([]models.Transaction, 0, len(deltas))
	qty := start
	at := end.Add(-step * time.Duration(len(deltas)-1))
	for i, d := range deltas {
		next := max(0, qty+d)
		t := tx(at, typ, d, qty, next)
		t.ID = uint(i + 1)
		out = append(out, t)
		qty = next
		at = at.Add(step)
	}
	return out
}

func existing(productID *uint, typ models.AnomalyType, resolved bool, at time.Time) models.Anomaly {
	return models.Anomaly{ProductID: productID, Type: typ, Resolved: resolved, CreatedAt: at}
}

func metadata(t *testing.T, a models.Anomaly) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(a.Metadata, &m))
	return m
}
