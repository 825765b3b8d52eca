package detection

import (
	"context"
	"fmt"
	"time"

	"inventory-backend/internal/metrics"
	"inventory-backend/internal/models"
	"inventory-backend/internal/store"

	"go.uber.org/zap"
)

// Source is the read side of the ledger store the engine needs.
type Source interface {
	ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	ListTransactions(ctx context.Context, productID uint, from, to time.Time) ([]models.Transaction, error)
	History
}

type Engine struct {
	source     Source
	rules      []Rule
	crossRules []CrossRule
	location   *time.Location
	log        *zap.Logger
	metrics    *metrics.Metrics
}

type Option func(e *Engine)

func WithRules(rules ...Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

func WithCrossRules(rules ...CrossRule) Option {
	return func(e *Engine) { e.crossRules = rules }
}

// WithLocation sets the zone used to decide what counts as after hours.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.location = loc }
}

func NewEngine(src Source, log *zap.Logger, m *metrics.Metrics, opts ...Option) *Engine {
	e := &Engine{
		source:     src,
		rules:      DefaultRules(),
		crossRules: DefaultCrossRules(),
		location:   time.Local,
		log:        log,
		metrics:    m,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Detect runs every rule against every product. A failing rule or an unreadable
// ledger only costs that product that rule; failing to list products fails the pass.
func (e *Engine) Detect(ctx context.Context, now time.Time, runID string) ([]models.Anomaly, error) {
	products, err := e.source.ListProducts(ctx, store.ProductFilter{})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	log := e.log.With(zap.String("run_id", runID))
	inputs := make([]Input, 0, len(products))
	var found []models.Anomaly

	for _, p := range products {
		ledger, err := e.source.ListTransactions(ctx, p.ID, now.Add(-LedgerWindow), now)
		if err != nil {
			log.Warn("skipping product, ledger unavailable", zap.Uint("product_id", p.ID), zap.Error(err))
			e.metrics.RecordDetectorError("ledger")
			continue
		}

		in := Input{Product: p, Ledger: ledger, Now: now, RunID: runID, Location: e.location}
		inputs = append(inputs, in)

		for _, r := range e.rules {
			found = append(found, e.runRule(ctx, log, r, in)...)
		}
	}

	for _, r := range e.crossRules {
		found = append(found, e.runCrossRule(ctx, log, r, inputs, now, runID)...)
	}

	log.Info("detection completed", zap.Int("products", len(products)), zap.Int("anomalies", len(found)))
	return found, nil
}

func (e *Engine) runRule(ctx context.Context, log *zap.Logger, r Rule, in Input) (out []models.Anomaly) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("detector panicked", zap.String("detector", r.Name), zap.Uint("product_id", in.Product.ID), zap.Any("panic", rec))
			e.metrics.RecordDetectorError(r.Name)
			out = nil
		}
	}()

	out, err := r.Detect(ctx, in, e.source)
	if err != nil {
		log.Error("detector failed", zap.String("detector", r.Name), zap.Uint("product_id", in.Product.ID), zap.Error(err))
		e.metrics.RecordDetectorError(r.Name)
		return nil
	}
	return out
}

func (e *Engine) runCrossRule(ctx context.Context, log *zap.Logger, r CrossRule, inputs []Input, now time.Time, runID string) (out []models.Anomaly) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("detector panicked", zap.String("detector", r.Name), zap.Any("panic", rec))
			e.metrics.RecordDetectorError(r.Name)
			out = nil
		}
	}()

	out, err := r.Detect(ctx, inputs, now, runID, e.source)
	if err != nil {
		log.Error("detector failed", zap.String("detector", r.Name), zap.Error(err))
		e.metrics.RecordDetectorError(r.Name)
		return nil
	}
	return out
}
