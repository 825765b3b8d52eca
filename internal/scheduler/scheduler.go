// Package scheduler triggers detection passes on a timer and on demand.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"inventory-backend/internal/detection"
	"inventory-backend/internal/lock"
	"inventory-backend/internal/metrics"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	TriggerTimer  = "timer"
	TriggerManual = "manual"

	lockKey = "detection"
)

type Runner interface {
	RunDetection(ctx context.Context) (*detection.Result, error)
}

type Config struct {
	Interval     time.Duration
	InitialDelay time.Duration
	LockTTL      time.Duration
}

type Stats struct {
	Running   bool      `json:"running"`
	Runs      int64     `json:"runs"`
	Failures  int64     `json:"failures"`
	Skipped   int64     `json:"skipped"`
	LastRunID string    `json:"last_run_id,omitempty"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Scheduler makes sure at most one pass runs per process (singleflight) and, for
// timer passes, per deployment (locker).
type Scheduler struct {
	runner  Runner
	locker  lock.Locker
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics

	group singleflight.Group

	running   *atomic.Bool
	runs      *atomic.Int64
	failures  *atomic.Int64
	skipped   *atomic.Int64
	lastRunAt *atomic.Int64
	lastRunID *atomic.String
	lastError *atomic.String

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(r Runner, l lock.Locker, cfg Config, log *zap.Logger, m *metrics.Metrics) *Scheduler {
	if l == nil {
		l = lock.NopLocker{}
	}
	return &Scheduler{
		runner:    r,
		locker:    l,
		cfg:       cfg,
		log:       log,
		metrics:   m,
		running:   atomic.NewBool(false),
		runs:      atomic.NewInt64(0),
		failures:  atomic.NewInt64(0),
		skipped:   atomic.NewInt64(0),
		lastRunAt: atomic.NewInt64(0),
		lastRunID: atomic.NewString(""),
		lastError: atomic.NewString(""),
	}
}

// Start launches the timer loop. The first pass runs after InitialDelay, then
// every Interval. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)

	s.log.Info("detection scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("initial_delay", s.cfg.InitialDelay))
}

// Stop cancels the loop and waits for an in-flight timer pass to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("detection scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	delay := time.NewTimer(s.cfg.InitialDelay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	release, ok, err := s.locker.TryLock(ctx, lockKey, s.cfg.LockTTL)
	switch {
	case err != nil:
		s.log.Warn("detection lock unavailable, running unguarded", zap.Error(err))
	case !ok:
		s.skipped.Inc()
		s.metrics.RecordRun(TriggerTimer, "skipped")
		s.log.Debug("detection pass held elsewhere, skipping")
		return
	default:
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn("release detection lock", zap.Error(err))
			}
		}()
	}

	// Stop cancels ctx; a pass that has started still runs to completion.
	_, _ = s.run(context.WithoutCancel(ctx), TriggerTimer)
}

// RunNow triggers a pass for a caller such as the HTTP API. Concurrent callers
// share one pass. The pass itself is not cancelled when ctx is; only the wait is.
func (s *Scheduler) RunNow(ctx context.Context) (*detection.Result, error) {
	ch := s.group.DoChan(lockKey, func() (any, error) {
		return s.execute(context.WithoutCancel(ctx), TriggerManual)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		res, _ := r.Val.(*detection.Result)
		return res, r.Err
	}
}

func (s *Scheduler) run(ctx context.Context, trigger string) (*detection.Result, error) {
	v, err, _ := s.group.Do(lockKey, func() (any, error) {
		return s.execute(ctx, trigger)
	})
	res, _ := v.(*detection.Result)
	return res, err
}

func (s *Scheduler) execute(ctx context.Context, trigger string) (res *detection.Result, err error) {
	s.running.Store(true)
	defer s.running.Store(false)

	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("detection pass panicked", zap.String("trigger", trigger), zap.Any("panic", rec))
			err = errors.New("detection pass panicked")
		}

		s.runs.Inc()
		s.lastRunAt.Store(time.Now().UnixNano())
		if res != nil {
			s.lastRunID.Store(res.RunID)
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
			s.failures.Inc()
			s.lastError.Store(err.Error())
		} else {
			s.lastError.Store("")
		}
		s.metrics.RecordRun(trigger, outcome)
	}()

	return s.runner.RunDetection(ctx)
}

func (s *Scheduler) Stats() Stats {
	st := Stats{
		Running:   s.running.Load(),
		Runs:      s.runs.Load(),
		Failures:  s.failures.Load(),
		Skipped:   s.skipped.Load(),
		LastRunID: s.lastRunID.Load(),
		LastError: s.lastError.Load(),
	}
	if ns := s.lastRunAt.Load(); ns > 0 {
		st.LastRunAt = time.Unix(0, ns).UTC()
	}
	return st
}
