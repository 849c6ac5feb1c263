package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/item"
	"github.com/teranos/promanage/logger"
)

// Result is what a caller gets back from a run or a query
type Result struct {
	Run       Run
	Plan      Plan
	Scheduled []item.WorkItem
	Total     decimal.Decimal
	DryRun    bool
}

// Service runs the scheduler against a Store
type Service struct {
	store    Store
	settings Settings
	trend    *TrendEstimator
	logger   *zap.SugaredLogger
	timeNow  func() time.Time
	newRunID func() string

	runs singleflight.Group

	mu        sync.RWMutex
	listeners []func(Result)
}

// NewService creates a scheduling service. settings must already be validated.
func NewService(store Store, settings Settings, log *zap.SugaredLogger) *Service {
	return NewServiceWithClock(store, settings, time.Now, log)
}

// NewServiceWithClock creates a scheduling service with an injectable clock
func NewServiceWithClock(store Store, settings Settings, timeNow func() time.Time, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = logger.ComponentLogger("schedule")
	}
	return &Service{
		store:    store,
		settings: settings,
		trend:    NewTrendEstimatorWithClock(settings.RevenueThreshold, settings.TrendWindowDays, timeNow, log.Named("trend")),
		logger:   log,
		timeNow:  timeNow,
		newRunID: uuid.NewString,
	}
}

// Settings returns the settings the service was built with
func (s *Service) Settings() Settings {
	return s.settings
}

// OnRun registers fn to be called after every persisted run
func (s *Service) OnRun(fn func(Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Run loads every item, schedules them, and writes every status back.
//
// Concurrent calls share a single run: later callers wait for the run in
// flight and receive its result. The shared run is detached from any one
// caller's cancellation; a caller whose ctx ends stops waiting and gets
// ctx.Err() while the run completes for the others. A storage failure fails
// the whole run and nothing is reported as scheduled.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	runCtx := context.WithoutCancel(ctx)
	ch := s.runs.DoChan("run", func() (interface{}, error) {
		return s.run(runCtx, false)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debugw("Joined scheduling run already in flight")
		}
		return res.Val.(*Result), nil
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "scheduling run: caller gave up waiting")
	}
}

// Preview computes the run Run would perform without persisting anything
func (s *Service) Preview(ctx context.Context) (*Result, error) {
	return s.run(ctx, true)
}

func (s *Service) run(ctx context.Context, dryRun bool) (*Result, error) {
	started := s.timeNow()
	runID := s.newRunID()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.LoggerFromContext(ctx, s.logger)

	items, err := s.store.LoadAll(ctx)
	if err != nil {
		log.Errorw("Scheduling run failed to load items", logger.FieldError, err)
		return nil, errors.Wrap(err, "scheduling run: load items")
	}

	// The estimator sees the unfiltered snapshot, invalid items included
	trend := s.trend.Evaluate(items)
	capacity := CapacityFor(s.settings.BaseCapacity, trend.High)
	plan := Compute(items, capacity)

	run := Run{
		ID:             runID,
		StartedAt:      started,
		Capacity:       capacity,
		TrendHigh:      trend.High,
		RecentMean:     trend.Mean,
		Threshold:      trend.Threshold,
		ScheduledCount: len(plan.Scheduled),
		RejectedCount:  plan.RejectedCount(),
		TotalValue:     plan.TotalValue,
	}

	if !dryRun {
		if err := s.store.SaveAll(ctx, plan.Items, run); err != nil {
			log.Errorw("Scheduling run failed to save items", logger.FieldError, err)
			return nil, errors.Wrap(err, "scheduling run: save items")
		}
	}

	log.Infow("Scheduling run complete",
		logger.FieldCount, len(items),
		logger.FieldCapacity, capacity,
		logger.FieldTrendHigh, trend.High,
		logger.FieldRecentMean, trend.Mean.StringFixed(2),
		logger.FieldScheduledCount, run.ScheduledCount,
		logger.FieldRejectedCount, run.RejectedCount,
		logger.FieldTotalValue, run.TotalValue.String(),
		"dry_run", dryRun,
		logger.FieldDurationMS, s.timeNow().Sub(started).Milliseconds(),
	)

	result := &Result{
		Run:       run,
		Plan:      plan,
		Scheduled: plan.Scheduled,
		Total:     plan.TotalValue,
		DryRun:    dryRun,
	}

	if !dryRun {
		s.notify(*result)
	}
	return result, nil
}

// MaxProfit answers the read-only "best schedule over every deadline" query:
// the horizon is the largest deadline among valid items rather than the
// configured capacity, and nothing is written back.
func (s *Service) MaxProfit(ctx context.Context) (*Result, error) {
	items, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "max profit: load items")
	}

	plan := Compute(items, MaxDeadline(items))

	s.logger.Debugw("Max profit computed",
		logger.FieldCapacity, plan.Capacity,
		logger.FieldScheduledCount, len(plan.Scheduled),
		logger.FieldTotalValue, plan.TotalValue.String(),
	)

	return &Result{
		Plan:      plan,
		Scheduled: plan.Scheduled,
		Total:     plan.TotalValue,
		DryRun:    true,
	}, nil
}

func (s *Service) notify(result Result) {
	s.mu.RLock()
	listeners := make([]func(Result), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(result)
	}
}
