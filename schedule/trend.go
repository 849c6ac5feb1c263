package schedule

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/teranos/promanage/item"
	"github.com/teranos/promanage/logger"
)

// TrendReport is the outcome of one trend evaluation
type TrendReport struct {
	High        bool
	Mean        decimal.Decimal
	Threshold   decimal.Decimal
	Samples     int
	WindowStart item.Date
}

// TrendEstimator decides whether recently created items carry unusually high value
type TrendEstimator struct {
	threshold  decimal.Decimal
	windowDays int
	timeNow    func() time.Time // Injectable for testing
	logger     *zap.SugaredLogger
}

// NewTrendEstimator creates an estimator on the wall clock
func NewTrendEstimator(threshold decimal.Decimal, windowDays int, log *zap.SugaredLogger) *TrendEstimator {
	return NewTrendEstimatorWithClock(threshold, windowDays, time.Now, log)
}

// NewTrendEstimatorWithClock creates an estimator with an injectable clock
func NewTrendEstimatorWithClock(threshold decimal.Decimal, windowDays int, timeNow func() time.Time, log *zap.SugaredLogger) *TrendEstimator {
	if log == nil {
		log = logger.Logger
	}
	return &TrendEstimator{
		threshold:  threshold,
		windowDays: windowDays,
		timeNow:    timeNow,
		logger:     log,
	}
}

// Evaluate averages the value of items created within the window (inclusive of
// its first day) and compares it to the threshold. Items without a value are
// ignored; no qualifying items means a mean of zero. It never fails.
func (e *TrendEstimator) Evaluate(items []item.WorkItem) TrendReport {
	windowStart := item.NewDate(e.timeNow()).AddDays(-e.windowDays)

	sum := decimal.Zero
	samples := 0
	for _, w := range items {
		if !w.Value.Valid || w.CreatedAt.IsZero() || w.CreatedAt.Before(windowStart) {
			continue
		}
		sum = sum.Add(w.Value.Decimal)
		samples++
	}

	mean := decimal.Zero
	high := false
	if samples > 0 {
		n := decimal.NewFromInt(int64(samples))
		mean = sum.Div(n)
		// sum > threshold*n is the exact form of mean > threshold
		high = sum.GreaterThan(e.threshold.Mul(n))
	}

	e.logger.Debugw("Trend evaluated",
		logger.FieldRecentMean, mean.StringFixed(2),
		logger.FieldThreshold, e.threshold.String(),
		"samples", samples,
		"window_start", windowStart.String(),
		logger.FieldTrendHigh, high,
	)

	return TrendReport{
		High:        high,
		Mean:        mean,
		Threshold:   e.threshold,
		Samples:     samples,
		WindowStart: windowStart,
	}
}

// IsHigh is Evaluate reduced to its signal
func (e *TrendEstimator) IsHigh(items []item.WorkItem) bool {
	return e.Evaluate(items).High
}
