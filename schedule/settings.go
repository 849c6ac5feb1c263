package schedule

import (
	"github.com/shopspring/decimal"

	"github.com/teranos/promanage/errors"
)

const (
	DefaultBaseCapacity     = 5
	DefaultTrendWindowDays  = 30
	DefaultRevenueThreshold = "15000"
)

// Settings are the tunables of a scheduling run. They are fixed for the
// lifetime of a Service.
type Settings struct {
	RevenueThreshold decimal.Decimal
	BaseCapacity     int
	TrendWindowDays  int
}

// DefaultSettings returns a five-slot horizon with a 15000 threshold over 30 days
func DefaultSettings() Settings {
	return Settings{
		RevenueThreshold: decimal.RequireFromString(DefaultRevenueThreshold),
		BaseCapacity:     DefaultBaseCapacity,
		TrendWindowDays:  DefaultTrendWindowDays,
	}
}

// Validate rejects settings that cannot produce a meaningful horizon
func (s Settings) Validate() error {
	if s.BaseCapacity < 1 {
		return errors.Newf("base capacity must be >= 1, got %d", s.BaseCapacity)
	}
	if s.TrendWindowDays < 1 {
		return errors.Newf("trend window must be >= 1 day, got %d", s.TrendWindowDays)
	}
	if s.RevenueThreshold.IsNegative() {
		return errors.Newf("revenue threshold must be nonnegative, got %s", s.RevenueThreshold)
	}
	return nil
}
