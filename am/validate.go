package am

import (
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/schedule"
)

// CronParser is the cron dialect accepted by scheduler.cron:
// five standard fields plus descriptors such as @hourly.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be between 1 and 65535 (omit for default %d), got %d", DefaultServerPort, c.Server.Port)
	}
	if c.Server.ScheduleRunsPerMinute < 0 {
		return errors.Newf("server.schedule_runs_per_minute must be >= 0, got %d", c.Server.ScheduleRunsPerMinute)
	}
	if c.Server.ShutdownTimeoutSeconds < 0 {
		return errors.Newf("server.shutdown_timeout_seconds must be >= 0, got %d", c.Server.ShutdownTimeoutSeconds)
	}

	if _, err := c.SchedulerSettings(); err != nil {
		return err
	}

	if c.Scheduler.Cron != "" {
		if _, err := CronParser.Parse(c.Scheduler.Cron); err != nil {
			return errors.WithHint(
				errors.Wrapf(err, "scheduler.cron %q is not a valid schedule", c.Scheduler.Cron),
				`use five fields ("0 * * * *") or a descriptor ("@hourly"); leave empty to disable`,
			)
		}
	}
	return nil
}

// SchedulerSettings converts the scheduler section into validated core settings
func (c *Config) SchedulerSettings() (schedule.Settings, error) {
	raw := c.Scheduler.RevenueThreshold
	if raw == "" {
		raw = schedule.DefaultRevenueThreshold
	}
	threshold, err := decimal.NewFromString(raw)
	if err != nil {
		return schedule.Settings{}, errors.WithHint(
			errors.Wrapf(err, "scheduler.revenue_threshold %q is not a decimal", raw),
			`quote the value in am.toml, e.g. revenue_threshold = "15000"`,
		)
	}

	s := schedule.Settings{
		RevenueThreshold: threshold,
		BaseCapacity:     c.Scheduler.BaseCapacity,
		TrendWindowDays:  c.Scheduler.TrendWindowDays,
	}
	if err := s.Validate(); err != nil {
		return schedule.Settings{}, errors.WithHint(err, "check the [scheduler] section of am.toml")
	}
	return s, nil
}
