package commands

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/teranos/promanage/am"
	"github.com/teranos/promanage/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(cfg *am.Config, verbosity int) {
	info := version.Get()

	pterm.DefaultHeader.WithFullWidth().Println("promanage")

	cron := cfg.Scheduler.Cron
	if cron == "" {
		cron = "off"
	}
	limit := "unlimited"
	if n := cfg.Server.ScheduleRunsPerMinute; n > 0 {
		limit = fmt.Sprintf("%d/min", n)
	}

	pterm.DefaultBox.WithTitle("Info").Println(fmt.Sprintf(
		"Version:   %s (commit %s)\nDatabase:  %s\nListen:    http://localhost:%d\nCapacity:  %d (threshold %s)\nCron:      %s\nRuns:      %s\nVerbosity: %d",
		info.Version, info.Short(),
		cfg.GetDatabasePath(),
		cfg.GetServerPort(),
		cfg.Scheduler.BaseCapacity, cfg.Scheduler.RevenueThreshold,
		cron,
		limit,
		verbosity,
	))
	pterm.Info.Println("Press Ctrl+C to stop")
}
