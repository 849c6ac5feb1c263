package am

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/teranos/promanage/schedule"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "promanage.db")

	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.schedule_runs_per_minute", 0)
	v.SetDefault("server.shutdown_timeout_seconds", DefaultShutdownTimeout)

	v.SetDefault("scheduler.revenue_threshold", schedule.DefaultRevenueThreshold)
	v.SetDefault("scheduler.base_capacity", schedule.DefaultBaseCapacity)
	v.SetDefault("scheduler.trend_window_days", schedule.DefaultTrendWindowDays)
	v.SetDefault("scheduler.cron", "")
}

// BindEnvVars binds keys whose env names are used in deployment docs
func BindEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "PROMANAGE_DATABASE_PATH")
	v.BindEnv("server.port", "PROMANAGE_SERVER_PORT")
	v.BindEnv("scheduler.revenue_threshold", "PROMANAGE_SCHEDULER_REVENUE_THRESHOLD")
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "promanage.db"
	}
	return c.Database.Path
}

// GetServerPort returns the configured port, or DefaultServerPort
func (c *Config) GetServerPort() int {
	if c.Server.Port == 0 {
		return DefaultServerPort
	}
	return c.Server.Port
}

// GetServerAllowedOrigins returns the allowed CORS origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return c.Server.AllowedOrigins
}

// String returns a one-line summary of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Server: {Port: %d}, Scheduler: {Threshold: %s, BaseCapacity: %d}}",
		c.Database.Path, c.Server.Port, c.Scheduler.RevenueThreshold, c.Scheduler.BaseCapacity)
}
