// Package am ("as mapped") loads promanage configuration from defaults,
// TOML files and PROMANAGE_* environment variables.
package am

// Config represents the promanage configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" toml:"database" json:"database" yaml:"database"`
	Server    ServerConfig    `mapstructure:"server" toml:"server" json:"server" yaml:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" toml:"scheduler" json:"scheduler" yaml:"scheduler"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path" yaml:"path"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port                   int      `mapstructure:"port" toml:"port" json:"port" yaml:"port"`
	AllowedOrigins         []string `mapstructure:"allowed_origins" toml:"allowed_origins" json:"allowed_origins" yaml:"allowed_origins"`
	ScheduleRunsPerMinute  int      `mapstructure:"schedule_runs_per_minute" toml:"schedule_runs_per_minute" json:"schedule_runs_per_minute" yaml:"schedule_runs_per_minute"` // 0 = unlimited
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds" json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// SchedulerConfig configures the scheduling run
type SchedulerConfig struct {
	RevenueThreshold string `mapstructure:"revenue_threshold" toml:"revenue_threshold" json:"revenue_threshold" yaml:"revenue_threshold"` // decimal string, kept exact
	BaseCapacity     int    `mapstructure:"base_capacity" toml:"base_capacity" json:"base_capacity" yaml:"base_capacity"`
	TrendWindowDays  int    `mapstructure:"trend_window_days" toml:"trend_window_days" json:"trend_window_days" yaml:"trend_window_days"`
	Cron             string `mapstructure:"cron" toml:"cron" json:"cron" yaml:"cron"` // empty = no periodic runs
}

// Server defaults
const (
	DefaultServerPort      = 8080
	DefaultShutdownTimeout = 10 // seconds
)

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)
