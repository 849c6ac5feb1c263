package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/promanage/errors"
)

// EnvPrefix prefixes every environment override, e.g. PROMANAGE_SERVER_PORT
const EnvPrefix = "PROMANAGE"

var (
	mu            sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper

	// ConfigSources records which file last set each dotted key during loading
	ConfigSources = map[string]SourceInfo{}
)

// Load reads the promanage configuration using Viper. The result is cached
// for the process lifetime; call Reset to reload.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	if globalConfig != nil {
		return globalConfig, nil
	}

	cfg, err := LoadWithViper(initViper())
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a single file on top of the defaults.
// Environment variables are not consulted.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config from %s", configPath)
	}
	return config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	viperInstance = nil
	ConfigSources = map[string]SourceInfo{}
}

func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindEnvVars(v)
	SetDefaults(v)

	mergeConfigFiles(v, ConfigPaths())

	viperInstance = v
	return v
}

// UserConfigPath returns ~/.promanage/am.toml, or "" without a home directory
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".promanage", "am.toml")
}

// ConfigPaths lists candidate files lowest precedence first:
// system, user, then the nearest project am.toml.
func ConfigPaths() []ConfigPath {
	paths := []ConfigPath{{Path: "/etc/promanage/config.toml", Source: SourceSystem}}
	if user := UserConfigPath(); user != "" {
		paths = append(paths, ConfigPath{Path: user, Source: SourceUser})
	}
	if project := findProjectConfig(); project != "" {
		paths = append(paths, ConfigPath{Path: project, Source: SourceProject})
	}
	return paths
}

// findProjectConfig walks up from the working directory to the first am.toml
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, "am.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles layers each existing file over v in order, so later files win
func mergeConfigFiles(v *viper.Viper, paths []ConfigPath) {
	for _, p := range paths {
		if _, err := os.Stat(p.Path); err != nil {
			continue
		}
		tmp := viper.New()
		tmp.SetConfigFile(p.Path)
		tmp.SetConfigType("toml")
		if err := tmp.ReadInConfig(); err != nil {
			continue
		}
		settings := tmp.AllSettings()
		markSettingsFromSource(settings, "", p.Source, p.Path, ConfigSources)
		if err := v.MergeConfigMap(settings); err != nil {
			continue
		}
	}
}

// Get returns a configuration value using dot notation
func Get(key string) interface{} {
	return GetViper().Get(key)
}

// GetString returns a configuration value as string using dot notation
func GetString(key string) string {
	return GetViper().GetString(key)
}

// GetInt returns a configuration value as int using dot notation
func GetInt(key string) int {
	return GetViper().GetInt(key)
}
