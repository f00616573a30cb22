package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/basetemp/internal/tmpfactory"
)

// Config represents the complete basetemp configuration
type Config struct {
	BaseTemp BaseTempConfig `mapstructure:"basetemp" yaml:"basetemp"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// BaseTempConfig controls where run directories live and how long they survive
type BaseTempConfig struct {
	// Root is the directory numbered run directories are allocated under.
	// Defaults to "<os temp dir>/basetemp-of-<user>".
	Root string `mapstructure:"root" yaml:"root"`
	// Given is an explicit base directory. When set it is wiped and recreated
	// on every run instead of allocating a numbered directory under Root.
	Given string `mapstructure:"given" yaml:"given"`
	// Prefix names run directories "<prefix><N>" (default: "run-")
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	// Keep is how many of the newest run directories are never collected (default: 3)
	Keep int `mapstructure:"keep" yaml:"keep"`
	// LockTimeout is how long a lock stays live after the newest run started,
	// as a Go duration string (default: "72h")
	LockTimeout string `mapstructure:"lock_timeout" yaml:"lock_timeout"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "warn")
	Level string `mapstructure:"level" yaml:"level"`
	// File is where logs are appended. Empty means stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// MetricsConfig controls metrics export
type MetricsConfig struct {
	// Textfile is a path the gc command writes Prometheus metrics to, in the
	// node_exporter textfile collector format. Empty disables export.
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		BaseTemp: BaseTempConfig{
			Root:        tmpfactory.DefaultRoot(),
			Given:       "",
			Prefix:      tmpfactory.DefaultPrefix,
			Keep:        tmpfactory.DefaultKeep,
			LockTimeout: "72h",
		},
		Logging: LoggingConfig{
			Level: "warn",
			File:  "",
		},
		Metrics: MetricsConfig{
			Textfile: "",
		},
	}
}

// LockTimeoutDuration returns LockTimeout parsed, falling back to the
// default when it is empty or malformed. Validate reports malformed values.
func (c *BaseTempConfig) LockTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.LockTimeout)
	if err != nil || d <= 0 {
		return tmpfactory.DefaultLockTimeout
	}
	return d
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("basetemp.root", defaults.BaseTemp.Root)
	viper.SetDefault("basetemp.given", defaults.BaseTemp.Given)
	viper.SetDefault("basetemp.prefix", defaults.BaseTemp.Prefix)
	viper.SetDefault("basetemp.keep", defaults.BaseTemp.Keep)
	viper.SetDefault("basetemp.lock_timeout", defaults.BaseTemp.LockTimeout)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)

	viper.SetDefault("metrics.textfile", defaults.Metrics.Textfile)
}

// Load reads the configuration from viper and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "basetemp")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".basetemp"
	}
	return filepath.Join(home, ".config", "basetemp")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
