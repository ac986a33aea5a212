// Package config loads tripdeck settings from file, environment, and
// flags, in that order of increasing precedence.
//
// Settings are read from tripdeck.yaml in the state directory (or the
// path given with --config) and from TRIPDECK_* environment variables,
// e.g. TRIPDECK_DASHBOARD_PORT=9000.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all tripdeck settings.
type Config struct {
	// StateDir is where the database, identity, and logs live.
	// Default: ~/.tripdeck
	StateDir string `mapstructure:"state_dir"`

	// StorePath overrides the database location inside StateDir.
	StorePath string `mapstructure:"store_path"`

	// TripID selects the trip document. Default: mainTrip
	TripID string `mapstructure:"trip_id"`

	// DashboardPort is the WebSocket dashboard listen port.
	// Default: 8787
	DashboardPort int `mapstructure:"dashboard_port"`

	// InboxDir, when set, is watched for dropped import files.
	InboxDir string `mapstructure:"inbox_dir"`

	// LogFile, when set, routes logs to a rotated file instead of
	// stderr.
	LogFile string `mapstructure:"log_file"`

	// LogMaxSizeMB caps individual log files before rotation.
	// Default: 10
	LogMaxSizeMB int `mapstructure:"log_max_size_mb"`

	// LogMaxBackups caps retained rotated log files. Default: 3
	LogMaxBackups int `mapstructure:"log_max_backups"`
}

// DefaultStateDir returns ~/.tripdeck, falling back to .tripdeck in
// the working directory when the home directory is unknown.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tripdeck"
	}
	return filepath.Join(home, ".tripdeck")
}

// Load reads configuration from configPath (empty means the default
// search locations) plus the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("state_dir", DefaultStateDir())
	v.SetDefault("store_path", "")
	v.SetDefault("trip_id", "mainTrip")
	v.SetDefault("dashboard_port", 8787)
	v.SetDefault("inbox_dir", "")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 3)

	v.SetEnvPrefix("TRIPDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("tripdeck")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultStateDir())
		v.AddConfigPath(".")
		// No config file is fine; defaults and environment apply.
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
