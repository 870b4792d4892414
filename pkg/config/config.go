// Package config loads, defaults, and validates the fileshelf configuration,
// and builds the configured metadata store and storage backend.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete fileshelf configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FILESHELF_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// Backend Configuration Pattern:
// The metadata and storage sections each carry a Type field plus one
// type-specific option map per backend; only the map matching the selected
// type is used. Option maps are decoded with mapstructure by the factories.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Metadata selects and configures the metadata store.
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Storage selects and configures the byte-storage backend.
	Storage StorageConfig `mapstructure:"storage"`

	// Tree contains mutation engine settings.
	Tree TreeConfig `mapstructure:"tree"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// MetadataConfig specifies the metadata store.
type MetadataConfig struct {
	// Type selects the store implementation: sqlite or memory.
	Type string `mapstructure:"type" validate:"required,oneof=sqlite memory"`

	// CaseInsensitive makes sibling-name uniqueness case-insensitive. The
	// policy is baked into the sqlite schema, so it must stay stable for the
	// lifetime of a database.
	CaseInsensitive bool `mapstructure:"case_insensitive"`

	// SQLite holds sqlite-specific options (used when Type = "sqlite").
	SQLite map[string]any `mapstructure:"sqlite"`

	// Memory holds memory-specific options (used when Type = "memory").
	Memory map[string]any `mapstructure:"memory"`
}

// StorageConfig specifies the byte-storage backend.
type StorageConfig struct {
	// Type selects the backend: local, memory, or s3.
	Type string `mapstructure:"type" validate:"required,oneof=local memory s3"`

	// Local holds local-disk options (used when Type = "local").
	Local map[string]any `mapstructure:"local"`

	// Memory holds memory options (used when Type = "memory").
	Memory map[string]any `mapstructure:"memory"`

	// S3 holds S3 options (used when Type = "s3").
	S3 map[string]any `mapstructure:"s3"`
}

// TreeConfig contains mutation engine settings.
type TreeConfig struct {
	// OpTimeout bounds each storage side effect; expiry is treated as a
	// storage failure.
	OpTimeout time.Duration `mapstructure:"op_timeout" validate:"required,gt=0"`

	// MaxDepth bounds ancestor-chain walks.
	MaxDepth int `mapstructure:"max_depth" validate:"required,gt=0"`
}

// Load reads, defaults, and validates the configuration.
//
// configPath may be empty, in which case the default location
// ($XDG_CONFIG_HOME/fileshelf or ~/.config/fileshelf) is searched. A missing
// config file is not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support and config file lookup.
func setupViper(v *viper.Viper, configPath string) {
	// Example: FILESHELF_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FILESHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path, preferring
// XDG_CONFIG_HOME over ~/.config.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fileshelf")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "fileshelf")
}
