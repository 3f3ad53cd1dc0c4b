package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the optional config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfigPath is searched when CONFIG_PATH is unset. The file is
// optional; environment variables alone are enough to run.
const defaultConfigPath = "sync.yaml"

// Config holds all application configuration. It is constructed once at
// startup and passed explicitly to each component.
type Config struct {
	// Strava API credentials
	StravaClientID     string `koanf:"strava_client_id"`
	StravaClientSecret string `koanf:"strava_client_secret"`
	StravaRefreshToken string `koanf:"strava_refresh_token"`

	// Warehouse configuration
	MotherDuckToken   string `koanf:"motherduck_token"`
	WarehouseDSN      string `koanf:"warehouse_dsn"`
	WarehouseDatabase string `koanf:"warehouse_database"`

	// Local paths
	StatePath string `koanf:"state_path"`
	CSVDir    string `koanf:"csv_dir"`

	// Optional Pushgateway for run metrics
	PushgatewayURL string `koanf:"pushgateway_url"`

	// Logging configuration
	LogLevel string `koanf:"log_level"`
}

// defaultConfig returns a Config with defaults applied. Defaults are loaded
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		WarehouseDSN:      "md:",
		WarehouseDatabase: "strava",
		StatePath:         "./sync_state.db",
		CSVDir:            ".",
		LogLevel:          "info",
	}
}

// Load builds the configuration: struct defaults, then an optional YAML
// file, then environment variables (highest priority). It fails fast if
// required credentials are missing.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// STRAVA_CLIENT_ID -> strava_client_id
	envProvider := env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required credentials are present, reporting
// every missing variable in one error.
func (c *Config) Validate() error {
	var missingVars []string

	if c.StravaClientID == "" {
		missingVars = append(missingVars, "STRAVA_CLIENT_ID")
	}
	if c.StravaClientSecret == "" {
		missingVars = append(missingVars, "STRAVA_CLIENT_SECRET")
	}
	if c.StravaRefreshToken == "" {
		missingVars = append(missingVars, "STRAVA_REFRESH_TOKEN")
	}
	if c.MotherDuckToken == "" {
		missingVars = append(missingVars, "MOTHERDUCK_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// findConfigFile returns the config file path to load, or "" when none
// exists. CONFIG_PATH must point at an existing file.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}
