// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TESSERA_"

// Config is the master configuration for a Tessera server instance.
type Config struct {
	// Home is the server home directory. Assets live under data/.
	Home string `yaml:"home" env:"HOME"`

	Clients  ClientsConfig  `yaml:"clients" envPrefix:"CLIENTS_"`
	Activity ActivityConfig `yaml:"activity" envPrefix:"ACTIVITY_"`
	Network  NetworkConfig  `yaml:"network" envPrefix:"NETWORK_"`
	Catalog  CatalogConfig  `yaml:"catalog" envPrefix:"CATALOG_"`
	Logging  LoggingConfig  `yaml:"logging" envPrefix:"LOGGING_"`
	Shutdown ShutdownConfig `yaml:"shutdown" envPrefix:"SHUTDOWN_"`
	State    StateConfig    `yaml:"state" envPrefix:"STATE_"`
	Local    LocalConfig    `yaml:"local" envPrefix:"LOCAL_"`
}

// ClientsConfig configures admission.
type ClientsConfig struct {
	// Limit is the maximum number of logged-in clients.
	// Default: 10
	Limit int `yaml:"limit" env:"LIMIT"`

	// Admins lists user IDs granted administrator rights. Matches
	// from non-loopback addresses count only when AdminToken is set and
	// the login presents it.
	Admins []string `yaml:"admins" env:"ADMINS" envSeparator:","`

	// AdminToken is the shared secret remote administrators present at
	// login.
	AdminToken string `yaml:"admin_token" env:"ADMIN_TOKEN"`
}

// ActivityConfig pins the instance to a scenario.
type ActivityConfig struct {
	// ForceLocation replaces every requested scenario with this asset.
	ForceLocation string `yaml:"force_location" env:"FORCE_LOCATION"`

	// ForceMapAssetID is the scenario the heartbeat keeps loaded.
	ForceMapAssetID string `yaml:"force_map_asset_id" env:"FORCE_MAP_ASSET_ID"`

	// ForceActivityID is the activity recorded for ForceMapAssetID.
	ForceActivityID string `yaml:"force_activity_id" env:"FORCE_ACTIVITY_ID"`
}

// NetworkConfig configures the listener and loop timing.
type NetworkConfig struct {
	// Address is the websocket listen address.
	// Default: :28787
	Address string `yaml:"address" env:"ADDRESS"`

	// Rate is the loop tick interval in milliseconds.
	// Default: 33
	Rate int `yaml:"rate" env:"RATE"`

	// MasterUpdateRate is the heartbeat interval in seconds.
	// Default: 300
	MasterUpdateRate int `yaml:"master_update_rate" env:"MASTER_UPDATE_RATE"`
}

// CatalogConfig configures where asset descriptors come from.
type CatalogConfig struct {
	// File is a YAML catalog, relative to Home unless absolute.
	File string `yaml:"file" env:"FILE"`

	// URL is a remote catalog consulted after File.
	URL string `yaml:"url" env:"URL"`

	// FetchAttempts bounds retries of a remote download.
	// Default: 3
	FetchAttempts int `yaml:"fetch_attempts" env:"FETCH_ATTEMPTS"`

	// FetchTimeout bounds one download attempt, in seconds.
	// Default: 120
	FetchTimeout int `yaml:"fetch_timeout" env:"FETCH_TIMEOUT"`

	// LookupTimeout bounds one remote catalog lookup, in seconds.
	// Default: 10
	LookupTimeout int `yaml:"lookup_timeout" env:"LOOKUP_TIMEOUT"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level" env:"LEVEL"`

	// Format is json or text.
	// Default: json
	Format string `yaml:"format" env:"FORMAT"`
}

// ShutdownConfig configures automatic exit.
type ShutdownConfig struct {
	// IfIdle exits when no client has been logged in for IdleInterval.
	IfIdle bool `yaml:"if_idle" env:"IF_IDLE"`

	// IfEmpty exits when the last client leaves.
	IfEmpty bool `yaml:"if_empty" env:"IF_EMPTY"`

	// IdleInterval is in seconds.
	// Default: 60
	IdleInterval int `yaml:"idle_interval" env:"IDLE_INTERVAL"`
}

// StateConfig configures the persisted scenario record.
type StateConfig struct {
	// File is relative to Home unless absolute. Empty disables
	// persistence.
	// Default: scenario.cbor
	File string `yaml:"file" env:"FILE"`

	// Resume loads the recorded scenario at startup.
	// Default: true
	Resume bool `yaml:"resume" env:"RESUME"`

	// MaxAge, in seconds, ignores older records. Zero accepts any age.
	MaxAge int `yaml:"max_age" env:"MAX_AGE"`
}

// LocalConfig configures tessera-local, which runs a companion server
// beside a single-player client.
type LocalConfig struct {
	// ServerBinary is the tessera-server executable.
	// Default: tessera-server
	ServerBinary string `yaml:"server_binary" env:"SERVER_BINARY"`

	// OutputFile captures the companion's output, relative to Home.
	// Default: local_server.log
	OutputFile string `yaml:"output_file" env:"OUTPUT_FILE"`

	// ReadyAttempts bounds the once-per-second readiness polls.
	// Default: 20
	ReadyAttempts int `yaml:"ready_attempts" env:"READY_ATTEMPTS"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Home:    filepath.Join(homeDir, ".local", "share", "tessera"),
		Clients: ClientsConfig{Limit: 10},
		Network: NetworkConfig{
			Address:          ":28787",
			Rate:             33,
			MasterUpdateRate: 300,
		},
		Catalog:  CatalogConfig{FetchAttempts: 3, FetchTimeout: 120, LookupTimeout: 10},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Shutdown: ShutdownConfig{IdleInterval: 60},
		State:    StateConfig{File: "scenario.cbor", Resume: true},
		Local: LocalConfig{
			ServerBinary:  "tessera-server",
			OutputFile:    "local_server.log",
			ReadyAttempts: 20,
		},
	}
}

// Load loads the file named by TESSERA_CONFIG, or only the defaults
// and environment when it is unset.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvPrefix + "CONFIG"))
}

// LoadFile loads defaults, then path (skipped when empty), then
// environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing %s* environment: %w", EnvPrefix, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges a YAML file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Home = expandVars(c.Home, vars)
	vars["TESSERA_HOME"] = c.Home

	c.Catalog.File = expandVars(c.Catalog.File, vars)
	c.State.File = expandVars(c.State.File, vars)
	c.Local.ServerBinary = expandVars(c.Local.ServerBinary, vars)
	c.Local.OutputFile = expandVars(c.Local.OutputFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

// Validate checks the configuration, reporting every problem.
func (c *Config) Validate() error {
	var errs []error

	if c.Home == "" {
		errs = append(errs, errors.New("home is required"))
	}
	if c.Clients.Limit <= 0 {
		errs = append(errs, fmt.Errorf("clients.limit must be positive, got %d", c.Clients.Limit))
	}
	if c.Network.Address == "" {
		errs = append(errs, errors.New("network.address is required"))
	}
	if c.Network.Rate <= 0 {
		errs = append(errs, fmt.Errorf("network.rate must be positive, got %d", c.Network.Rate))
	}
	if c.Network.MasterUpdateRate <= 0 {
		errs = append(errs, fmt.Errorf("network.master_update_rate must be positive, got %d", c.Network.MasterUpdateRate))
	}
	if c.Catalog.URL != "" {
		parsed, err := url.Parse(c.Catalog.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("catalog.url must be an http or https URL, got %q", c.Catalog.URL))
		}
	}
	if c.Catalog.FetchAttempts <= 0 {
		errs = append(errs, fmt.Errorf("catalog.fetch_attempts must be positive, got %d", c.Catalog.FetchAttempts))
	}
	if c.Catalog.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("catalog.fetch_timeout must be positive, got %d", c.Catalog.FetchTimeout))
	}
	if c.Catalog.LookupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("catalog.lookup_timeout must be positive, got %d", c.Catalog.LookupTimeout))
	}
	if !contains(logLevels, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", logLevels))
	}
	if !contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", logFormats))
	}
	if c.Shutdown.IfIdle && c.Shutdown.IdleInterval <= 0 {
		errs = append(errs, errors.New("shutdown.idle_interval must be positive when shutdown.if_idle is set"))
	}
	if c.State.MaxAge < 0 {
		errs = append(errs, errors.New("state.max_age must not be negative"))
	}
	if c.Local.ReadyAttempts <= 0 {
		errs = append(errs, fmt.Errorf("local.ready_attempts must be positive, got %d", c.Local.ReadyAttempts))
	}

	return errors.Join(errs...)
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// TickInterval is Network.Rate as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Network.Rate) * time.Millisecond
}

// HeartbeatInterval is Network.MasterUpdateRate as a duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Network.MasterUpdateRate) * time.Second
}

// IdleInterval is Shutdown.IdleInterval as a duration.
func (c *Config) IdleInterval() time.Duration {
	return time.Duration(c.Shutdown.IdleInterval) * time.Second
}

// FetchTimeout is Catalog.FetchTimeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Catalog.FetchTimeout) * time.Second
}

// LookupTimeout is Catalog.LookupTimeout as a duration.
func (c *Config) LookupTimeout() time.Duration {
	return time.Duration(c.Catalog.LookupTimeout) * time.Second
}

// StateMaxAge is State.MaxAge as a duration.
func (c *Config) StateMaxAge() time.Duration {
	return time.Duration(c.State.MaxAge) * time.Second
}

// HomePath resolves a path relative to Home. Absolute and empty paths
// are returned unchanged.
func (c *Config) HomePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Home, path)
}
