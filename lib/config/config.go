// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/livyctl/lib/endpoint"
	"github.com/bureau-foundation/livyctl/lib/secret"
	"github.com/bureau-foundation/livyctl/lib/session"
)

// EnvVar names the environment variable Load reads.
const EnvVar = "LIVYCTL_CONFIG"

// Config is the livyctl configuration file.
type Config struct {
	// StateDir holds the per-session state files.
	StateDir string `yaml:"state_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Endpoints are the job servers, by name.
	Endpoints map[string]EndpointConfig `yaml:"endpoints"`

	Defaults DefaultsConfig   `yaml:"defaults"`
	Polling  PollingConfig    `yaml:"polling"`
	Retry    RetryConfig      `yaml:"retry"`
	Sampling session.Sampling `yaml:"sampling"`
}

// EndpointConfig describes one job server.
type EndpointConfig struct {
	URL string `yaml:"url"`

	// Auth is none or basic. Empty infers basic when a username is set.
	Auth     string `yaml:"auth"`
	Username string `yaml:"username"`

	// PasswordFile holds the basic-auth password on its first line.
	// "-" reads it from stdin.
	PasswordFile string `yaml:"password_file"`
}

// DefaultsConfig selects what a command uses when no flag overrides it.
type DefaultsConfig struct {
	// Endpoint names an entry of Endpoints.
	Endpoint string `yaml:"endpoint"`

	Language string `yaml:"language"`

	// SessionName is the logical name of the kernel's session. Empty
	// generates a unique name on first use.
	SessionName string `yaml:"session_name"`

	// SessionConfig is passed to the job server on session creation.
	SessionConfig map[string]any `yaml:"session_config"`
}

// PollingConfig bounds waits on the job server.
type PollingConfig struct {
	StartTimeout     time.Duration `yaml:"start_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	InitialInterval  time.Duration `yaml:"initial_interval"`
	MaxInterval      time.Duration `yaml:"max_interval"`
}

// RetryConfig bounds retries of idempotent requests.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// Default returns the built-in configuration. Loading a file merges
// over it.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		StateDir:  filepath.Join(homeDir, ".cache", "livyctl"),
		LogLevel:  "info",
		Endpoints: map[string]EndpointConfig{},
		Defaults: DefaultsConfig{
			Language: string(session.LanguagePython),
		},
		Polling: PollingConfig{
			StartTimeout:    60 * time.Second,
			InitialInterval: 250 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     8 * time.Second,
		},
		Sampling: session.DefaultSampling(),
	}
}

// Load loads configuration from the file named by LIVYCTL_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your livyctl.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths
// and URLs.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.StateDir = expandVars(c.StateDir, vars)
	vars["LIVYCTL_STATE"] = c.StateDir

	for name, ep := range c.Endpoints {
		ep.URL = expandVars(ep.URL, vars)
		ep.Username = expandVars(ep.Username, vars)
		ep.PasswordFile = expandVars(ep.PasswordFile, vars)
		c.Endpoints[name] = ep
	}
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

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.StateDir == "" {
		errs = append(errs, fmt.Errorf("state_dir is required"))
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	for _, name := range c.EndpointNames() {
		ep := c.Endpoints[name]
		if ep.URL == "" {
			errs = append(errs, fmt.Errorf("endpoints.%s.url is required", name))
		}
		switch ep.Auth {
		case "", string(endpoint.AuthNone), string(endpoint.AuthBasic):
		default:
			errs = append(errs, fmt.Errorf("endpoints.%s.auth must be one of: [none basic]", name))
		}
		if ep.Auth == string(endpoint.AuthBasic) && ep.Username == "" {
			errs = append(errs, fmt.Errorf("endpoints.%s.username is required for basic auth", name))
		}
	}

	if c.Defaults.Endpoint != "" {
		if _, ok := c.Endpoints[c.Defaults.Endpoint]; !ok {
			errs = append(errs, fmt.Errorf("defaults.endpoint %q is not defined under endpoints", c.Defaults.Endpoint))
		}
	}
	if _, err := session.ParseLanguage(c.Defaults.Language); err != nil {
		errs = append(errs, fmt.Errorf("defaults.language: %w", err))
	}
	if _, err := c.SessionConfig(); err != nil {
		errs = append(errs, fmt.Errorf("defaults.session_config: %w", err))
	}

	if c.Polling.StartTimeout <= 0 {
		errs = append(errs, fmt.Errorf("polling.start_timeout must be positive"))
	}
	if c.Polling.StatementTimeout < 0 {
		errs = append(errs, fmt.Errorf("polling.statement_timeout must not be negative"))
	}
	if c.Polling.InitialInterval <= 0 || c.Polling.MaxInterval < c.Polling.InitialInterval {
		errs = append(errs, fmt.Errorf("polling intervals must be positive with max_interval >= initial_interval"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1"))
	}
	if err := c.Sampling.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sampling: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EndpointNames returns the configured endpoint names, sorted.
func (c *Config) EndpointNames() []string {
	names := make([]string, 0, len(c.Endpoints))
	for name := range c.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Endpoint builds the named endpoint, or the default one when name is
// empty. The password file, if any, is read into a locked buffer that
// the returned endpoint owns.
func (c *Config) Endpoint(name string) (*endpoint.Endpoint, error) {
	if name == "" {
		name = c.Defaults.Endpoint
	}
	if name == "" {
		if len(c.Endpoints) != 1 {
			return nil, fmt.Errorf("no endpoint selected: set defaults.endpoint or pass a connection string")
		}
		name = c.EndpointNames()[0]
	}
	ep, ok := c.Endpoints[name]
	if !ok {
		return nil, fmt.Errorf("endpoint %q is not configured (configured: %v)", name, c.EndpointNames())
	}

	var password *secret.Buffer
	if ep.PasswordFile != "" {
		var err error
		password, err = secret.ReadFromPath(ep.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: reading password: %w", name, err)
		}
	}
	built, err := endpoint.New(endpoint.Config{
		URL:      ep.URL,
		Auth:     endpoint.Auth(ep.Auth),
		Username: ep.Username,
		Password: password,
	})
	if err != nil {
		if password != nil {
			password.Close()
		}
		return nil, err
	}
	return built, nil
}

// SessionConfig returns the default session configuration.
func (c *Config) SessionConfig() (session.Config, error) {
	if len(c.Defaults.SessionConfig) == 0 {
		return session.Config{}, nil
	}
	return session.FromMap(c.Defaults.SessionConfig)
}

// ParseLogLevel maps a log_level value to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level must be one of: [debug info warn error], got %q", level)
}

// EnsureStateDir creates the state directory if it does not exist.
func (c *Config) EnsureStateDir() error {
	if err := os.MkdirAll(c.StateDir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", c.StateDir, err)
	}
	return nil
}
