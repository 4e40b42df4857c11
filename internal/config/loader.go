package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thruflo/gamecheck/internal/logging"
	"github.com/thruflo/gamecheck/internal/store"
)

// Default values for Config.
const (
	DefaultBaseURL           = "http://localhost:3000/api"
	DefaultTimeout           = 30 * time.Second
	DefaultDispatchDelay     = 30 * time.Second
	DefaultPriority          = 1
	RetryPriority            = 3
	DefaultReconnectInterval = 5 * time.Second
	DefaultRefreshDelay      = 2 * time.Second
	DefaultLogLevel          = "warn"
)

// Dir is the per-project configuration directory.
const Dir = ".gamecheck"

// Environment variables that override file values.
const (
	EnvServerURL   = "GAMECHECK_SERVER_URL"
	EnvLogLevel    = "GAMECHECK_LOG_LEVEL"
	EnvMetricsAddr = "GAMECHECK_METRICS_ADDR"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Dispatch: DispatchConfig{
			Delay:    DefaultDispatchDelay,
			Priority: DefaultPriority,
		},
		Stream: StreamConfig{
			ReconnectInterval: DefaultReconnectInterval,
			RefreshDelay:      DefaultRefreshDelay,
		},
		Merge: MergeConfig{Policy: string(store.PolicyLastWriteWins)},
		Log:   LogConfig{Level: DefaultLogLevel},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// LoadConfig reads .gamecheck/config.yaml from the given base path.
// If the file doesn't exist, returns default config.
func LoadConfig(basePath string) (*Config, error) {
	return LoadConfigFile(filepath.Join(basePath, Dir, "config.yaml"), true)
}

// LoadConfigFile reads and validates the config at path, applying defaults
// for missing fields. A missing file yields the defaults when optional is
// true and an error otherwise.
func LoadConfigFile(path string, optional bool) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && optional {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyEnv overrides config values from the environment. getenv is usually
// os.Getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvServerURL)); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(getenv(EnvMetricsAddr)); v != "" {
		cfg.Metrics.Addr = v
	}
}

// ValidateConfig checks that all config values are valid.
func ValidateConfig(cfg *Config) error {
	if cfg.Server.BaseURL == "" {
		return ValidationError{Field: "server.base_url", Message: "required field is empty"}
	}
	u, err := url.Parse(cfg.Server.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ValidationError{Field: "server.base_url", Message: "must be an absolute http(s) URL"}
	}
	if cfg.Server.Timeout <= 0 {
		return ValidationError{Field: "server.timeout", Message: "must be positive"}
	}
	if cfg.Dispatch.Delay < 0 {
		return ValidationError{Field: "dispatch.delay", Message: "cannot be negative"}
	}
	if cfg.Dispatch.Priority <= 0 {
		return ValidationError{Field: "dispatch.priority", Message: "must be positive"}
	}
	if cfg.Stream.ReconnectInterval <= 0 {
		return ValidationError{Field: "stream.reconnect_interval", Message: "must be positive"}
	}
	if cfg.Stream.RefreshDelay < 0 {
		return ValidationError{Field: "stream.refresh_delay", Message: "cannot be negative"}
	}
	if cfg.Stream.MaxReconnectAttempts < 0 {
		return ValidationError{Field: "stream.max_reconnect_attempts", Message: "cannot be negative"}
	}
	if _, err := store.ParsePolicy(cfg.Merge.Policy); err != nil {
		return ValidationError{Field: "merge.policy", Message: "must be last-write-wins or newest-wins"}
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return ValidationError{Field: "log.level", Message: "must be debug, info, warn or error"}
	}
	return nil
}
