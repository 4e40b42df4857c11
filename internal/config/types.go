package config

import "time"

// ServerConfig locates the backend API.
type ServerConfig struct {
	// BaseURL is the API root, e.g. http://localhost:3000/api.
	BaseURL string `yaml:"base_url"`
	// Timeout bounds one-shot API calls. The event stream has no timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// DispatchConfig controls how imported games are submitted.
type DispatchConfig struct {
	Delay    time.Duration `yaml:"delay"`
	Priority int           `yaml:"priority"`
}

// StreamConfig controls the push-update subscription.
type StreamConfig struct {
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	// RefreshDelay is how long to wait after a launch reaches 100% before
	// re-fetching the full collection.
	RefreshDelay time.Duration `yaml:"refresh_delay"`
	// MaxReconnectAttempts ends the subscription after this many
	// consecutive failed connections. 0 retries forever.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`
}

// MergeConfig selects the conflict policy for server updates.
type MergeConfig struct {
	Policy string `yaml:"policy"`
}

// LogConfig sets the minimum log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Config represents the .gamecheck/config.yaml file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Stream   StreamConfig   `yaml:"stream"`
	Merge    MergeConfig    `yaml:"merge"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}
