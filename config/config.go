package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
	"unicode"

	"github.com/c360/telelog/errors"
)

// Default values applied by ApplyDefaults.
const (
	DefaultContextName        = "default"
	DefaultClosedWarnInterval = 10 * time.Second
	DefaultNATSReconnectWait  = 2 * time.Second
	DefaultNATSMaxReconnects  = 60
	DefaultViewerAddr         = "127.0.0.1:8765"
)

// Config is the complete SDK configuration: registry identity, staging
// buffer storage, and the optional live sinks.
type Config struct {
	Context ContextConfig `json:"context"`
	Staging StagingConfig `json:"staging,omitempty"`
	NATS    NATSConfig    `json:"nats,omitempty"`
	Viewer  ViewerConfig  `json:"viewer,omitempty"`
}

// ContextConfig names the channel registry context and tunes its advisory
// diagnostics.
type ContextConfig struct {
	Name string `json:"name,omitempty"`
	// ClosedWarnInterval throttles the log-on-closed-channel warning.
	ClosedWarnInterval time.Duration `json:"closed_warn_interval,omitempty"`
}

// StagingConfig configures the rolling staging buffer's file store.
type StagingConfig struct {
	// Dir holds segment files. Empty means a fresh temporary directory.
	Dir string `json:"dir,omitempty"`
}

// NATSConfig configures the NATS broadcast sink.
type NATSConfig struct {
	Enabled       bool          `json:"enabled"`
	URL           string        `json:"url,omitempty"`
	SubjectPrefix string        `json:"subject_prefix,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
}

// ViewerConfig configures the embedded websocket viewer sink.
type ViewerConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	// ServeHistory replays the staging buffer to clients on connect.
	ServeHistory bool `json:"serve_history,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a JSON configuration file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "Config", "Load", "read file")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse JSON")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their default values.
func (c *Config) ApplyDefaults() {
	if c.Context.Name == "" {
		c.Context.Name = DefaultContextName
	}
	if c.Context.ClosedWarnInterval == 0 {
		c.Context.ClosedWarnInterval = DefaultClosedWarnInterval
	}
	if c.NATS.ReconnectWait == 0 {
		c.NATS.ReconnectWait = DefaultNATSReconnectWait
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = DefaultNATSMaxReconnects
	}
	if c.Viewer.Addr == "" {
		c.Viewer.Addr = DefaultViewerAddr
	}
}

// Validate checks the configuration for contradictions and missing required
// values. Defaults should be applied first.
func (c *Config) Validate() error {
	if c.Context.Name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: context.name", errors.ErrMissingConfig),
			"Config", "Validate", "check context")
	}
	if c.Context.ClosedWarnInterval < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: context.closed_warn_interval must not be negative", errors.ErrInvalidConfig),
			"Config", "Validate", "check context")
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return errors.WrapInvalid(
				fmt.Errorf("%w: nats.url is required when nats.enabled", errors.ErrMissingConfig),
				"Config", "Validate", "check nats")
		}
		if c.NATS.SubjectPrefix != "" && !isValidSubjectPart(c.NATS.SubjectPrefix) {
			return errors.WrapInvalid(
				fmt.Errorf("%w: nats.subject_prefix %q is not valid in NATS subjects",
					errors.ErrInvalidConfig, c.NATS.SubjectPrefix),
				"Config", "Validate", "check nats")
		}
		if c.NATS.ReconnectWait < 0 {
			return errors.WrapInvalid(
				fmt.Errorf("%w: nats.reconnect_wait must not be negative", errors.ErrInvalidConfig),
				"Config", "Validate", "check nats")
		}
	}

	if c.Viewer.Enabled && c.Viewer.Addr == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: viewer.addr is required when viewer.enabled", errors.ErrMissingConfig),
			"Config", "Validate", "check viewer")
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	copied := *c
	return &copied
}

// isValidSubjectPart checks a string for NATS subject compatibility.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// SafeConfig provides thread-safe access to configuration.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: config cannot be nil", errors.ErrInvalidConfig),
			"SafeConfig", "Update", "replace config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
