// Package config defines the YAML-driven configuration for the sliding
// sync client, following the same struct-tag-and-Defaults() convention
// dendrite uses for its own per-component config sections.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/matrix-org/sliding-sync-client/sync3"
	"gopkg.in/yaml.v2"
)

// Config is the root configuration document for a sync client process.
type Config struct {
	// HomeserverURL is the base URL of the homeserver or sliding-sync
	// proxy the client talks to, e.g. "https://matrix-client.matrix.org".
	HomeserverURL string `yaml:"homeserver_url"`

	// AccessToken authenticates requests. Required.
	AccessToken string `yaml:"access_token"`

	// TimeoutMS is the server-side long-poll duration requested on every
	// sliding sync round trip, in milliseconds. ClientTimeout is derived
	// from this by the engine (see sync3.BufferPeriod), not configured
	// separately.
	TimeoutMS int `yaml:"timeout_ms"`

	// BackoffMS is how long the engine sleeps after a non-abort polling
	// error before retrying. Zero means sync3.DefaultBackoff.
	BackoffMS int `yaml:"backoff_ms"`

	// LogLevel is one of trace/debug/info/warn/error, passed straight
	// to internal.ConfigureLogging.
	LogLevel string `yaml:"log_level"`

	// Lists are the sliding lists to open on startup, keyed by
	// their wire index (list 0 first, list 1 second, and so on).
	Lists []ListOptions `yaml:"lists"`

	// Extensions toggles the built-in extensions.
	Extensions ExtensionOptions `yaml:"extensions"`
}

// ListOptions describes one sliding list to configure at startup.
type ListOptions struct {
	Ranges        [][2]int `yaml:"ranges"`
	Sort          []string `yaml:"sort,omitempty"`
	TimelineLimit int      `yaml:"timeline_limit,omitempty"`
}

// ExtensionOptions toggles the four built-in extensions shipped in
// sync3/extensions.
type ExtensionOptions struct {
	ToDevice    ToDeviceOptions    `yaml:"to_device"`
	AccountData AccountDataOptions `yaml:"account_data"`
	Typing      ToggleOptions      `yaml:"typing"`
	E2EE        ToggleOptions      `yaml:"e2ee"`
}

// ToggleOptions is the common shape of an extension with no parameters
// beyond enablement.
type ToggleOptions struct {
	Enabled bool `yaml:"enabled"`
}

// ToDeviceOptions configures the to_device extension.
type ToDeviceOptions struct {
	Enabled bool `yaml:"enabled"`
	Limit   int  `yaml:"limit,omitempty"`
}

// AccountDataOptions configures the account_data extension's room
// targeting. Nil Lists/Rooms mean wildcard, matching the reserved
// extension-key convention.
type AccountDataOptions struct {
	Enabled bool     `yaml:"enabled"`
	Lists   []string `yaml:"lists,omitempty"`
	Rooms   []string `yaml:"rooms,omitempty"`
}

// Defaults populates the zero-value fields of c with sane client
// defaults, mirroring the Defaults() convention used throughout
// dendrite's setup/config package.
func (c *Config) Defaults() {
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 10000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Verify checks the fields Defaults cannot safely fill in on its own.
func (c *Config) Verify() error {
	if c.HomeserverURL == "" {
		return fmt.Errorf("homeserver_url is required")
	}
	if c.AccessToken == "" {
		return fmt.Errorf("access_token is required")
	}
	return nil
}

// Load reads and parses a YAML config document from path, applies
// Defaults to any field left unset, and Verifies the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	c.Defaults()
	if err := c.Verify(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

// EngineConfig translates the client's poll timeout, backoff and list
// knobs into a sync3.EngineConfig. Transport is left for the caller to
// fill in, since it depends on a live transport.HTTPTransport.
func (c *Config) EngineConfig() sync3.EngineConfig {
	cfg := sync3.EngineConfig{
		PollTimeout: time.Duration(c.TimeoutMS) * time.Millisecond,
		BaseURL:     c.HomeserverURL,
	}
	if c.BackoffMS > 0 {
		cfg.Backoff = time.Duration(c.BackoffMS) * time.Millisecond
	}
	for _, lo := range c.Lists {
		cfg.Lists = append(cfg.Lists, lo.ListParams())
	}
	return cfg
}

// ListParams converts one ListOptions into the wire-level sync3.ListParams
// the engine expects at construction time.
func (lo ListOptions) ListParams() sync3.ListParams {
	ranges := make([]sync3.Range, len(lo.Ranges))
	for i, r := range lo.Ranges {
		ranges[i] = sync3.Range{r[0], r[1]}
	}
	params := sync3.ListParams{Ranges: ranges, Sort: lo.Sort}
	if lo.TimelineLimit > 0 {
		limit := lo.TimelineLimit
		params.TimelineLimit = &limit
	}
	return params
}
