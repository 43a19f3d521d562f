package config

import (
	"strconv"
	"time"

	"github.com/mnemohq/mnemo/pkg/gateway"
	"github.com/mnemohq/mnemo/pkg/redact"
)

// Config represents the persistent mnemo configuration stored as config.toml
// in the .mnemo/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	State    StateConfig    `toml:"state"`
	Memstore MemstoreConfig `toml:"memstore"`
	API      APIConfig      `toml:"api"`
	Client   ClientConfig   `toml:"client"`
	Gateway  GatewayConfig  `toml:"gateway"`
	Redact   RedactConfig   `toml:"redact"`
	Events   EventsConfig   `toml:"events"`
}

// StateConfig holds shared coordination state store settings.
type StateConfig struct {
	// Provider is one of inmemory, redis, sqlite, postgres.
	Provider string `toml:"provider,omitempty"`

	// Target is provider-specific: redis host:port, sqlite path, or
	// postgres connection string.
	Target string `toml:"target,omitempty"`
}

// MemstoreConfig holds settings for the external memory service.
type MemstoreConfig struct {
	Target string `toml:"target,omitempty"`
	APIKey string `toml:"api_key,omitempty"`
}

// APIConfig holds admin API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// mnemo API server. Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// GatewayConfig holds the mode flags and the tuning knobs of the
// degradation machinery. Durations are expressed in the unit their name
// carries so the TOML stays plain integers.
type GatewayConfig struct {
	WritesEnabled bool `toml:"writes_enabled"`
	ReadsEnabled  bool `toml:"reads_enabled"`

	HoldSeconds            uint `toml:"hold_seconds,omitempty"`
	FailureWindowSeconds   uint `toml:"failure_window_seconds,omitempty"`
	FailureThreshold       uint `toml:"failure_threshold,omitempty"`
	FetchTimeoutMillis     uint `toml:"fetch_timeout_ms,omitempty"`
	ProbeTimeoutMillis     uint `toml:"probe_timeout_ms,omitempty"`
	CachePositiveSeconds   uint `toml:"cache_positive_ttl_seconds,omitempty"`
	CacheNegativeSeconds   uint `toml:"cache_negative_ttl_seconds,omitempty"`
	Workers                uint `toml:"workers,omitempty"`
	QueueSize              uint `toml:"queue_size,omitempty"`
}

// RedactConfig toggles the redaction passes.
type RedactConfig struct {
	Email   bool `toml:"email"`
	Phone   bool `toml:"phone"`
	Address bool `toml:"address"`
}

// EventsConfig holds event stream settings.
type EventsConfig struct {
	// Provider is one of nop, kafka.
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma-separated list of Kafka bootstrap brokers.
	Brokers string `toml:"brokers,omitempty"`

	Topic string `toml:"topic,omitempty"`
}

// BaseMode derives the configured gateway mode.
func (c *Config) BaseMode() gateway.Mode {
	return gateway.BaseMode(c.Gateway.WritesEnabled, c.Gateway.ReadsEnabled)
}

// RedactOptions converts the section into the redaction pipeline's config.
func (c *Config) RedactOptions() redact.Config {
	return redact.Config{
		Email:   c.Redact.Email,
		Phone:   c.Redact.Phone,
		Address: c.Redact.Address,
	}
}

// Hold returns the forced-mode hold duration.
func (c *Config) Hold() time.Duration {
	return time.Duration(c.Gateway.HoldSeconds) * time.Second
}

// FailureWindow returns the failure streak expiry window.
func (c *Config) FailureWindow() time.Duration {
	return time.Duration(c.Gateway.FailureWindowSeconds) * time.Second
}

// FetchTimeout returns the ordinary fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Gateway.FetchTimeoutMillis) * time.Millisecond
}

// ProbeTimeout returns the recovery probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Gateway.ProbeTimeoutMillis) * time.Millisecond
}

// CachePositiveTTL returns the positive cache TTL.
func (c *Config) CachePositiveTTL() time.Duration {
	return time.Duration(c.Gateway.CachePositiveSeconds) * time.Second
}

// CacheNegativeTTL returns the negative cache TTL.
func (c *Config) CacheNegativeTTL() time.Duration {
	return time.Duration(c.Gateway.CacheNegativeSeconds) * time.Second
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func boolKey(get func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*get(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*get(c) = b
			return nil
		},
	}
}

func uintKey(get func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatUint(uint64(*get(c)), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return err
			}
			*get(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"state.provider": {
		get: func(c *Config) string { return c.State.Provider },
		set: func(c *Config, v string) error { c.State.Provider = v; return nil },
	},
	"state.target": {
		get: func(c *Config) string { return c.State.Target },
		set: func(c *Config, v string) error { c.State.Target = v; return nil },
	},
	"memstore.target": {
		get: func(c *Config) string { return c.Memstore.Target },
		set: func(c *Config, v string) error { c.Memstore.Target = v; return nil },
	},
	"memstore.api_key": {
		get: func(c *Config) string { return c.Memstore.APIKey },
		set: func(c *Config, v string) error { c.Memstore.APIKey = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"gateway.writes_enabled":     boolKey(func(c *Config) *bool { return &c.Gateway.WritesEnabled }),
	"gateway.reads_enabled":      boolKey(func(c *Config) *bool { return &c.Gateway.ReadsEnabled }),
	"gateway.hold_seconds":       uintKey(func(c *Config) *uint { return &c.Gateway.HoldSeconds }),
	"gateway.failure_threshold":  uintKey(func(c *Config) *uint { return &c.Gateway.FailureThreshold }),
	"gateway.workers":            uintKey(func(c *Config) *uint { return &c.Gateway.Workers }),
	"gateway.queue_size":         uintKey(func(c *Config) *uint { return &c.Gateway.QueueSize }),
	"redact.email":               boolKey(func(c *Config) *bool { return &c.Redact.Email }),
	"redact.phone":               boolKey(func(c *Config) *bool { return &c.Redact.Phone }),
	"redact.address":             boolKey(func(c *Config) *bool { return &c.Redact.Address }),
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
