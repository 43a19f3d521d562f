package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/mnemohq/mnemo/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the MNEMO_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (MNEMO_API_LISTEN, MNEMO_STATE_PROVIDER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: MNEMO_API_LISTEN, MNEMO_MEMSTORE_API_KEY, etc.
	v.SetEnvPrefix("MNEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from the viper precedence chain.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		State: StateConfig{
			Provider: v.GetString("state.provider"),
			Target:   v.GetString("state.target"),
		},
		Memstore: MemstoreConfig{
			Target: v.GetString("memstore.target"),
			APIKey: v.GetString("memstore.api_key"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Client: ClientConfig{
			APITarget: v.GetString("client.api_target"),
		},
		Gateway: GatewayConfig{
			WritesEnabled:        v.GetBool("gateway.writes_enabled"),
			ReadsEnabled:         v.GetBool("gateway.reads_enabled"),
			HoldSeconds:          v.GetUint("gateway.hold_seconds"),
			FailureWindowSeconds: v.GetUint("gateway.failure_window_seconds"),
			FailureThreshold:     v.GetUint("gateway.failure_threshold"),
			FetchTimeoutMillis:   v.GetUint("gateway.fetch_timeout_ms"),
			ProbeTimeoutMillis:   v.GetUint("gateway.probe_timeout_ms"),
			CachePositiveSeconds: v.GetUint("gateway.cache_positive_ttl_seconds"),
			CacheNegativeSeconds: v.GetUint("gateway.cache_negative_ttl_seconds"),
			Workers:              v.GetUint("gateway.workers"),
			QueueSize:            v.GetUint("gateway.queue_size"),
		},
		Redact: RedactConfig{
			Email:   v.GetBool("redact.email"),
			Phone:   v.GetBool("redact.phone"),
			Address: v.GetBool("redact.address"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetString("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// State store
	v.SetDefault("state.provider", d.State.Provider)
	v.SetDefault("state.target", d.State.Target)

	// Memory service
	v.SetDefault("memstore.target", d.Memstore.Target)
	v.SetDefault("memstore.api_key", d.Memstore.APIKey)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)

	// Gateway
	v.SetDefault("gateway.writes_enabled", d.Gateway.WritesEnabled)
	v.SetDefault("gateway.reads_enabled", d.Gateway.ReadsEnabled)
	v.SetDefault("gateway.hold_seconds", d.Gateway.HoldSeconds)
	v.SetDefault("gateway.failure_window_seconds", d.Gateway.FailureWindowSeconds)
	v.SetDefault("gateway.failure_threshold", d.Gateway.FailureThreshold)
	v.SetDefault("gateway.fetch_timeout_ms", d.Gateway.FetchTimeoutMillis)
	v.SetDefault("gateway.probe_timeout_ms", d.Gateway.ProbeTimeoutMillis)
	v.SetDefault("gateway.cache_positive_ttl_seconds", d.Gateway.CachePositiveSeconds)
	v.SetDefault("gateway.cache_negative_ttl_seconds", d.Gateway.CacheNegativeSeconds)
	v.SetDefault("gateway.workers", d.Gateway.Workers)
	v.SetDefault("gateway.queue_size", d.Gateway.QueueSize)

	// Redaction
	v.SetDefault("redact.email", d.Redact.Email)
	v.SetDefault("redact.phone", d.Redact.Phone)
	v.SetDefault("redact.address", d.Redact.Address)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}
