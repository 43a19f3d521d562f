package config

const (
	defaultStateProvider = "inmemory"

	defaultMemstoreTarget = "http://localhost:7700"

	defaultAPIListen       = ":8082"
	defaultClientAPITarget = "http://localhost:8082"

	defaultHoldSeconds          = 300
	defaultFailureWindowSeconds = 60
	defaultFailureThreshold     = 3
	defaultFetchTimeoutMillis   = 250
	defaultProbeTimeoutMillis   = 150
	defaultCachePositiveSeconds = 30
	defaultCacheNegativeSeconds = 3
	defaultWorkers              = 3
	defaultQueueSize            = 256

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "mnemo.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		State: StateConfig{
			Provider: defaultStateProvider,
		},
		Memstore: MemstoreConfig{
			Target: defaultMemstoreTarget,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Gateway: GatewayConfig{
			WritesEnabled:        true,
			ReadsEnabled:         true,
			HoldSeconds:          defaultHoldSeconds,
			FailureWindowSeconds: defaultFailureWindowSeconds,
			FailureThreshold:     defaultFailureThreshold,
			FetchTimeoutMillis:   defaultFetchTimeoutMillis,
			ProbeTimeoutMillis:   defaultProbeTimeoutMillis,
			CachePositiveSeconds: defaultCachePositiveSeconds,
			CacheNegativeSeconds: defaultCacheNegativeSeconds,
			Workers:              defaultWorkers,
			QueueSize:            defaultQueueSize,
		},
		Redact: RedactConfig{
			Email:   true,
			Phone:   true,
			Address: false,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
