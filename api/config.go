// Package api provides the HTTP admin and ops surface for a running mnemo
// gateway: status, manual mode control, cache busting, and metrics.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8082")
	ListenAddr string
}
