package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/gateway"
)

// Server is the admin API server for a running mnemo gateway.
type Server struct {
	config  Config
	gateway *gateway.Gateway
	logger  *zap.Logger
	app     *fiber.App
}

// NewServer creates a new API server. The gateway is injected so the server
// shares mode state, cache, and metrics with the serving process. registry
// backs the /metrics endpoint.
func NewServer(config Config, gw *gateway.Gateway, registry *prometheus.Registry, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		gateway: gw,
		logger:  logger,
		app:     app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/status", s.handleStatus)
	app.Post("/mode/force", s.handleForce)
	app.Post("/mode/clear", s.handleClear)
	app.Delete("/cache/:conversation_id", s.handleInvalidate)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
