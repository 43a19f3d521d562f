// Package servecmder provides the serve command for running the gateway and
// its admin API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/api"
	"github.com/mnemohq/mnemo/pkg/config"
	"github.com/mnemohq/mnemo/pkg/eventstream"
	"github.com/mnemohq/mnemo/pkg/eventstream/kafka"
	"github.com/mnemohq/mnemo/pkg/eventstream/nop"
	"github.com/mnemohq/mnemo/pkg/gateway"
	"github.com/mnemohq/mnemo/pkg/logger"
	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/statestore/factory"
)

type ServeCommander struct {
	listen         string
	stateProvider  string
	stateTarget    string
	memstoreTarget string
	debug          bool
	configDir      string
	logger         *zap.Logger
}

const serveLongDesc string = `Run the mnemo gateway.

Starts the admin API server and the async write pool. The gateway itself is
called in-process by the orchestrator; the API exposes status, manual mode
control, cache busting, and prometheus metrics.

Examples:
  mnemo serve
  mnemo serve --listen :8082 --state-provider redis --state-target localhost:6379`

const serveShortDesc string = "Run the mnemo gateway"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagAPIListen,
				config.FlagStateProvider,
				config.FlagStateTarget,
				config.FlagMemstoreTarget,
			})

			return cmder.run(config.FromViper(v))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStateProvider, &cmder.stateProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagStateTarget, &cmder.stateTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagMemstoreTarget, &cmder.memstoreTarget)

	return cmd
}

func (c *ServeCommander) run(cfg *config.Config) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	ctx := context.Background()

	// Shared coordination state store
	store, err := factory.Open(ctx, cfg.State.Provider, cfg.State.Target)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer store.Close()

	c.logger.Info("using state store",
		zap.String("provider", cfg.State.Provider),
		zap.String("target", cfg.State.Target),
	)

	// Memory service client
	client, err := memstore.NewHTTPClient(memstore.Config{
		Target: cfg.Memstore.Target,
		APIKey: cfg.Memstore.APIKey,
	})
	if err != nil {
		return fmt.Errorf("creating memory service client: %w", err)
	}

	// Event stream
	events, err := c.createPublisher(cfg)
	if err != nil {
		return err
	}
	defer events.Close()

	// Live base mode from the config file, hot-reloaded on change
	configer, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving config: %w", err)
	}
	modeSource, err := config.NewModeSource(configer, c.logger)
	if err != nil {
		return fmt.Errorf("watching config: %w", err)
	}
	defer modeSource.Close()

	// Metrics registry, also serving the runtime collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gw, err := gateway.New(gateway.Config{
		Store:            store,
		Client:           client,
		Events:           events,
		Metrics:          gateway.NewMetrics(registry),
		Logger:           c.logger,
		BaseMode:         modeSource.BaseMode,
		Redact:           cfg.RedactOptions(),
		FetchTimeout:     cfg.FetchTimeout(),
		ProbeTimeout:     cfg.ProbeTimeout(),
		Hold:             cfg.Hold(),
		FailureWindow:    cfg.FailureWindow(),
		FailureThreshold: int64(cfg.Gateway.FailureThreshold),
		CachePositiveTTL: cfg.CachePositiveTTL(),
		CacheNegativeTTL: cfg.CacheNegativeTTL(),
		NumWorkers:       cfg.Gateway.Workers,
		QueueSize:        cfg.Gateway.QueueSize,
	})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	defer gw.Close()

	c.logger.Info("gateway ready",
		zap.String("base_mode", string(modeSource.BaseMode())),
		zap.String("memstore", cfg.Memstore.Target),
	)

	apiServer := api.NewServer(api.Config{ListenAddr: cfg.API.Listen}, gw, registry, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		if err := apiServer.Shutdown(); err != nil {
			c.logger.Warn("API server shutdown failed", zap.Error(err))
		}
		return nil
	}
}

func (c *ServeCommander) createPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	switch cfg.Events.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil

	case "kafka":
		publisher, err := kafka.NewPublisher(kafka.Config{
			Brokers: strings.Split(cfg.Events.Brokers, ","),
			Topic:   cfg.Events.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		c.logger.Info("publishing events to kafka",
			zap.String("brokers", cfg.Events.Brokers),
			zap.String("topic", cfg.Events.Topic),
		)
		return publisher, nil

	default:
		return nil, fmt.Errorf("unknown events provider %q (available: nop, kafka)", cfg.Events.Provider)
	}
}
