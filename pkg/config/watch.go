package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/gateway"
)

// ModeSource serves the gateway's base mode from the live config file.
// When config.toml changes on disk the capability flags are re-read, so an
// operator can flip reads or writes off without restarting the process.
// Only the [gateway] and [redact] booleans are hot; listen addresses and
// store targets still require a restart.
type ModeSource struct {
	configer *Configer
	logger   *zap.Logger

	mu      sync.RWMutex
	current *Config

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewModeSource loads the config and, when a config file exists, starts
// watching its directory for changes. Watching the directory rather than
// the file survives the rename-and-replace dance most editors do on save.
func NewModeSource(configer *Configer, logger *zap.Logger) (*ModeSource, error) {
	cfg, err := configer.LoadConfig()
	if err != nil {
		return nil, err
	}

	s := &ModeSource{
		configer: configer,
		logger:   logger,
		current:  cfg,
		done:     make(chan struct{}),
	}

	path := configer.GetTarget()
	if path == "" {
		return s, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	s.watcher = watcher
	go s.watch(filepath.Base(path))

	return s, nil
}

// BaseMode returns the currently configured base mode.
func (s *ModeSource) BaseMode() gateway.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.BaseMode()
}

// Config returns the current config snapshot.
func (s *ModeSource) Config() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Close stops the file watcher.
func (s *ModeSource) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *ModeSource) watch(filename string) {
	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s.reload()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("config watch error", zap.Error(err))
		}
	}
}

func (s *ModeSource) reload() {
	cfg, err := s.configer.LoadConfig()
	if err != nil {
		s.logger.Warn("config reload failed, keeping previous config", zap.Error(err))
		return
	}

	s.mu.Lock()
	prev := s.current.BaseMode()
	s.current = cfg
	next := cfg.BaseMode()
	s.mu.Unlock()

	if prev != next {
		s.logger.Info("base mode changed by config reload",
			zap.String("prev_mode", string(prev)),
			zap.String("next_mode", string(next)),
		)
	} else {
		s.logger.Debug("config reloaded")
	}
}
