// watcher.go: hot reload of runtime settings via file watching
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds the manager settings that may change while the
// host runs. Durations are strings in Go syntax ("5s", "250ms").
type RuntimeConfig struct {
	// DeactivationTimeout bounds the deactivate hook.
	DeactivationTimeout string `json:"deactivation_timeout,omitempty" yaml:"deactivation_timeout,omitempty"`

	// LogLevel is advisory for hosts that route it into their logger.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// RuntimeWatcherOptions tunes the file watcher.
type RuntimeWatcherOptions struct {
	// PollInterval is how often the config file is checked. Zero selects
	// one second.
	PollInterval time.Duration

	// CacheTTL bounds stat caching inside the watcher. Zero selects half
	// the poll interval.
	CacheTTL time.Duration

	// ErrorHandler receives watch errors. Defaults to logging.
	ErrorHandler func(err error, path string)
}

// RuntimeConfigWatcher applies runtime configuration changes to a
// Manager without restarting the host. The file may be JSON or YAML.
type RuntimeConfigWatcher struct {
	manager    *Manager
	logger     Logger
	watcher    *argus.Watcher
	configPath string

	current atomic.Pointer[RuntimeConfig]

	enabled  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	mutex    sync.Mutex
}

// NewRuntimeConfigWatcher creates a watcher for the given config file.
func NewRuntimeConfigWatcher(manager *Manager, configPath string, options RuntimeWatcherOptions) (*RuntimeConfigWatcher, error) {
	if manager == nil {
		return nil, NewRuntimeConfigError("manager is required", nil)
	}
	logger := manager.logger

	pollInterval := options.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	cacheTTL := options.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = pollInterval / 2
	}

	errorHandler := options.ErrorHandler
	if errorHandler == nil {
		errorHandler = func(err error, path string) {
			logger.Error("Runtime config watch error", "error", err, "file", path)
		}
	}

	watcher := argus.New(argus.Config{
		PollInterval:         pollInterval,
		CacheTTL:             cacheTTL,
		MaxWatchedFiles:      2,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler:         errorHandler,
	})

	return &RuntimeConfigWatcher{
		manager:    manager,
		logger:     logger,
		watcher:    watcher,
		configPath: configPath,
	}, nil
}

// Start loads and applies the initial configuration, then begins
// watching the file for changes.
func (w *RuntimeConfigWatcher) Start(ctx context.Context) error {
	if w.stopped.Load() {
		return NewRuntimeConfigError("watcher has been stopped and cannot be restarted", nil)
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.enabled.CompareAndSwap(false, true) {
		return NewRuntimeConfigError("watcher is already running", nil)
	}

	initial, err := w.loadConfigFile()
	if err != nil {
		w.enabled.Store(false)
		return err
	}
	if err := w.apply(initial); err != nil {
		w.enabled.Store(false)
		return err
	}
	w.current.Store(initial)

	if err := w.watcher.Watch(w.configPath, w.handleChange); err != nil {
		w.enabled.Store(false)
		return NewRuntimeConfigError("watch registration failed", err)
	}
	if err := w.watcher.Start(); err != nil {
		w.enabled.Store(false)
		return NewRuntimeConfigError("watcher start failed", err)
	}

	w.logger.Info("Runtime config watcher started", "config_path", w.configPath)
	return nil
}

// Stop halts watching permanently.
func (w *RuntimeConfigWatcher) Stop() error {
	if w.stopped.Load() {
		return nil
	}

	var stopErr error
	w.stopOnce.Do(func() {
		w.mutex.Lock()
		defer w.mutex.Unlock()

		if !w.enabled.CompareAndSwap(true, false) {
			return
		}
		w.stopped.Store(true)

		if err := w.watcher.Stop(); err != nil {
			stopErr = NewRuntimeConfigError("watcher stop failed", err)
			return
		}
		w.logger.Info("Runtime config watcher stopped")
	})
	return stopErr
}

// IsRunning reports whether the watcher is active.
func (w *RuntimeConfigWatcher) IsRunning() bool {
	return w.enabled.Load() && !w.stopped.Load()
}

// CurrentConfig returns the last applied configuration.
func (w *RuntimeConfigWatcher) CurrentConfig() *RuntimeConfig {
	return w.current.Load()
}

// handleChange reloads and applies the file after a detected change. A
// config that fails to parse or apply is logged and skipped; the previous
// settings stay in effect.
func (w *RuntimeConfigWatcher) handleChange(event argus.ChangeEvent) {
	w.logger.Info("Runtime config change detected", "path", event.Path)

	config, err := w.loadConfigFile()
	if err != nil {
		w.logger.Error("Runtime config reload failed", "error", err)
		return
	}
	if err := w.apply(config); err != nil {
		w.logger.Error("Runtime config apply failed", "error", err)
		return
	}
	w.current.Store(config)
}

// loadConfigFile parses the config file, JSON first, then YAML.
func (w *RuntimeConfigWatcher) loadConfigFile() (*RuntimeConfig, error) {
	data, err := os.ReadFile(w.configPath) // #nosec G304 -- host-supplied config path
	if err != nil {
		return nil, NewRuntimeConfigError("read failed", err)
	}

	var config RuntimeConfig
	if jsonErr := json.Unmarshal(data, &config); jsonErr != nil {
		config = RuntimeConfig{}
		if yamlErr := yaml.Unmarshal(data, &config); yamlErr != nil {
			return nil, NewRuntimeConfigError("parse failed", yamlErr)
		}
	}
	return &config, nil
}

// apply pushes parsed settings into the manager.
func (w *RuntimeConfigWatcher) apply(config *RuntimeConfig) error {
	if config.DeactivationTimeout != "" {
		timeout, err := time.ParseDuration(config.DeactivationTimeout)
		if err != nil {
			return NewRuntimeConfigError("invalid deactivation_timeout", err)
		}
		w.manager.SetDeactivationTimeout(timeout)
	}
	if config.LogLevel != "" {
		w.logger.Info("Log level setting updated", "log_level", config.LogLevel)
	}
	return nil
}
