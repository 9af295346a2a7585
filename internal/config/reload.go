// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/knadh/koanf/providers/file"

	"github.com/tomtom215/macroguard/internal/hysteresis"
	"github.com/tomtom215/macroguard/internal/input"
	"github.com/tomtom215/macroguard/internal/logging"
	"github.com/tomtom215/macroguard/internal/metrics"
)

// Applier receives the detection settings that can change at runtime.
// session.Manager implements it.
type Applier interface {
	ApplyDefaults(m input.Modality, cfg hysteresis.Config) error
	SetEnabled(enabled bool)
	SetMonitoredDomains(patterns []string)
}

// Apply pushes the hot-reloadable part of cfg into a. Settings that size
// buffers or select backends need a restart.
func Apply(cfg *Config, a Applier) error {
	var errs []error
	for _, m := range input.Modalities {
		if err := a.ApplyDefaults(m, cfg.Detection.Modality(m).Hysteresis()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m, err))
		}
	}
	a.SetEnabled(cfg.Detection.Enabled)
	a.SetMonitoredDomains(cfg.Detection.MonitoredDomains)
	return errors.Join(errs...)
}

// WatchConfigFile sets up a file watcher for hot-reload capability. The
// callback runs on the watcher goroutine; the returned stop function
// removes the watch.
func WatchConfigFile(path string, callback func()) (stop func() error, err error) {
	provider := file.Provider(path)

	err = provider.Watch(func(_ interface{}, werr error) {
		if werr != nil {
			logging.Warn().Err(werr).Str("path", path).Msg("Config watch error")
			return
		}
		callback()
	})
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return provider.Unwatch, nil
}

// Reloader re-reads the config file on change and applies the detection
// settings. A file that fails to load or validate is rejected and the
// running settings are kept.
type Reloader struct {
	path    string
	applier Applier
	load    func(path string) (*Config, error)

	// OnResult, when set, is called after every reload attempt.
	OnResult func(path string, err error)
}

// NewReloader creates a reloader for the YAML file at path.
func NewReloader(path string, a Applier) *Reloader {
	return &Reloader{path: path, applier: a, load: Load}
}

// Path returns the watched file.
func (r *Reloader) Path() string {
	return r.path
}

// Reload loads the file once and applies it.
func (r *Reloader) Reload() error {
	err := r.reload()
	if r.OnResult != nil {
		r.OnResult(r.path, err)
	}
	return err
}

func (r *Reloader) reload() error {
	cfg, err := r.load(r.path)
	if err != nil {
		metrics.ConfigReloads.WithLabelValues("rejected").Inc()
		return err
	}
	if err := Apply(cfg, r.applier); err != nil {
		metrics.ConfigReloads.WithLabelValues("rejected").Inc()
		return err
	}
	metrics.ConfigReloads.WithLabelValues("applied").Inc()
	return nil
}

// RunWithContext watches the file until ctx is canceled.
func (r *Reloader) RunWithContext(ctx context.Context) error {
	changed := make(chan struct{}, 1)
	stop, err := WatchConfigFile(r.path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = stop() }()

	logging.Info().Str("path", r.path).Msg("Watching config file")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
			if err := r.Reload(); err != nil {
				logging.Warn().Err(err).Str("path", r.path).Msg("Config reload rejected")
				continue
			}
			logging.Info().Str("path", r.path).Msg("Config reloaded")
		}
	}
}
