// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/macroguard/internal/detector"
	"github.com/tomtom215/macroguard/internal/hysteresis"
	"github.com/tomtom215/macroguard/internal/input"
	"github.com/tomtom215/macroguard/internal/logging"
	"github.com/tomtom215/macroguard/internal/metrics"
)

var (
	// ErrNotFound is returned for an unknown session ID.
	ErrNotFound = errors.New("session not found")

	// ErrTooManySessions is returned by Create at capacity.
	ErrTooManySessions = errors.New("too many active sessions")
)

// Config configures the Manager.
type Config struct {
	// IdleTimeout evicts sessions that have not ingested anything for this long.
	IdleTimeout time.Duration

	// MaxSessions caps concurrent sessions; 0 means unlimited.
	MaxSessions int

	// SweepInterval is how often idle sessions are evicted.
	SweepInterval time.Duration
}

// DefaultConfig returns the default session settings.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:   30 * time.Minute,
		MaxSessions:   1000,
		SweepInterval: time.Minute,
	}
}

// PipelineFactory builds the pipeline for one modality of a new session.
type PipelineFactory func(sessionID string, m input.Modality) (*detector.Pipeline, error)

// Session is one capture source (a browser tab, a game client) with an
// independent pipeline per modality.
type Session struct {
	ID        string
	CreatedAt time.Time

	pipelines map[input.Modality]*detector.Pipeline
	lastSeen  atomic.Int64 // unix nanos
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Pipeline returns the pipeline for modality m.
func (s *Session) Pipeline(m input.Modality) (*detector.Pipeline, bool) {
	p, ok := s.pipelines[m]
	return p, ok
}

// LastSeen returns the time of the last ingest.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Info is the public description of a session.
type Info struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// IngestResult reports what happened to a batch of events.
type IngestResult struct {
	Accepted int `json:"accepted"`
	Ignored  int `json:"ignored"`
}

// Manager owns all sessions, the global enable switch and the domain filter.
type Manager struct {
	cfg     Config
	factory PipelineFactory
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	defaults map[input.Modality]hysteresis.Config

	enabled atomic.Bool
	domains *DomainFilter

	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewManager creates a manager. Detection starts enabled.
func NewManager(cfg Config, factory PipelineFactory, domains *DomainFilter) *Manager {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	if domains == nil {
		domains = NewDomainFilter(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		factory:    factory,
		now:        time.Now,
		sessions:   make(map[string]*Session),
		defaults:   make(map[input.Modality]hysteresis.Config),
		domains:    domains,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
	m.enabled.Store(true)
	return m
}

// SetClock replaces the time source. Tests only.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Create starts a new session with one running pipeline per modality.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, fmt.Errorf("%w (max %d)", ErrTooManySessions, m.cfg.MaxSessions)
	}

	id := uuid.NewString()
	s := &Session{
		ID:        id,
		CreatedAt: m.now(),
		pipelines: make(map[input.Modality]*detector.Pipeline, len(input.Modalities)),
	}
	s.lastSeen.Store(s.CreatedAt.UnixNano())

	for _, mod := range input.Modalities {
		p, err := m.factory(id, mod)
		if err != nil {
			return nil, fmt.Errorf("create %s pipeline: %w", mod, err)
		}
		if hc, ok := m.defaults[mod]; ok {
			if err := p.Configure(hc); err != nil {
				return nil, fmt.Errorf("configure %s pipeline: %w", mod, err)
			}
		}
		s.pipelines[mod] = p
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	s.cancel = cancel
	for _, p := range s.pipelines {
		s.wg.Add(1)
		go func(p *detector.Pipeline) {
			defer s.wg.Done()
			_ = p.Run(ctx)
		}(p)
	}

	m.sessions[id] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	logging.Info().Str("session_id", id).Msg("Session created")
	return s, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// List returns all sessions ordered by creation time.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Info{ID: s.ID, CreatedAt: s.CreatedAt, LastSeen: s.LastSeen()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Delete stops and removes a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.cancel()
	s.wg.Wait()
	logging.Info().Str("session_id", id).Msg("Session closed")
	return nil
}

// Ingest routes a batch of events to the session's pipelines. Events are
// ignored while detection is disabled or when their domain is not monitored.
func (m *Manager) Ingest(id string, events []input.RawEvent) (IngestResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return IngestResult{}, err
	}
	s.lastSeen.Store(m.now().UnixNano())

	var res IngestResult
	if !m.enabled.Load() {
		res.Ignored = len(events)
		metrics.EventsIgnored.WithLabelValues("disabled").Add(float64(len(events)))
		return res, nil
	}

	for _, ev := range events {
		if !m.domains.Monitored(ev.Domain) {
			res.Ignored++
			metrics.EventsIgnored.WithLabelValues("domain").Inc()
			continue
		}
		p, ok := s.pipelines[ev.Modality()]
		if !ok || !ev.Kind.Valid() {
			res.Ignored++
			metrics.EventsIgnored.WithLabelValues("invalid").Inc()
			continue
		}
		if err := p.Ingest(ev); err != nil {
			res.Ignored++
			continue
		}
		res.Accepted++
	}
	return res, nil
}

func (m *Manager) pipeline(id string, mod input.Modality) (*detector.Pipeline, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	p, ok := s.Pipeline(mod)
	if !ok {
		return nil, fmt.Errorf("session %s has no %s pipeline", id, mod)
	}
	return p, nil
}

// Reset clears one modality of a session.
func (m *Manager) Reset(id string, mod input.Modality) error {
	p, err := m.pipeline(id, mod)
	if err != nil {
		return err
	}
	p.Reset()
	return nil
}

// Configure applies hysteresis settings to one modality of a session.
func (m *Manager) Configure(id string, mod input.Modality, cfg hysteresis.Config) error {
	p, err := m.pipeline(id, mod)
	if err != nil {
		return err
	}
	return p.Configure(cfg)
}

// Status returns the status of one modality of a session.
func (m *Manager) Status(id string, mod input.Modality) (detector.Status, error) {
	p, err := m.pipeline(id, mod)
	if err != nil {
		return detector.Status{}, err
	}
	return p.Status(), nil
}

// ApplyDefaults sets the hysteresis configuration for modality mod on every
// live session and on sessions created later. Sessions that reject it keep
// their previous settings; the first error is returned.
func (m *Manager) ApplyDefaults(mod input.Modality, cfg hysteresis.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.defaults[mod] = cfg
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if p, ok := s.Pipeline(mod); ok {
			if err := p.Configure(cfg); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SetEnabled turns detection on or off for every session.
func (m *Manager) SetEnabled(enabled bool) {
	if m.enabled.Swap(enabled) != enabled {
		logging.Info().Bool("enabled", enabled).Msg("Detection toggled")
	}
}

// Enabled reports whether detection is on.
func (m *Manager) Enabled() bool {
	return m.enabled.Load()
}

// Domains returns the monitored-domain filter.
func (m *Manager) Domains() *DomainFilter {
	return m.domains
}

// Sweep evicts sessions idle for longer than IdleTimeout and returns how
// many were removed.
func (m *Manager) Sweep() int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.IdleTimeout)

	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range idle {
		if err := m.Delete(id); err == nil {
			removed++
			metrics.SessionsEvicted.Inc()
		}
	}
	if removed > 0 {
		logging.Info().Int("evicted", removed).Msg("Evicted idle sessions")
	}
	return removed
}

// RunWithContext sweeps idle sessions until ctx is canceled. Sessions
// themselves outlive it; call Close on shutdown.
func (m *Manager) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close stops every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	m.baseCancel()
	for _, s := range sessions {
		s.wg.Wait()
	}
	metrics.ActiveSessions.Set(0)
}

// SetMonitoredDomains replaces the domain filter patterns.
func (m *Manager) SetMonitoredDomains(patterns []string) {
	m.domains.Set(patterns)
}
