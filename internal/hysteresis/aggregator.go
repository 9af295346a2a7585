// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package hysteresis

import (
	"sync"
	"time"

	"github.com/tomtom215/macroguard/internal/metrics"
)

// Kind is the outcome of one observation.
type Kind string

const (
	KindNone  Kind = "NONE"
	KindAlert Kind = "ALERT"
	KindBlock Kind = "BLOCK"
)

// Phase describes where the aggregator sits in its cycle.
type Phase string

const (
	// PhaseCollecting means fewer than K samples are held.
	PhaseCollecting Phase = "collecting"
	// PhaseWatching means the history is full and every sample is evaluated.
	PhaseWatching Phase = "watching"
)

// Decision is returned from Observe.
type Decision struct {
	Kind Kind `json:"kind"`

	// Average is the history mean at evaluation time, 0 while collecting.
	Average float64 `json:"average"`

	// Evaluated is false while the history is still filling up.
	Evaluated bool `json:"evaluated"`
}

// Fired reports whether the decision is an ALERT or a BLOCK.
func (d Decision) Fired() bool {
	return d.Kind == KindAlert || d.Kind == KindBlock
}

// State is a point-in-time copy of the aggregator.
type State struct {
	Phase     Phase     `json:"phase"`
	History   []float64 `json:"history"`
	LastAlert time.Time `json:"last_alert,omitempty"`
	LastBlock time.Time `json:"last_block,omitempty"`
	Config    Config    `json:"config"`
}

// Aggregator smooths per-window probabilities into ALERT and BLOCK
// decisions. A decision needs K consecutive samples at or above T_ind
// whose mean reaches the alert or block threshold, outside that kind's
// cooldown. Firing clears the history.
type Aggregator struct {
	mu        sync.RWMutex
	config    Config
	history   []float64
	lastAlert time.Time
	lastBlock time.Time
	now       func() time.Time
	modality  string
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the time source used for cooldowns.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithModality sets the label used for metrics.
func WithModality(m string) Option {
	return func(a *Aggregator) { a.modality = m }
}

// NewAggregator creates an aggregator. An invalid cfg is rejected.
func NewAggregator(cfg Config, opts ...Option) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Aggregator{
		config:   cfg,
		history:  make([]float64, 0, cfg.HistorySize),
		now:      time.Now,
		modality: "unknown",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Observe records probability p and evaluates the history. gate must be
// true for a decision to fire; keyboard callers always pass true, pointer
// callers pass the pattern diversity check.
func (a *Aggregator) Observe(p float64, gate bool) Decision {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := a.config.HistorySize
	a.history = append(a.history, p)
	if len(a.history) > k {
		a.history = append(a.history[:0], a.history[len(a.history)-k:]...)
	}
	if len(a.history) < k {
		return Decision{Kind: KindNone}
	}

	avg, allAbove := a.evaluate()
	d := Decision{Kind: KindNone, Average: avg, Evaluated: true}
	if !allAbove || !gate {
		return d
	}

	now := a.now()
	if avg >= a.config.BlockThreshold {
		if a.elapsed(now, a.lastBlock, a.config.BlockCooldown) {
			a.lastBlock = now
			a.history = a.history[:0]
			d.Kind = KindBlock
			metrics.RecordDecision(a.modality, string(KindBlock))
			return d
		}
		metrics.CooldownSuppressed.WithLabelValues(a.modality, string(KindBlock)).Inc()
	}
	if avg >= a.config.AlertThreshold {
		if a.elapsed(now, a.lastAlert, a.config.AlertCooldown) {
			a.lastAlert = now
			a.history = a.history[:0]
			d.Kind = KindAlert
			metrics.RecordDecision(a.modality, string(KindAlert))
			return d
		}
		metrics.CooldownSuppressed.WithLabelValues(a.modality, string(KindAlert)).Inc()
	}
	return d
}

func (a *Aggregator) evaluate() (avg float64, allAbove bool) {
	allAbove = true
	var sum float64
	for _, s := range a.history {
		sum += s
		if s < a.config.IndividualThreshold {
			allAbove = false
		}
	}
	return sum / float64(len(a.history)), allAbove
}

// elapsed reports whether more than cooldown has passed since last.
// A zero last means the decision has never fired.
func (a *Aggregator) elapsed(now, last time.Time, cooldown time.Duration) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) > cooldown
}

// Configure replaces the configuration. On error the previous one is kept.
// Shrinking K drops the oldest samples.
func (a *Aggregator) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config = cfg
	if n := len(a.history); n > cfg.HistorySize {
		a.history = append(a.history[:0], a.history[n-cfg.HistorySize:]...)
	}
	return nil
}

// Config returns the active configuration.
func (a *Aggregator) Config() Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// Reset clears the history and both cooldowns.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = a.history[:0]
	a.lastAlert = time.Time{}
	a.lastBlock = time.Time{}
}

// Len returns the number of samples held.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.history)
}

// Snapshot returns a copy of the current state.
func (a *Aggregator) Snapshot() State {
	a.mu.RLock()
	defer a.mu.RUnlock()

	phase := PhaseCollecting
	if len(a.history) >= a.config.HistorySize {
		phase = PhaseWatching
	}
	return State{
		Phase:     phase,
		History:   append([]float64(nil), a.history...),
		LastAlert: a.lastAlert,
		LastBlock: a.lastBlock,
		Config:    a.config,
	}
}
