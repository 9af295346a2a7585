// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package detector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/macroguard/internal/emitter"
	"github.com/tomtom215/macroguard/internal/features"
	"github.com/tomtom215/macroguard/internal/hysteresis"
	"github.com/tomtom215/macroguard/internal/inference"
	"github.com/tomtom215/macroguard/internal/input"
	"github.com/tomtom215/macroguard/internal/logging"
	"github.com/tomtom215/macroguard/internal/metrics"
	"github.com/tomtom215/macroguard/internal/scorer"
)

// ErrModalityMismatch is returned by Ingest for an event of the other modality.
var ErrModalityMismatch = errors.New("event modality does not match pipeline")

// Deps are the collaborators of a Pipeline.
type Deps struct {
	// Scorer is required.
	Scorer scorer.Scorer

	// Backend is reported in Status. Nil means rule-only scoring.
	Backend inference.Backend

	// Emitter receives fired detections. Nil discards them.
	Emitter emitter.Emitter

	// SessionID is attached to detections and log lines.
	SessionID string

	// Clock drives hysteresis cooldowns. Nil uses time.Now.
	Clock func() time.Time
}

// window is a snapshot waiting to be scored.
type window struct {
	events     []input.RawEvent
	domain     string
	generation uint64
}

// Pipeline is the detector for one modality of one session. It owns the
// ingestion buffer, the hysteresis aggregator and a one-slot mailbox of
// the most recent ready window.
//
// Ingest never waits on scoring. Run is the only goroutine that scores
// windows and the only caller of Observe. Reset, Configure, Status and the
// aggregator update in Run all take mu, so a status query observes either
// the state before a reset or the state after it.
type Pipeline struct {
	mu         sync.Mutex
	cfg        Config
	buffer     *input.Buffer
	agg        *hysteresis.Aggregator
	sinceLast  int
	pending    *window
	generation uint64
	scored     uint64
	lastScore  *scorer.Score

	deps Deps
	wake chan struct{}
}

// New creates a pipeline. Call Run to start scoring.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s pipeline: %w", cfg.Modality, err)
	}
	if deps.Scorer == nil {
		return nil, fmt.Errorf("%s pipeline: scorer is required", cfg.Modality)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	agg, err := hysteresis.NewAggregator(cfg.Hysteresis,
		hysteresis.WithClock(deps.Clock),
		hysteresis.WithModality(string(cfg.Modality)),
	)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:    cfg,
		buffer: input.NewBuffer(cfg.BufferSize),
		agg:    agg,
		deps:   deps,
		wake:   make(chan struct{}, 1),
	}, nil
}

// Modality returns the pipeline's modality.
func (p *Pipeline) Modality() input.Modality {
	return p.cfg.Modality
}

// Ingest appends ev to the buffer and, when a window is due, replaces the
// mailbox contents with a snapshot of the buffer.
func (p *Pipeline) Ingest(ev input.RawEvent) error {
	if ev.Modality() != p.cfg.Modality {
		metrics.EventsIgnored.WithLabelValues("modality_mismatch").Inc()
		return fmt.Errorf("%w: %s event sent to %s pipeline", ErrModalityMismatch, ev.Kind, p.cfg.Modality)
	}

	p.mu.Lock()
	n := p.buffer.Append(ev)
	p.sinceLast++
	ready := n >= p.cfg.minEvents() && p.sinceLast >= p.cfg.TriggerEvery
	if ready {
		p.sinceLast = 0
		if p.pending != nil {
			metrics.WindowsCoalesced.WithLabelValues(string(p.cfg.Modality)).Inc()
		}
		p.pending = &window{
			events:     p.buffer.Snapshot(),
			domain:     ev.Domain,
			generation: p.generation,
		}
	}
	p.mu.Unlock()

	metrics.EventsIngested.WithLabelValues(string(p.cfg.Modality)).Inc()
	if ready {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// Run scores windows until ctx is canceled. It must be called from exactly
// one goroutine.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
			if w := p.take(); w != nil {
				p.process(ctx, w)
			}
		}
	}
}

// take empties the mailbox.
func (p *Pipeline) take() *window {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.pending
	p.pending = nil
	return w
}

func (p *Pipeline) process(ctx context.Context, w *window) {
	modality := string(p.cfg.Modality)
	ctx = logging.ContextWithSessionID(ctx, p.deps.SessionID)

	p.mu.Lock()
	cfg := p.cfg
	hcfg := p.agg.Config()
	p.mu.Unlock()

	vec, err := p.extract(cfg, w.events)
	if err != nil {
		metrics.RecordSkip(modality, "insufficient_data")
		logging.Ctx(ctx).Debug().Err(err).Str("modality", modality).Msg("Window skipped")
		return
	}

	gate := true
	var diversity *float64
	if cfg.Modality == input.ModalityPointer {
		d := features.PatternDiversity(w.events)
		diversity = &d
		gate = d < hcfg.RepetitivenessPx
	}

	scoreCtx, cancel := context.WithTimeout(ctx, cfg.InferenceTimeout)
	score, err := p.deps.Scorer.Score(scoreCtx, vec)
	timedOut := scoreCtx.Err() == context.DeadlineExceeded
	cancel()
	if err != nil {
		p.skip(ctx, err, timedOut)
		return
	}
	metrics.RecordScore(modality, string(score.Method), score.Probability)

	p.mu.Lock()
	if w.generation != p.generation {
		p.mu.Unlock()
		metrics.RecordSkip(modality, "reset")
		return
	}
	decision := p.agg.Observe(score.Probability, gate)
	p.scored++
	p.lastScore = &score
	p.mu.Unlock()

	logging.Ctx(ctx).Debug().
		Str("modality", modality).
		Str("method", string(score.Method)).
		Float64("probability", score.Probability).
		Bool("gate", gate).
		Str("decision", string(decision.Kind)).
		Msg("Window scored")

	if !decision.Fired() {
		return
	}

	det := emitter.NewDetection(cfg.Modality, decision, score, emitter.Metadata{
		SessionID: p.deps.SessionID,
		Domain:    w.domain,
		Diversity: diversity,
	})
	logging.Ctx(ctx).Warn().
		Str("modality", modality).
		Str("kind", string(det.Kind)).
		Float64("probability", det.Probability).
		Float64("history_average", det.HistoryAverage).
		Str("domain", det.Domain).
		Msg("Macro detected")

	if p.deps.Emitter == nil {
		return
	}
	if err := p.deps.Emitter.Emit(det); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("detection_id", det.ID).Msg("Detection not delivered")
	}
}

func (p *Pipeline) extract(cfg Config, events []input.RawEvent) (features.Vector, error) {
	if cfg.Modality == input.ModalityPointer {
		return features.ExtractPointer(events, cfg.Pointer)
	}
	return features.ExtractKeyboard(events, cfg.Keyboard)
}

func (p *Pipeline) skip(ctx context.Context, err error, timedOut bool) {
	modality := string(p.cfg.Modality)
	switch {
	case errors.Is(err, scorer.ErrBackendNotReady):
		metrics.RecordSkip(modality, "backend_not_ready")
		logging.Ctx(ctx).Debug().Str("modality", modality).Msg("Backend not ready, window skipped")
	case timedOut:
		metrics.RecordSkip(modality, "timeout")
		logging.Ctx(ctx).Warn().Err(err).
			Str("modality", modality).
			Dur("timeout", p.cfg.InferenceTimeout).
			Msg("Scoring exceeded timeout, window dropped")
	case ctx.Err() != nil:
		metrics.RecordSkip(modality, "canceled")
	default:
		metrics.RecordSkip(modality, "error")
		logging.Ctx(ctx).Error().Err(err).Str("modality", modality).Msg("Scoring failed, window dropped")
	}
}

// Reset clears the buffer, the pending window, the score history and both
// cooldowns in one step. A window being scored when Reset runs is
// discarded when it completes.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffer.Reset()
	p.pending = nil
	p.sinceLast = 0
	p.agg.Reset()
	p.lastScore = nil
	p.generation++
}

// Configure applies new hysteresis thresholds. Invalid settings return an
// error wrapping hysteresis.ErrInvalidConfig and the old ones stay active.
func (p *Pipeline) Configure(cfg hysteresis.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.agg.Configure(cfg); err != nil {
		return err
	}
	p.cfg.Hysteresis = cfg
	return nil
}

// Status is the answer to a status query.
type Status struct {
	Modality      input.Modality       `json:"modality"`
	EventCount    int                  `json:"eventCount"`
	HistoryLength int                  `json:"historyLength"`
	BackendReady  bool                 `json:"backendReady"`
	ModelInfo     *inference.ModelInfo `json:"modelInfo,omitempty"`

	Phase         hysteresis.Phase  `json:"phase"`
	History       []float64         `json:"history"`
	LastAlert     *time.Time        `json:"lastAlert,omitempty"`
	LastBlock     *time.Time        `json:"lastBlock,omitempty"`
	WindowsScored uint64            `json:"windowsScored"`
	LastScore     *scorer.Score     `json:"lastScore,omitempty"`
	Config        hysteresis.Config `json:"config"`
}

// Status returns a consistent snapshot of the pipeline.
func (p *Pipeline) Status() Status {
	s := p.snapshot()

	// Backend state is shared across sessions and not part of the reset
	// snapshot; it is read after releasing mu so Ingest never waits on it.
	if b := p.deps.Backend; b != nil {
		s.BackendReady = b.Ready()
		if s.BackendReady {
			info := b.Info()
			s.ModelInfo = &info
		}
	}
	return s
}

func (p *Pipeline) snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.agg.Snapshot()
	s := Status{
		Modality:      p.cfg.Modality,
		EventCount:    p.buffer.Len(),
		HistoryLength: len(st.History),
		BackendReady:  true,
		Phase:         st.Phase,
		History:       st.History,
		WindowsScored: p.scored,
		Config:        st.Config,
	}
	if !st.LastAlert.IsZero() {
		t := st.LastAlert
		s.LastAlert = &t
	}
	if !st.LastBlock.IsZero() {
		t := st.LastBlock
		s.LastBlock = &t
	}
	if p.lastScore != nil {
		ls := *p.lastScore
		s.LastScore = &ls
	}
	return s
}
