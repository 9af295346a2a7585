// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package hysteresis

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/macroguard/internal/metrics"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestAggregator(t *testing.T, cfg Config, clock *fakeClock, modality string) *Aggregator {
	t.Helper()
	a, err := NewAggregator(cfg, WithClock(clock.Now), WithModality(modality))
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}
	return a
}

func observeAll(a *Aggregator, ps []float64, gate bool) []Decision {
	out := make([]Decision, 0, len(ps))
	for _, p := range ps {
		out = append(out, a.Observe(p, gate))
	}
	return out
}

func countKind(ds []Decision, k Kind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == k {
			n++
		}
	}
	return n
}

func TestAggregator_AlertSequence(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	a := newTestAggregator(t, DefaultConfig(), clock, "test_alert_sequence")

	ds := observeAll(a, []float64{0.70, 0.72, 0.68, 0.75, 0.71}, true)
	for i, d := range ds[:4] {
		if d.Kind != KindNone || d.Evaluated {
			t.Errorf("sample %d: decision = %+v, want collecting", i, d)
		}
	}
	last := ds[4]
	if last.Kind != KindAlert {
		t.Fatalf("final decision = %v, want ALERT", last.Kind)
	}
	if math.Abs(last.Average-0.712) > 1e-9 {
		t.Errorf("Average = %v, want 0.712", last.Average)
	}
	if a.Len() != 0 {
		t.Errorf("history length after firing = %d, want 0", a.Len())
	}

	clock.Advance(time.Second)
	if d := a.Observe(0.20, true); d.Fired() {
		t.Errorf("low sample after ALERT fired %v", d.Kind)
	}
	if got := testutil.ToFloat64(metrics.Decisions.WithLabelValues("test_alert_sequence", "ALERT")); got != 1 {
		t.Errorf("ALERT decisions metric = %v, want 1", got)
	}
}

func TestAggregator_AlertCooldown(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	a := newTestAggregator(t, DefaultConfig(), clock, "test_alert_cooldown")
	qualifying := []float64{0.71, 0.71, 0.71, 0.71, 0.71}

	first := observeAll(a, qualifying, true)
	clock.Advance(2 * time.Second)
	second := observeAll(a, qualifying, true)

	if n := countKind(first, KindAlert) + countKind(second, KindAlert); n != 1 {
		t.Fatalf("ALERT count within cooldown = %d, want 1", n)
	}
	if a.Len() != 5 {
		t.Errorf("suppressed window should keep history, len = %d", a.Len())
	}
	if got := testutil.ToFloat64(metrics.CooldownSuppressed.WithLabelValues("test_alert_cooldown", "ALERT")); got != 1 {
		t.Errorf("suppressed metric = %v, want 1", got)
	}

	// Exactly at the cooldown boundary nothing fires; the window must exceed it.
	clock.Advance(8 * time.Second)
	if d := a.Observe(0.71, true); d.Fired() {
		t.Errorf("fired at cooldown boundary: %v", d.Kind)
	}
	clock.Advance(time.Millisecond)
	if d := a.Observe(0.71, true); d.Kind != KindAlert {
		t.Errorf("after cooldown decision = %v, want ALERT", d.Kind)
	}
}

func TestAggregator_BlockPrecedence(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	a := newTestAggregator(t, DefaultConfig(), clock, "test_block")

	ds := observeAll(a, []float64{0.95, 0.95, 0.95, 0.95, 0.95}, true)
	if ds[4].Kind != KindBlock {
		t.Fatalf("decision = %v, want BLOCK", ds[4].Kind)
	}

	// BLOCK in cooldown degrades to ALERT, which has never fired.
	clock.Advance(time.Second)
	ds = observeAll(a, []float64{0.95, 0.95, 0.95, 0.95, 0.95}, true)
	if ds[4].Kind != KindAlert {
		t.Fatalf("decision during block cooldown = %v, want ALERT", ds[4].Kind)
	}

	// Both in cooldown.
	clock.Advance(time.Second)
	ds = observeAll(a, []float64{0.95, 0.95, 0.95, 0.95, 0.95}, true)
	if countKind(ds, KindNone) != 5 {
		t.Fatalf("expected no decisions while both cooldowns are active, got %+v", ds)
	}

	st := a.Snapshot()
	if st.LastBlock.IsZero() || st.LastAlert.IsZero() || !st.LastAlert.After(st.LastBlock) {
		t.Errorf("unexpected cooldown timestamps %+v", st)
	}
}

func TestAggregator_Gate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		gate bool
		want Kind
	}{
		{"repetitive motion", true, KindBlock},
		{"varied motion", false, KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := newTestAggregator(t, DefaultConfig(), newFakeClock(), "test_gate")
			ds := observeAll(a, []float64{0.95, 0.95, 0.95, 0.95, 0.95}, tt.gate)
			if ds[4].Kind != tt.want {
				t.Errorf("decision = %v, want %v", ds[4].Kind, tt.want)
			}
		})
	}
}

func TestAggregator_IndividualThreshold(t *testing.T) {
	t.Parallel()

	a := newTestAggregator(t, DefaultConfig(), newFakeClock(), "test_individual")
	// Mean 0.81 but one sample under T_ind.
	ds := observeAll(a, []float64{0.99, 0.99, 0.99, 0.99, 0.09}, true)
	if ds[4].Fired() || !ds[4].Evaluated {
		t.Fatalf("decision = %+v, want evaluated without firing", ds[4])
	}

	// The low sample rolls out of the window after K more observations.
	ds = observeAll(a, []float64{0.9, 0.9, 0.9, 0.9, 0.9}, true)
	if countKind(ds[:4], KindNone) != 4 || ds[4].Kind != KindBlock {
		t.Errorf("decisions while low sample rolls out = %+v, want BLOCK only on the last", ds)
	}
}

func TestAggregator_HistoryBounded(t *testing.T) {
	t.Parallel()

	a := newTestAggregator(t, DefaultConfig(), newFakeClock(), "test_bounded")
	for i := 0; i < 50; i++ {
		a.Observe(0.1, true)
		if a.Len() > 5 {
			t.Fatalf("history length %d exceeds K", a.Len())
		}
	}
	if st := a.Snapshot(); st.Phase != PhaseWatching {
		t.Errorf("Phase = %v, want watching", st.Phase)
	}
}

func TestAggregator_Configure(t *testing.T) {
	t.Parallel()

	a := newTestAggregator(t, DefaultConfig(), newFakeClock(), "test_configure")
	observeAll(a, []float64{0.1, 0.2, 0.3, 0.4}, true)

	invalid := []func(*Config){
		func(c *Config) { c.BlockThreshold = 0.6 },
		func(c *Config) { c.HistorySize = 0 },
		func(c *Config) { c.AlertThreshold = 1.5 },
		func(c *Config) { c.IndividualThreshold = -0.1 },
		func(c *Config) { c.AlertCooldown = -time.Second },
		func(c *Config) { c.RepetitivenessPx = -1 },
	}
	for i, mutate := range invalid {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := a.Configure(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("case %d: err = %v, want ErrInvalidConfig", i, err)
		}
		if a.Config() != DefaultConfig() {
			t.Fatalf("case %d: previous config not retained", i)
		}
	}

	smaller := DefaultConfig()
	smaller.HistorySize = 2
	if err := a.Configure(smaller); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	st := a.Snapshot()
	if len(st.History) != 2 || st.History[0] != 0.3 || st.History[1] != 0.4 {
		t.Errorf("History after shrink = %v, want [0.3 0.4]", st.History)
	}
}

func TestAggregator_Reset(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	a := newTestAggregator(t, DefaultConfig(), clock, "test_reset")
	observeAll(a, []float64{0.95, 0.95, 0.95, 0.95, 0.95}, true)
	observeAll(a, []float64{0.8, 0.8}, true)

	a.Reset()
	st := a.Snapshot()
	if len(st.History) != 0 || !st.LastAlert.IsZero() || !st.LastBlock.IsZero() {
		t.Fatalf("state after reset = %+v", st)
	}

	// Cooldowns are gone, so BLOCK fires again immediately.
	ds := observeAll(a, []float64{0.95, 0.95, 0.95, 0.95, 0.95}, true)
	if ds[4].Kind != KindBlock {
		t.Errorf("decision after reset = %v, want BLOCK", ds[4].Kind)
	}
}

func TestNewAggregator_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.BlockThreshold = 0.5
	if _, err := NewAggregator(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}
