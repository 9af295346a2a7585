// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/macroguard/internal/hysteresis"
	"github.com/tomtom215/macroguard/internal/input"
	"github.com/tomtom215/macroguard/internal/metrics"
	"github.com/tomtom215/macroguard/internal/validation"
)

// TestDefaultConfig verifies that defaultConfig() returns the documented defaults.
func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	for _, m := range input.Modalities {
		got := cfg.Detection.Modality(m).Hysteresis()
		if got != hysteresis.DefaultConfig() {
			t.Errorf("%s hysteresis = %+v, want %+v", m, got, hysteresis.DefaultConfig())
		}
	}

	kb := cfg.Pipeline(input.ModalityKeyboard)
	if kb.BufferSize != 60 || kb.TriggerEvery != 5 || kb.Keyboard.MinEvents != 10 || kb.Keyboard.AnalysisWindow != 20 {
		t.Errorf("keyboard pipeline = %+v", kb)
	}
	pt := cfg.Pipeline(input.ModalityPointer)
	if pt.BufferSize != 200 || pt.TriggerEvery != 1 || pt.Pointer.MinEvents != 50 || pt.Pointer.SeqLen != 200 {
		t.Errorf("pointer pipeline = %+v", pt)
	}
	if pt.InferenceTimeout != 2*time.Second {
		t.Errorf("InferenceTimeout = %v", pt.InferenceTimeout)
	}
	if cfg.Inference.Backend != "none" {
		t.Errorf("Backend = %q, want none", cfg.Inference.Backend)
	}
	if hc := cfg.HTTPBackend(); hc.ReadyPollAttempts != 10 || hc.ReadyPollInterval != 500*time.Millisecond {
		t.Errorf("HTTPBackend polling = %d x %v", hc.ReadyPollAttempts, hc.ReadyPollInterval)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"KEYBOARD_HISTORY_SIZE", "detection.keyboard.history_size"},
		{"POINTER_BLOCK_COOLDOWN", "detection.pointer.block_cooldown"},
		{"MONITORED_DOMAINS", "detection.monitored_domains"},
		{"INFERENCE_BACKEND", "inference.backend"},
		{"WEBHOOK_URL", "emitter.webhook.url"},
		{"AUDIT_RETENTION", "audit.retention"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FileAndEnvLayers(t *testing.T) {
	path := writeConfig(t, `
detection:
  monitored_domains: ["*.tickets.example"]
  pointer:
    history_size: 7
    block_cooldown: 45s
inference:
  backend: http
  url: http://localhost:8501
`)
	t.Setenv("POINTER_HISTORY_SIZE", "9")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Detection.Pointer.HistorySize != 9 {
		t.Errorf("env should override file: HistorySize = %d", cfg.Detection.Pointer.HistorySize)
	}
	if cfg.Detection.Pointer.BlockCooldown != 45*time.Second {
		t.Errorf("BlockCooldown = %v, want 45s", cfg.Detection.Pointer.BlockCooldown)
	}
	if cfg.Detection.Keyboard.HistorySize != 5 {
		t.Errorf("untouched keyboard K = %d", cfg.Detection.Keyboard.HistorySize)
	}
	if !reflect.DeepEqual(cfg.Detection.MonitoredDomains, []string{"*.tickets.example"}) {
		t.Errorf("MonitoredDomains = %v", cfg.Detection.MonitoredDomains)
	}
	if !reflect.DeepEqual(cfg.Security.CORSOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	if cfg.HTTPBackend().URL != "http://localhost:8501" {
		t.Errorf("URL = %q", cfg.HTTPBackend().URL)
	}
}

func TestLoad_FindsConfigPathEnv(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9999\n")
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"block below alert", func(c *Config) { c.Detection.Keyboard.BlockThreshold = 0.5 }, "block_threshold"},
		{"threshold above one", func(c *Config) { c.Detection.Pointer.AlertThreshold = 1.5 }, "alert_threshold"},
		{"zero history", func(c *Config) { c.Detection.Pointer.HistorySize = 0 }, "history_size"},
		{"negative cooldown", func(c *Config) { c.Detection.Keyboard.AlertCooldown = -time.Second }, "alert_cooldown"},
		{"bad domain", func(c *Config) { c.Detection.MonitoredDomains = []string{"not a host"} }, "monitored_domains"},
		{"bad backend", func(c *Config) { c.Inference.Backend = "onnx" }, "backend"},
		{"http without url", func(c *Config) { c.Inference.Backend = "http" }, "INFERENCE_URL"},
		{"http bad scheme", func(c *Config) { c.Inference.Backend = "http"; c.Inference.URL = "ftp://x" }, "scheme"},
		{"wasm without path", func(c *Config) { c.Inference.Backend = "wasm" }, "INFERENCE_WASM_PATH"},
		{"min events above buffer", func(c *Config) { c.Detection.Keyboard.MinEvents = 100 }, "exceeds buffer"},
		{"webhook without url", func(c *Config) { c.Emitter.Webhook.Enabled = true }, "url"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReturnsFieldErrors(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Detection.Pointer.BlockThreshold = 0.1
	var verr *validation.RequestValidationError
	if err := cfg.Validate(); !errors.As(err, &verr) {
		t.Fatalf("error %T is not a RequestValidationError", err)
	}
	if verr.Errors()[0].Field() != "block_threshold" {
		t.Errorf("field = %q", verr.Errors()[0].Field())
	}
}

type recordingApplier struct {
	mu      sync.Mutex
	applied map[input.Modality]hysteresis.Config
	enabled bool
	domains []string
	fail    error
}

func (r *recordingApplier) ApplyDefaults(m input.Modality, cfg hysteresis.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if r.applied == nil {
		r.applied = make(map[input.Modality]hysteresis.Config)
	}
	r.applied[m] = cfg
	return nil
}

func (r *recordingApplier) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

func (r *recordingApplier) SetMonitoredDomains(patterns []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains = patterns
}

func TestReloader_Reload(t *testing.T) {
	path := writeConfig(t, `
detection:
  enabled: false
  monitored_domains: ["game.example"]
  keyboard:
    alert_threshold: 0.8
    block_threshold: 0.9
`)
	a := &recordingApplier{enabled: true}
	r := NewReloader(path, a)

	applied := testutil.ToFloat64(metrics.ConfigReloads.WithLabelValues("applied"))
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := testutil.ToFloat64(metrics.ConfigReloads.WithLabelValues("applied")) - applied; got != 1 {
		t.Errorf("applied reloads delta = %v", got)
	}
	if a.applied[input.ModalityKeyboard].BlockThreshold != 0.9 {
		t.Errorf("keyboard config = %+v", a.applied[input.ModalityKeyboard])
	}
	if a.applied[input.ModalityPointer] != hysteresis.DefaultConfig() {
		t.Errorf("pointer config = %+v", a.applied[input.ModalityPointer])
	}
	if a.enabled || !reflect.DeepEqual(a.domains, []string{"game.example"}) {
		t.Errorf("enabled=%v domains=%v", a.enabled, a.domains)
	}
}

func TestReloader_RejectsInvalidFile(t *testing.T) {
	path := writeConfig(t, "detection:\n  keyboard:\n    block_threshold: 0.1\n")
	a := &recordingApplier{}
	r := NewReloader(path, a)
	var hookPath string
	var hookErr error
	r.OnResult = func(p string, err error) { hookPath, hookErr = p, err }

	rejected := testutil.ToFloat64(metrics.ConfigReloads.WithLabelValues("rejected"))
	if err := r.Reload(); err == nil {
		t.Fatal("expected validation error")
	}
	if hookPath != path || hookErr == nil {
		t.Errorf("OnResult got (%q, %v)", hookPath, hookErr)
	}
	if len(a.applied) != 0 {
		t.Errorf("invalid config was applied: %+v", a.applied)
	}
	if got := testutil.ToFloat64(metrics.ConfigReloads.WithLabelValues("rejected")) - rejected; got != 1 {
		t.Errorf("rejected reloads delta = %v", got)
	}
}

func TestApply_JoinsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	a := &recordingApplier{fail: boom}
	err := Apply(defaultConfig(), a)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if !strings.Contains(err.Error(), "keyboard") || !strings.Contains(err.Error(), "pointer") {
		t.Errorf("err = %v, want both modalities", err)
	}
}
