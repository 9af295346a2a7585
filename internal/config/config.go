// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package config

import (
	"time"

	"github.com/tomtom215/macroguard/internal/detector"
	"github.com/tomtom215/macroguard/internal/emitter"
	"github.com/tomtom215/macroguard/internal/hysteresis"
	"github.com/tomtom215/macroguard/internal/inference"
	"github.com/tomtom215/macroguard/internal/input"
	"github.com/tomtom215/macroguard/internal/logging"
	"github.com/tomtom215/macroguard/internal/session"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Detection DetectionConfig `koanf:"detection"`
	Inference InferenceConfig `koanf:"inference"`
	Emitter   EmitterConfig   `koanf:"emitter"`
	Session   SessionConfig   `koanf:"session"`
	Security  SecurityConfig  `koanf:"security"`
	Audit     AuditConfig     `koanf:"audit"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled off"`

	// Format is json (production) or console (development).
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// DetectionConfig holds the global switch, the domain filter and the
// per-modality pipeline settings.
type DetectionConfig struct {
	Enabled bool `koanf:"enabled"`

	// MonitoredDomains restricts analysis to these origins. Empty means all.
	MonitoredDomains []string `koanf:"monitored_domains" validate:"dive,domainpattern"`

	Keyboard ModalityConfig `koanf:"keyboard"`
	Pointer  ModalityConfig `koanf:"pointer"`
}

// ModalityConfig holds the pipeline and hysteresis settings of one modality.
type ModalityConfig struct {
	BufferSize     int `koanf:"buffer_size" validate:"gte=1"`
	MinEvents      int `koanf:"min_events" validate:"gte=1"`
	TriggerEvery   int `koanf:"trigger_every" validate:"gte=1"`
	AnalysisWindow int `koanf:"analysis_window" validate:"gte=0"`

	// SeqLen and Kinematics shape the pointer tensor; ignored for keyboard.
	SeqLen     int  `koanf:"seq_len" validate:"gte=0"`
	Kinematics bool `koanf:"kinematics"`

	HistorySize         int           `koanf:"history_size" validate:"gte=1"`
	IndividualThreshold float64       `koanf:"individual_threshold" validate:"gte=0,lte=1"`
	AlertThreshold      float64       `koanf:"alert_threshold" validate:"gte=0,lte=1"`
	BlockThreshold      float64       `koanf:"block_threshold" validate:"gte=0,lte=1,gtefield=AlertThreshold"`
	AlertCooldown       time.Duration `koanf:"alert_cooldown" validate:"gte=0"`
	BlockCooldown       time.Duration `koanf:"block_cooldown" validate:"gte=0"`
	RepetitivenessPx    float64       `koanf:"repetitiveness_px" validate:"gte=0"`
}

// InferenceConfig selects and tunes the model backend.
type InferenceConfig struct {
	// Backend is none (rule scoring only), http or wasm.
	Backend string `koanf:"backend" validate:"oneof=none http wasm"`

	URL          string `koanf:"url"`
	WasmPath     string `koanf:"wasm_path"`
	ModelName    string `koanf:"model_name"`
	ModelVersion string `koanf:"model_version"`

	// Timeout bounds one scoring pass.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	ReadyPollAttempts int           `koanf:"ready_poll_attempts" validate:"gte=1"`
	ReadyPollInterval time.Duration `koanf:"ready_poll_interval" validate:"gte=0"`

	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`
	RateBurst int     `koanf:"rate_burst" validate:"gte=0"`

	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold" validate:"gte=1"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout" validate:"gte=0"`

	// FallbackWhenNotReady scores with the rules while the backend loads.
	FallbackWhenNotReady bool `koanf:"fallback_when_not_ready"`
}

// EmitterConfig configures the detection channel and its sinks.
type EmitterConfig struct {
	ChannelBuffer int           `koanf:"channel_buffer" validate:"gte=1"`
	HistorySize   int           `koanf:"history_size" validate:"gte=1"`
	SinkQueueSize int           `koanf:"sink_queue_size" validate:"gte=1"`
	SendTimeout   time.Duration `koanf:"send_timeout" validate:"gt=0"`
	BusBuffer     int64         `koanf:"bus_buffer" validate:"gte=0"`

	Webhook WebhookConfig `koanf:"webhook"`
	NATS    NATSConfig    `koanf:"nats"`
}

// WebhookConfig configures the optional webhook sink.
type WebhookConfig struct {
	Enabled     bool          `koanf:"enabled"`
	URL         string        `koanf:"url" validate:"required_if=Enabled true,omitempty,url"`
	MinInterval time.Duration `koanf:"min_interval" validate:"gte=0"`
	Timeout     time.Duration `koanf:"timeout" validate:"gte=0"`
}

// NATSConfig configures the optional NATS publisher (requires -tags nats).
type NATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url" validate:"required_if=Enabled true"`
	Topic         string        `koanf:"topic"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait" validate:"gte=0"`
}

// SessionConfig configures session lifetime.
type SessionConfig struct {
	IdleTimeout   time.Duration `koanf:"idle_timeout" validate:"gte=0"`
	MaxSessions   int           `koanf:"max_sessions" validate:"gte=0"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gte=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// IngestRateLimitReqs caps event batches per session per window.
	IngestRateLimitReqs int `koanf:"ingest_rate_limit_reqs" validate:"gte=0"`
}

// AuditConfig controls the control-plane audit trail.
type AuditConfig struct {
	Enabled         bool          `koanf:"enabled"`
	MaxEvents       int           `koanf:"max_events" validate:"gte=1"`
	BufferSize      int           `koanf:"buffer_size" validate:"gte=1"`
	Retention       time.Duration `koanf:"retention" validate:"gte=0"`
	CleanupInterval time.Duration `koanf:"cleanup_interval" validate:"gt=0"`
	LogEvents       bool          `koanf:"log_events"`
}

// Modality returns the settings for modality m.
func (d DetectionConfig) Modality(m input.Modality) ModalityConfig {
	if m == input.ModalityPointer {
		return d.Pointer
	}
	return d.Keyboard
}

// Hysteresis returns the aggregator settings.
func (m ModalityConfig) Hysteresis() hysteresis.Config {
	return hysteresis.Config{
		HistorySize:         m.HistorySize,
		IndividualThreshold: m.IndividualThreshold,
		AlertThreshold:      m.AlertThreshold,
		BlockThreshold:      m.BlockThreshold,
		AlertCooldown:       m.AlertCooldown,
		BlockCooldown:       m.BlockCooldown,
		RepetitivenessPx:    m.RepetitivenessPx,
	}
}

// Pipeline builds the detector configuration for modality m.
func (c *Config) Pipeline(m input.Modality) detector.Config {
	mc := c.Detection.Modality(m)
	dc := detector.DefaultConfig(m)
	dc.BufferSize = mc.BufferSize
	dc.TriggerEvery = mc.TriggerEvery
	dc.Hysteresis = mc.Hysteresis()
	dc.InferenceTimeout = c.Inference.Timeout

	if m == input.ModalityPointer {
		dc.Pointer.MinEvents = mc.MinEvents
		if mc.SeqLen > 0 {
			dc.Pointer.SeqLen = mc.SeqLen
		}
		dc.Pointer.Kinematics = mc.Kinematics
	} else {
		dc.Keyboard.MinEvents = mc.MinEvents
		dc.Keyboard.AnalysisWindow = mc.AnalysisWindow
	}
	return dc
}

// LoggingSettings converts to the logging package configuration.
func (c *Config) LoggingSettings() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Logging.Level
	lc.Format = c.Logging.Format
	lc.Caller = c.Logging.Caller
	return lc
}

// HTTPBackend returns the HTTP inference backend settings.
func (c *Config) HTTPBackend() inference.HTTPConfig {
	hc := inference.DefaultHTTPConfig()
	hc.URL = c.Inference.URL
	hc.Timeout = c.Inference.Timeout
	hc.ReadyPollAttempts = c.Inference.ReadyPollAttempts
	hc.ReadyPollInterval = c.Inference.ReadyPollInterval
	hc.RateLimit = c.Inference.RateLimit
	hc.RateBurst = c.Inference.RateBurst
	hc.BreakerFailureThreshold = c.Inference.BreakerFailureThreshold
	hc.BreakerTimeout = c.Inference.BreakerTimeout
	return hc
}

// WasmBackend returns the WASM inference backend settings.
func (c *Config) WasmBackend() inference.WasmConfig {
	return inference.WasmConfig{
		Path:    c.Inference.WasmPath,
		Name:    c.Inference.ModelName,
		Version: c.Inference.ModelVersion,
	}
}

// Sessions returns the session manager settings.
func (c *Config) Sessions() session.Config {
	return session.Config{
		IdleTimeout:   c.Session.IdleTimeout,
		MaxSessions:   c.Session.MaxSessions,
		SweepInterval: c.Session.SweepInterval,
	}
}

// Fanout returns the sink fanout settings.
func (c *Config) Fanout() emitter.FanoutConfig {
	return emitter.FanoutConfig{
		QueueSize:   c.Emitter.SinkQueueSize,
		SendTimeout: c.Emitter.SendTimeout,
	}
}

// WebhookSink returns the webhook sink settings.
func (c *Config) WebhookSink() emitter.WebhookConfig {
	return emitter.WebhookConfig{
		URL:         c.Emitter.Webhook.URL,
		Enabled:     c.Emitter.Webhook.Enabled,
		MinInterval: c.Emitter.Webhook.MinInterval,
		Timeout:     c.Emitter.Webhook.Timeout,
	}
}

// NATSPublisher returns the NATS publisher settings.
func (c *Config) NATSPublisher() emitter.NATSConfig {
	return emitter.NATSConfig{
		URL:           c.Emitter.NATS.URL,
		MaxReconnects: c.Emitter.NATS.MaxReconnects,
		ReconnectWait: c.Emitter.NATS.ReconnectWait,
	}
}
