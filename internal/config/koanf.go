// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/macroguard/config.yaml",
	"/etc/macroguard/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8790,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Detection: DetectionConfig{
			Enabled:          true,
			MonitoredDomains: []string{},
			// Keyboard rescoring every 5 keys once 10 are buffered, over the last 20.
			Keyboard: ModalityConfig{
				BufferSize:          60,
				MinEvents:           10,
				TriggerEvery:        5,
				AnalysisWindow:      20,
				HistorySize:         5,
				IndividualThreshold: 0.65,
				AlertThreshold:      0.70,
				BlockThreshold:      0.75,
				AlertCooldown:       10 * time.Second,
				BlockCooldown:       30 * time.Second,
				RepetitivenessPx:    5,
			},
			// Pointer rescoring on every event once 50 are buffered.
			Pointer: ModalityConfig{
				BufferSize:          200,
				MinEvents:           50,
				TriggerEvery:        1,
				SeqLen:              200,
				Kinematics:          false,
				HistorySize:         5,
				IndividualThreshold: 0.65,
				AlertThreshold:      0.70,
				BlockThreshold:      0.75,
				AlertCooldown:       10 * time.Second,
				BlockCooldown:       30 * time.Second,
				RepetitivenessPx:    5,
			},
		},
		Inference: InferenceConfig{
			Backend:                 "none",
			URL:                     "",
			WasmPath:                "",
			ModelName:               "macro-detector",
			ModelVersion:            "",
			Timeout:                 2 * time.Second,
			ReadyPollAttempts:       10,
			ReadyPollInterval:       500 * time.Millisecond,
			RateLimit:               50,
			RateBurst:               10,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
			FallbackWhenNotReady:    true,
		},
		Emitter: EmitterConfig{
			ChannelBuffer: 256,
			HistorySize:   100,
			SinkQueueSize: 64,
			SendTimeout:   10 * time.Second,
			BusBuffer:     256,
			Webhook: WebhookConfig{
				Enabled:     false,
				MinInterval: time.Second,
				Timeout:     5 * time.Second,
			},
			NATS: NATSConfig{
				Enabled:       false,
				URL:           "nats://127.0.0.1:4222",
				Topic:         "macroguard.detections",
				MaxReconnects: -1,
				ReconnectWait: 2 * time.Second,
			},
		},
		Session: SessionConfig{
			IdleTimeout:   30 * time.Minute,
			MaxSessions:   1000,
			SweepInterval: time.Minute,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     600,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,

			IngestRateLimitReqs: 1200,
		},
		Audit: AuditConfig{
			Enabled:         true,
			MaxEvents:       10000,
			BufferSize:      1000,
			Retention:       7 * 24 * time.Hour,
			CleanupInterval: time.Hour,
			LogEvents:       true,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in defaults
//  2. Config File: optional YAML config file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment Variables: override any mapped setting
//
// Precedence is ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	return loadFrom(findConfigFile())
}

// Load is LoadWithKoanf reading the YAML file at path instead of searching.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	return loadFrom(path)
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// KEYBOARD_HISTORY_SIZE -> detection.keyboard.history_size
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// FilePath returns the config file LoadWithKoanf reads, or "" when none
// exists.
func FilePath() string {
	return findConfigFile()
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"detection.monitored_domains",
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		strVal, ok := val.(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are skipped so unrelated environment does not leak in.
var envMappings = map[string]string{
	// Server
	"http_host":        "server.host",
	"http_port":        "server.port",
	"read_timeout":     "server.read_timeout",
	"write_timeout":    "server.write_timeout",
	"shutdown_timeout": "server.shutdown_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Detection
	"detection_enabled": "detection.enabled",
	"monitored_domains": "detection.monitored_domains",

	"keyboard_buffer_size":          "detection.keyboard.buffer_size",
	"keyboard_min_events":           "detection.keyboard.min_events",
	"keyboard_trigger_every":        "detection.keyboard.trigger_every",
	"keyboard_analysis_window":      "detection.keyboard.analysis_window",
	"keyboard_history_size":         "detection.keyboard.history_size",
	"keyboard_individual_threshold": "detection.keyboard.individual_threshold",
	"keyboard_alert_threshold":      "detection.keyboard.alert_threshold",
	"keyboard_block_threshold":      "detection.keyboard.block_threshold",
	"keyboard_alert_cooldown":       "detection.keyboard.alert_cooldown",
	"keyboard_block_cooldown":       "detection.keyboard.block_cooldown",
	"keyboard_repetitiveness_px":    "detection.keyboard.repetitiveness_px",

	"pointer_buffer_size":          "detection.pointer.buffer_size",
	"pointer_min_events":           "detection.pointer.min_events",
	"pointer_trigger_every":        "detection.pointer.trigger_every",
	"pointer_seq_len":              "detection.pointer.seq_len",
	"pointer_kinematics":           "detection.pointer.kinematics",
	"pointer_history_size":         "detection.pointer.history_size",
	"pointer_individual_threshold": "detection.pointer.individual_threshold",
	"pointer_alert_threshold":      "detection.pointer.alert_threshold",
	"pointer_block_threshold":      "detection.pointer.block_threshold",
	"pointer_alert_cooldown":       "detection.pointer.alert_cooldown",
	"pointer_block_cooldown":       "detection.pointer.block_cooldown",
	"pointer_repetitiveness_px":    "detection.pointer.repetitiveness_px",

	// Inference
	"inference_backend":                 "inference.backend",
	"inference_url":                     "inference.url",
	"inference_wasm_path":               "inference.wasm_path",
	"inference_model_name":              "inference.model_name",
	"inference_model_version":           "inference.model_version",
	"inference_timeout":                 "inference.timeout",
	"inference_ready_poll_attempts":     "inference.ready_poll_attempts",
	"inference_ready_poll_interval":     "inference.ready_poll_interval",
	"inference_rate_limit":              "inference.rate_limit",
	"inference_rate_burst":              "inference.rate_burst",
	"inference_breaker_threshold":       "inference.breaker_failure_threshold",
	"inference_breaker_timeout":         "inference.breaker_timeout",
	"inference_fallback_when_not_ready": "inference.fallback_when_not_ready",

	// Emitter
	"emitter_channel_buffer":  "emitter.channel_buffer",
	"detection_history_size":  "emitter.history_size",
	"emitter_sink_queue_size": "emitter.sink_queue_size",
	"emitter_send_timeout":    "emitter.send_timeout",
	"emitter_bus_buffer":      "emitter.bus_buffer",
	"webhook_enabled":         "emitter.webhook.enabled",
	"webhook_url":             "emitter.webhook.url",
	"webhook_min_interval":    "emitter.webhook.min_interval",
	"webhook_timeout":         "emitter.webhook.timeout",
	"nats_enabled":            "emitter.nats.enabled",
	"nats_url":                "emitter.nats.url",
	"nats_topic":              "emitter.nats.topic",
	"nats_max_reconnects":     "emitter.nats.max_reconnects",
	"nats_reconnect_wait":     "emitter.nats.reconnect_wait",

	// Sessions
	"session_idle_timeout":   "session.idle_timeout",
	"session_max_sessions":   "session.max_sessions",
	"session_sweep_interval": "session.sweep_interval",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"ingest_rate_limit":   "security.ingest_rate_limit_reqs",

	// Audit
	"audit_enabled":          "audit.enabled",
	"audit_max_events":       "audit.max_events",
	"audit_buffer_size":      "audit.buffer_size",
	"audit_retention":        "audit.retention",
	"audit_cleanup_interval": "audit.cleanup_interval",
	"audit_log_events":       "audit.log_events",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - KEYBOARD_HISTORY_SIZE -> detection.keyboard.history_size
//   - INFERENCE_BACKEND -> inference.backend
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
