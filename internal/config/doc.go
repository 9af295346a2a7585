// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

/*
Package config provides configuration management for MacroGuard.

Configuration is layered with Koanf v2. Later layers override earlier ones:

 1. Built-in defaults (defaultConfig)
 2. YAML file: CONFIG_PATH, else config.yaml, config.yml or /etc/macroguard/
 3. Environment variables, through an explicit mapping table

Example YAML:

	detection:
	  enabled: true
	  monitored_domains: ["*.tickets.example"]
	  pointer:
	    history_size: 5
	    alert_threshold: 0.70
	    block_threshold: 0.75
	    block_cooldown: 30s
	inference:
	  backend: http
	  url: http://localhost:8501

Equivalent environment overrides: DETECTION_ENABLED, MONITORED_DOMAINS
(comma separated), POINTER_HISTORY_SIZE, POINTER_ALERT_THRESHOLD,
INFERENCE_BACKEND, INFERENCE_URL.

# Validation

Validate runs go-playground/validator over the struct tags (ranges,
block_threshold >= alert_threshold, domain patterns) and then checks each
pipeline configuration and the selected inference backend.

# Hot Reload

Reloader watches the YAML file and pushes hysteresis settings, the enable
switch and monitored domains into running sessions through Apply. Buffer
sizes and the inference backend are read once at startup.
*/
package config
