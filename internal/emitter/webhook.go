// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package emitter

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"` // custom headers (e.g., auth)
	Enabled bool              `json:"enabled"`

	// MinInterval is the minimum spacing between requests.
	MinInterval time.Duration `json:"min_interval"`
	Timeout     time.Duration `json:"timeout"`
}

// WebhookPayload is the JSON body posted to the endpoint.
type WebhookPayload struct {
	Detection Detection `json:"detection"`
	EventType string    `json:"event_type"` // macro_detection
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // macroguard
}

// WebhookSink posts detections to an HTTP endpoint.
type WebhookSink struct {
	url     string
	headers map[string]string
	enabled bool
	limiter *rate.Limiter
	client  *http.Client
	mu      sync.RWMutex
}

// NewWebhookSink creates a webhook sink.
func NewWebhookSink(cfg WebhookConfig) *WebhookSink {
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &WebhookSink{
		url:     cfg.URL,
		headers: headers,
		enabled: cfg.Enabled,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Sink.
func (w *WebhookSink) Name() string { return "webhook" }

// Enabled implements Sink.
func (w *WebhookSink) Enabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled && w.url != ""
}

// SetEnabled enables or disables the sink.
func (w *WebhookSink) SetEnabled(enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enabled = enabled
}

// Send implements Sink. It waits for the rate limiter or ctx.
func (w *WebhookSink) Send(ctx context.Context, d Detection) error {
	w.mu.RLock()
	if !w.enabled || w.url == "" {
		w.mu.RUnlock()
		return nil
	}
	url := w.url
	headers := make(map[string]string, len(w.headers))
	for k, v := range w.headers {
		headers[k] = v
	}
	w.mu.RUnlock()

	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	body, err := json.Marshal(WebhookPayload{
		Detection: d,
		EventType: "macro_detection",
		Timestamp: time.Now().UTC(),
		Source:    "macroguard",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
