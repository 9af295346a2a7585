// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/macroguard/internal/logging"
	"github.com/tomtom215/macroguard/internal/metrics"
)

// ErrRateLimited is returned when the local call rate limit is exhausted.
var ErrRateLimited = errors.New("inference rate limit exceeded")

// HTTPConfig configures a remote model server.
type HTTPConfig struct {
	// URL is the model server base URL, e.g. http://localhost:8501.
	URL string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	// ReadyPollAttempts and ReadyPollInterval control Load.
	ReadyPollAttempts int
	ReadyPollInterval time.Duration
	// RateLimit is the sustained call rate per second; 0 disables limiting.
	RateLimit float64
	RateBurst int
	// Circuit breaker settings.
	BreakerFailureThreshold uint32
	BreakerTimeout          time.Duration
	BreakerMaxRequests      uint32
}

// DefaultHTTPConfig returns settings matching the extension's model loader:
// ten readiness checks half a second apart.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:                 2 * time.Second,
		ReadyPollAttempts:       10,
		ReadyPollInterval:       500 * time.Millisecond,
		RateLimit:               50,
		RateBurst:               10,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          30 * time.Second,
		BreakerMaxRequests:      1,
	}
}

type inferRequest struct {
	Shape []int64   `json:"shape"`
	Data  []float32 `json:"data"`
}

type inferResponse struct {
	Logits []float32 `json:"logits"`
}

// HTTPBackend calls a model server over HTTP:
//
//	GET  {url}/v1/model  -> ModelInfo (readiness check)
//	POST {url}/v1/infer  {"shape":[...],"data":[...]} -> {"logits":[...]}
//
// Calls go through a circuit breaker and a local rate limiter.
type HTTPBackend struct {
	cfg     HTTPConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]float32]
	limiter *rate.Limiter

	ready atomic.Bool
	mu    sync.RWMutex
	info  ModelInfo
}

// NewHTTPBackend creates an unloaded backend. Call Load before use.
func NewHTTPBackend(cfg HTTPConfig) *HTTPBackend {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	defaults := DefaultHTTPConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.ReadyPollAttempts <= 0 {
		cfg.ReadyPollAttempts = defaults.ReadyPollAttempts
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = defaults.BreakerFailureThreshold
	}

	b := &HTTPBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		info:   ModelInfo{Backend: "http"},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	b.breaker = gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:        "inference-http",
		MaxRequests: cfg.BreakerMaxRequests,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.InferenceCircuitState.WithLabelValues("http").Set(float64(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Inference circuit breaker state changed")
		},
	})
	metrics.SetBackendReady("http", false)
	return b
}

// Load polls the model endpoint until it answers or the attempts run out.
// On failure the backend stays not-ready and callers keep using rule scoring.
func (b *HTTPBackend) Load(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= b.cfg.ReadyPollAttempts; attempt++ {
		info, err := b.fetchInfo(ctx)
		if err == nil {
			info.Backend = "http"
			b.mu.Lock()
			b.info = info
			b.mu.Unlock()
			b.ready.Store(true)
			metrics.SetBackendReady("http", true)
			logging.Info().
				Str("model", info.Name).
				Str("version", info.Version).
				Int("attempt", attempt).
				Msg("Inference backend ready")
			return nil
		}
		lastErr = err
		logging.Debug().Err(err).Int("attempt", attempt).Msg("Inference backend not ready yet")

		if attempt == b.cfg.ReadyPollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.cfg.ReadyPollInterval):
		}
	}
	logging.Warn().Err(lastErr).Int("attempts", b.cfg.ReadyPollAttempts).
		Msg("Inference backend failed to load, rule scoring only")
	return fmt.Errorf("load model from %s: %w", b.cfg.URL, lastErr)
}

func (b *HTTPBackend) fetchInfo(ctx context.Context) (ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.URL+"/v1/model", http.NoBody)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return ModelInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return ModelInfo{}, fmt.Errorf("model endpoint returned %d", resp.StatusCode)
	}
	var info ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ModelInfo{}, fmt.Errorf("decode model info: %w", err)
	}
	return info, nil
}

// Ready implements Backend.
func (b *HTTPBackend) Ready() bool {
	return b.ready.Load()
}

// Info implements Backend.
func (b *HTTPBackend) Info() ModelInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.info
}

// BreakerState returns the circuit breaker state name.
func (b *HTTPBackend) BreakerState() string {
	return b.breaker.State().String()
}

// Run implements Backend.
func (b *HTTPBackend) Run(ctx context.Context, input Tensor) ([]float32, error) {
	if !b.Ready() {
		return nil, ErrNotLoaded
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if b.limiter != nil && !b.limiter.Allow() {
		return nil, ErrRateLimited
	}

	start := time.Now()
	logits, err := b.breaker.Execute(func() ([]float32, error) {
		return b.infer(ctx, input)
	})
	metrics.RecordInference("http", time.Since(start), err)
	return logits, err
}

func (b *HTTPBackend) infer(ctx context.Context, input Tensor) ([]float32, error) {
	body, err := json.Marshal(inferRequest(input))
	if err != nil {
		return nil, fmt.Errorf("encode tensor: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL+"/v1/infer", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("infer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("infer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode logits: %w", err)
	}
	return out.Logits, nil
}

// Close implements Backend.
func (b *HTTPBackend) Close(context.Context) error {
	b.ready.Store(false)
	metrics.SetBackendReady("http", false)
	b.client.CloseIdleConnections()
	return nil
}
