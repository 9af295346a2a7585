// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package audit

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/macroguard/internal/logging"
)

// Config holds configuration for the audit logger.
type Config struct {
	// Enabled controls whether events are recorded.
	Enabled bool

	// Retention is how long events are kept.
	Retention time.Duration

	// CleanupInterval is how often expired events are removed.
	CleanupInterval time.Duration

	// BufferSize is the async write queue length. Events beyond it are dropped.
	BufferSize int

	// LogEvents also writes each event to the application log.
	LogEvents bool
}

// DefaultConfig returns the default audit settings.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Retention:       7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
		BufferSize:      1000,
		LogEvents:       true,
	}
}

// Logger records events asynchronously into a Store.
type Logger struct {
	mu     sync.RWMutex
	config Config
	store  Store
	now    func() time.Time

	events chan *Event
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewLogger starts a logger writing to store.
func NewLogger(store Store, cfg Config) *Logger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	l := &Logger{
		config: cfg,
		store:  store,
		now:    time.Now,
		events: make(chan *Event, cfg.BufferSize),
		stop:   make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writer()
	return l
}

func (l *Logger) writer() {
	defer l.wg.Done()
	for {
		select {
		case ev := <-l.events:
			l.write(ev)
		case <-l.stop:
			for {
				select {
				case ev := <-l.events:
					l.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(ev *Event) {
	l.mu.RLock()
	logEvents := l.config.LogEvents
	l.mu.RUnlock()

	if logEvents {
		if data, err := json.Marshal(ev); err == nil {
			logging.Info().RawJSON("audit", data).Msg("Audit event")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Save(ctx, ev); err != nil {
		logging.Error().Err(err).Str("event_id", ev.ID).Msg("Failed to save audit event")
	}
}

// Log queues ev. ID and Timestamp are filled in when empty.
func (l *Logger) Log(ev *Event) {
	if l == nil || !l.Enabled() {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now()
	}

	select {
	case l.events <- ev:
	default:
		logging.Warn().Str("event_id", ev.ID).Str("type", string(ev.Type)).Msg("Audit buffer full, dropping event")
	}
}

// Record logs an event originating from HTTP request r.
func (l *Logger) Record(r *http.Request, typ EventType, outcome Outcome, target *Target, description string, metadata interface{}) {
	if l == nil {
		return
	}
	ev := &Event{
		Type:          typ,
		Outcome:       outcome,
		Source:        SourceFromRequest(r),
		Target:        target,
		Description:   description,
		RequestID:     logging.RequestIDFromContext(r.Context()),
		CorrelationID: logging.CorrelationIDFromContext(r.Context()),
	}
	if metadata != nil {
		ev.Metadata = mustJSON(metadata)
	}
	l.Log(ev)
}

// RecordReload logs the result of a config file reload.
func (l *Logger) RecordReload(path string, err error) {
	if l == nil {
		return
	}
	ev := &Event{
		Type:        EventTypeConfigReloaded,
		Outcome:     OutcomeSuccess,
		Source:      Source{System: true},
		Target:      &Target{Type: "config", ID: path},
		Description: "Configuration file reloaded",
	}
	if err != nil {
		ev.Outcome = OutcomeFailure
		ev.Description = "Configuration reload rejected"
		ev.Metadata = mustJSON(map[string]string{"error": err.Error()})
	}
	l.Log(ev)
}

// SourceFromRequest extracts the client address. chi's RealIP middleware
// has already resolved forwarded headers into RemoteAddr.
func SourceFromRequest(r *http.Request) Source {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return Source{IPAddress: ip, UserAgent: r.UserAgent()}
}

// Query returns matching events, newest first.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Count returns the number of matching events.
func (l *Logger) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return l.store.Count(ctx, filter)
}

// SetEnabled toggles recording.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Enabled = enabled
}

// Enabled reports whether events are recorded.
func (l *Logger) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config.Enabled
}

// Cleanup removes events older than the retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	l.mu.RLock()
	retention := l.config.Retention
	l.mu.RUnlock()
	if retention <= 0 {
		return 0, nil
	}
	return l.store.Delete(ctx, l.now().Add(-retention))
}

// RunWithContext runs retention cleanup until ctx is canceled.
func (l *Logger) RunWithContext(ctx context.Context) error {
	l.mu.RLock()
	interval := l.config.CleanupInterval
	l.mu.RUnlock()
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := l.Cleanup(ctx)
			if err != nil {
				logging.Error().Err(err).Msg("Audit cleanup error")
			} else if n > 0 {
				logging.Info().Int64("count", n).Msg("Cleaned up old audit events")
			}
		}
	}
}

// Close flushes queued events and stops the writer.
func (l *Logger) Close() error {
	l.once.Do(func() {
		close(l.stop)
		l.wg.Wait()
	})
	return nil
}
