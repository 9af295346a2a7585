// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package emitter

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/macroguard/internal/hysteresis"
	"github.com/tomtom215/macroguard/internal/input"
	"github.com/tomtom215/macroguard/internal/scorer"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testDetection(kind hysteresis.Kind, modality input.Modality, domain string) Detection {
	return NewDetection(modality,
		hysteresis.Decision{Kind: kind, Average: 0.8, Evaluated: true},
		scorer.Score{Probability: 0.9, Confidence: 0.8, Method: scorer.MethodModel, Timestamp: testTime},
		Metadata{SessionID: "s-1", Domain: domain},
	)
}

func TestNewDetection(t *testing.T) {
	t.Parallel()

	div := 0.0
	d := NewDetection(input.ModalityPointer,
		hysteresis.Decision{Kind: hysteresis.KindBlock, Average: 0.95, Evaluated: true},
		scorer.Score{Probability: 0.95, Confidence: 0.9, Method: scorer.MethodRule, Timestamp: testTime},
		Metadata{SessionID: "abc", Domain: "game.example.com", Diversity: &div},
	)
	if d.ID == "" || d.Kind != hysteresis.KindBlock || d.Method != scorer.MethodRule {
		t.Fatalf("unexpected detection %+v", d)
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"kind", "modality", "method", "probability", "confidence", "timestamp", "domain", "sessionId", "historyAverage"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("wire format missing %q: %s", key, data)
		}
	}
	if wire["kind"] != "BLOCK" || wire["modality"] != "pointer" {
		t.Errorf("kind/modality = %v/%v", wire["kind"], wire["modality"])
	}
}

func TestChannelEmitter_NonBlocking(t *testing.T) {
	t.Parallel()

	e := NewChannelEmitter(1)
	if err := e.Emit(testDetection(hysteresis.KindAlert, input.ModalityKeyboard, "")); err != nil {
		t.Fatalf("first Emit() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Emit(testDetection(hysteresis.KindAlert, input.ModalityKeyboard, "")) }()
	select {
	case err := <-done:
		if !errors.Is(err, ErrChannelUnavailable) {
			t.Errorf("full channel err = %v, want ErrChannelUnavailable", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full channel")
	}

	<-e.C()
	e.Close()
	e.Close()
	if err := e.Emit(testDetection(hysteresis.KindAlert, input.ModalityKeyboard, "")); !errors.Is(err, ErrChannelUnavailable) {
		t.Errorf("closed channel err = %v, want ErrChannelUnavailable", err)
	}
}

func TestChannelEmitter_NoConsumer(t *testing.T) {
	t.Parallel()

	e := NewChannelEmitter(0)
	if err := e.Emit(testDetection(hysteresis.KindBlock, input.ModalityPointer, "")); !errors.Is(err, ErrChannelUnavailable) {
		t.Errorf("err = %v, want ErrChannelUnavailable", err)
	}
}

// collectSink records every detection it receives.
type collectSink struct {
	mu       sync.Mutex
	name     string
	got      []Detection
	enabled  bool
	err      error
	received chan struct{}
}

func newCollectSink(name string) *collectSink {
	return &collectSink{name: name, enabled: true, received: make(chan struct{}, 100)}
}

func (s *collectSink) Name() string  { return s.name }
func (s *collectSink) Enabled() bool { return s.enabled }
func (s *collectSink) Send(_ context.Context, d Detection) error {
	s.mu.Lock()
	s.got = append(s.got, d)
	s.mu.Unlock()
	s.received <- struct{}{}
	return s.err
}

func (s *collectSink) detections() []Detection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Detection(nil), s.got...)
}

func TestFanout_DeliversToEverySinkInOrder(t *testing.T) {
	t.Parallel()

	e := NewChannelEmitter(16)
	f := NewFanout(e.C(), DefaultFanoutConfig())
	a, b := newCollectSink("a"), newCollectSink("b")
	b.err = errors.New("sink down")
	disabled := newCollectSink("off")
	disabled.enabled = false
	f.Register(a)
	f.Register(b)
	f.Register(disabled)

	var sent []string
	for i := 0; i < 5; i++ {
		d := testDetection(hysteresis.KindAlert, input.ModalityKeyboard, "")
		sent = append(sent, d.ID)
		if err := e.Emit(d); err != nil {
			t.Fatal(err)
		}
	}
	e.Close()

	if err := f.RunWithContext(context.Background()); err != nil {
		t.Fatalf("RunWithContext() error = %v", err)
	}

	for _, s := range []*collectSink{a, b} {
		got := s.detections()
		if len(got) != len(sent) {
			t.Fatalf("sink %s got %d detections, want %d", s.name, len(got), len(sent))
		}
		for i := range sent {
			if got[i].ID != sent[i] {
				t.Errorf("sink %s order mismatch at %d", s.name, i)
			}
		}
	}
	if n := len(disabled.detections()); n != 0 {
		t.Errorf("disabled sink got %d detections", n)
	}
}

func TestFanout_StopsOnCancel(t *testing.T) {
	t.Parallel()

	e := NewChannelEmitter(4)
	f := NewFanout(e.C(), FanoutConfig{})
	sink := newCollectSink("a")
	f.Register(sink)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.RunWithContext(ctx) }()

	if err := e.Emit(testDetection(hysteresis.KindAlert, input.ModalityKeyboard, "")); err != nil {
		t.Fatal(err)
	}
	select {
	case <-sink.received:
	case <-time.After(2 * time.Second):
		t.Fatal("detection not delivered")
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fanout did not stop")
	}
}

func TestRecorder_HistoryAndStats(t *testing.T) {
	t.Parallel()

	now := testTime
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	r := NewRecorder(3, clock)

	if s := r.Stats(); s.Total != 0 || s.LastDetection != nil || s.AverageConfidence != 0 {
		t.Fatalf("empty stats = %+v", s)
	}

	var ids []string
	for i, k := range []hysteresis.Kind{hysteresis.KindAlert, hysteresis.KindBlock, hysteresis.KindAlert, hysteresis.KindAlert} {
		mod := input.ModalityKeyboard
		if i%2 == 1 {
			mod = input.ModalityPointer
		}
		d := testDetection(k, mod, "game.example.com")
		ids = append(ids, d.ID)
		if err := r.Send(context.Background(), d); err != nil {
			t.Fatal(err)
		}
	}

	hist := r.History(0)
	if len(hist) != 3 {
		t.Fatalf("History length = %d, want 3", len(hist))
	}
	if hist[0].ID != ids[3] || hist[2].ID != ids[1] {
		t.Error("History should be newest first and evict the oldest")
	}
	if got := r.History(1); len(got) != 1 || got[0].ID != ids[3] {
		t.Errorf("History(1) = %v", got)
	}

	s := r.Stats()
	if s.Total != 4 || s.Alerts != 3 || s.Blocks != 1 {
		t.Errorf("totals = %+v", s)
	}
	if s.ByModality["keyboard"] != 2 || s.ByModality["pointer"] != 2 {
		t.Errorf("ByModality = %v", s.ByModality)
	}
	if s.LastHour != 4 || s.LastHourByDomain["game.example.com"] != 4 {
		t.Errorf("LastHour = %d byDomain = %v", s.LastHour, s.LastHourByDomain)
	}
	if math.Abs(s.AverageConfidence-0.8) > 1e-9 {
		t.Errorf("AverageConfidence = %v, want 0.8", s.AverageConfidence)
	}

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()
	if s := r.Stats(); s.LastHour != 0 || s.Total != 4 {
		t.Errorf("after 2h LastHour = %d Total = %d", s.LastHour, s.Total)
	}

	r.Clear()
	if s := r.Stats(); s.Total != 0 || len(r.History(0)) != 0 {
		t.Errorf("after Clear stats = %+v", s)
	}
}

func TestWebhookSink(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		payload WebhookPayload
		auth    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		auth = r.Header.Get("Authorization")
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhookSink(WebhookConfig{
		URL:         srv.URL,
		Enabled:     true,
		Headers:     map[string]string{"Authorization": "Bearer t"},
		MinInterval: time.Millisecond,
	})
	if !w.Enabled() || w.Name() != "webhook" {
		t.Fatal("sink should be enabled")
	}

	d := testDetection(hysteresis.KindBlock, input.ModalityPointer, "x.example.com")
	if err := w.Send(context.Background(), d); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	mu.Lock()
	if payload.Detection.ID != d.ID || payload.EventType != "macro_detection" || payload.Source != "macroguard" {
		t.Errorf("payload = %+v", payload)
	}
	if auth != "Bearer t" {
		t.Errorf("Authorization = %q", auth)
	}
	mu.Unlock()

	w.SetEnabled(false)
	if w.Enabled() {
		t.Error("SetEnabled(false) had no effect")
	}
}

func TestWebhookSink_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhookSink(WebhookConfig{URL: srv.URL, Enabled: true})
	if err := w.Send(context.Background(), testDetection(hysteresis.KindAlert, input.ModalityKeyboard, "")); err == nil {
		t.Error("expected error for 502 response")
	}
}

func TestBusSink_LocalBusRoundTrip(t *testing.T) {
	t.Parallel()

	bus := NewLocalBus(8, watermill.NopLogger{})
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := bus.Subscribe(ctx, DetectionTopic)
	if err != nil {
		t.Fatal(err)
	}

	sink := NewBusSink("bus", bus, DetectionTopic)
	d := testDetection(hysteresis.KindAlert, input.ModalityKeyboard, "mail.example.com")
	if err := sink.Send(ctx, d); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case msg := <-msgs:
		msg.Ack()
		got, err := DecodeDetection(msg)
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != d.ID || got.Domain != "mail.example.com" || msg.Metadata.Get("modality") != "keyboard" {
			t.Errorf("got %+v metadata %v", got, msg.Metadata)
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("broker down") }
func (failingPublisher) Close() error                              { return nil }

func TestBusSink_BreakerOpens(t *testing.T) {
	t.Parallel()

	sink := NewBusSink("failing", failingPublisher{}, DetectionTopic)
	d := testDetection(hysteresis.KindAlert, input.ModalityKeyboard, "")
	for i := 0; i < 5; i++ {
		if err := sink.Send(context.Background(), d); err == nil {
			t.Fatal("expected publish error")
		}
	}
	if sink.BreakerState() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", sink.BreakerState())
	}
	if err := sink.Send(context.Background(), d); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
}

func TestNewNATSPublisher_Availability(t *testing.T) {
	t.Parallel()

	if NATSAvailable {
		t.Skip("NATS build; publisher requires a server")
	}
	if _, err := NewNATSPublisher(DefaultNATSConfig(), nil); err == nil {
		t.Error("expected error without nats build tag")
	}
}
