// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package emitter

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/macroguard/internal/logging"
)

// DetectionTopic is the topic detections are published on.
const DetectionTopic = "macroguard.detections"

// NewLocalBus creates the in-process pub/sub used to hand detections to
// the WebSocket hub.
func NewLocalBus(buffer int64, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	if logger == nil {
		logger = watermill.NewSlogLogger(logging.NewSlogLogger())
	}
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: buffer,
	}, logger)
}

// BusSink publishes detections as Watermill messages behind a circuit
// breaker.
type BusSink struct {
	name      string
	publisher message.Publisher
	topic     string
	breaker   *gobreaker.CircuitBreaker[any]
}

// NewBusSink creates a sink publishing to topic. The breaker opens after
// five consecutive publish failures and retries after 30 seconds.
func NewBusSink(name string, pub message.Publisher, topic string) *BusSink {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Detection bus circuit breaker state changed")
		},
	})
	return &BusSink{name: name, publisher: pub, topic: topic, breaker: cb}
}

// Name implements Sink.
func (b *BusSink) Name() string { return b.name }

// Enabled implements Sink.
func (b *BusSink) Enabled() bool { return b.publisher != nil }

// Send implements Sink.
func (b *BusSink) Send(ctx context.Context, d Detection) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("serialize detection: %w", err)
	}

	msg := message.NewMessage(d.ID, data)
	msg.Metadata.Set("kind", string(d.Kind))
	msg.Metadata.Set("modality", string(d.Modality))
	if d.SessionID != "" {
		msg.Metadata.Set("session_id", d.SessionID)
	}
	msg.SetContext(ctx)

	_, err = b.breaker.Execute(func() (any, error) {
		return nil, b.publisher.Publish(b.topic, msg)
	})
	if err != nil {
		return fmt.Errorf("publish detection %s: %w", d.ID, err)
	}
	return nil
}

// BreakerState returns the current circuit breaker state.
func (b *BusSink) BreakerState() gobreaker.State {
	return b.breaker.State()
}

// DecodeDetection parses a message published by BusSink.
func DecodeDetection(msg *message.Message) (Detection, error) {
	var d Detection
	if err := json.Unmarshal(msg.Payload, &d); err != nil {
		return Detection{}, fmt.Errorf("decode detection %s: %w", msg.UUID, err)
	}
	return d, nil
}
