// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package websocket

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/macroguard/internal/emitter"
	"github.com/tomtom215/macroguard/internal/logging"
)

// BusSubscriber bridges the detection topic to WebSocket broadcasts.
type BusSubscriber struct {
	hub   *Hub
	sub   message.Subscriber
	topic string
}

// NewBusSubscriber creates a bridge reading topic from sub.
func NewBusSubscriber(hub *Hub, sub message.Subscriber, topic string) *BusSubscriber {
	if topic == "" {
		topic = emitter.DetectionTopic
	}
	return &BusSubscriber{hub: hub, sub: sub, topic: topic}
}

// RunWithContext forwards detections until ctx is canceled. Undecodable
// messages are acked and skipped so they are not redelivered.
func (s *BusSubscriber) RunWithContext(ctx context.Context) error {
	msgs, err := s.sub.Subscribe(ctx, s.topic)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("detection subscription closed")
			}
			d, err := emitter.DecodeDetection(msg)
			if err != nil {
				logging.Warn().Err(err).Str("topic", s.topic).Msg("skipping malformed detection message")
				msg.Ack()
				continue
			}
			s.hub.BroadcastDetection(d)
			msg.Ack()
		}
	}
}
