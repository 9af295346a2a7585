// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package websocket

import (
	"errors"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/macroguard/internal/detector"
	"github.com/tomtom215/macroguard/internal/hysteresis"
	"github.com/tomtom215/macroguard/internal/input"
	"github.com/tomtom215/macroguard/internal/logging"
	"github.com/tomtom215/macroguard/internal/metrics"
	"github.com/tomtom215/macroguard/internal/session"
)

// Ingester is the session API an inbound stream drives. session.Manager
// implements it.
type Ingester interface {
	Ingest(id string, events []input.RawEvent) (session.IngestResult, error)
	Reset(id string, m input.Modality) error
	Configure(id string, m input.Modality, cfg hysteresis.Config) error
	Status(id string, m input.Modality) (detector.Status, error)
}

// StreamRequest is one inbound frame on a session stream.
//
//	{"type":"events","request_id":"7","events":[{"kind":"move","x":10,"y":20,"has_position":true,...}]}
//	{"type":"clear","modality":"pointer"}
//	{"type":"configure","modality":"keyboard","config":{"history_size":5,...}}
//	{"type":"status","modality":"keyboard"}
type StreamRequest struct {
	Type      string             `json:"type"`
	RequestID string             `json:"request_id,omitempty"`
	Events    []input.RawEvent   `json:"events,omitempty"`
	Modality  string             `json:"modality,omitempty"`
	Config    *hysteresis.Config `json:"config,omitempty"`
}

// AckData answers events, clear and configure requests.
type AckData struct {
	RequestID string `json:"request_id,omitempty"`
	Accepted  int    `json:"accepted"`
	Ignored   int    `json:"ignored"`
}

// StatusData answers status requests.
type StatusData struct {
	RequestID string          `json:"request_id,omitempty"`
	Status    detector.Status `json:"status"`
}

// ErrorData reports a rejected request.
type ErrorData struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// StreamClient feeds one session from a WebSocket connection and replies
// to each frame in order.
type StreamClient struct {
	conn      *websocket.Conn
	sessionID string
	ingester  Ingester
	send      chan Message
	done      chan struct{}
}

// NewStreamClient creates a stream for sessionID.
func NewStreamClient(conn *websocket.Conn, sessionID string, ingester Ingester) *StreamClient {
	return &StreamClient{
		conn:      conn,
		sessionID: sessionID,
		ingester:  ingester,
		send:      make(chan Message, 64),
		done:      make(chan struct{}),
	}
}

// Serve runs the stream until the peer disconnects or the session is gone.
func (s *StreamClient) Serve() {
	gauge := metrics.WSConnections.WithLabelValues("ingest")
	gauge.Inc()
	defer gauge.Dec()

	go func() {
		writePump(s.conn, s.send)
		close(s.done)
	}()

	s.readLoop()
	close(s.send)
	<-s.done
}

func (s *StreamClient) readLoop() {
	if err := prepareRead(s.conn); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	log := logging.With().Str("session_id", s.sessionID).Logger()
	for {
		var req StreamRequest
		if err := s.conn.ReadJSON(&req); err != nil {
			logUnexpectedClose(err)
			return
		}

		reply, closeAfter := s.handle(req)
		// Replies block so a fast producer is paced by its own acks.
		select {
		case s.send <- reply:
		case <-s.done:
			return
		}
		if closeAfter {
			log.Info().Msg("closing stream for missing session")
			return
		}
	}
}

// handle executes one request. closeAfter is set when the session no
// longer exists.
func (s *StreamClient) handle(req StreamRequest) (reply Message, closeAfter bool) {
	fail := func(code string, err error) (Message, bool) {
		return Message{Type: MessageTypeError, Data: ErrorData{
			RequestID: req.RequestID,
			Code:      code,
			Message:   err.Error(),
		}}, errors.Is(err, session.ErrNotFound)
	}

	switch req.Type {
	case MessageTypePing:
		return Message{Type: MessageTypePong}, false

	case MessageTypeEvents:
		res, err := s.ingester.Ingest(s.sessionID, req.Events)
		if err != nil {
			return fail(errorCode(err), err)
		}
		return Message{Type: MessageTypeAck, Data: AckData{
			RequestID: req.RequestID,
			Accepted:  res.Accepted,
			Ignored:   res.Ignored,
		}}, false

	case MessageTypeClear, MessageTypeConfigure, MessageTypeStatus:
		mod, err := input.ParseModality(req.Modality)
		if err != nil {
			return fail("INVALID_MODALITY", err)
		}
		return s.handleModality(req, mod, fail)

	default:
		return fail("UNKNOWN_TYPE", errors.New("unknown message type "+req.Type))
	}
}

func (s *StreamClient) handleModality(req StreamRequest, mod input.Modality, fail func(string, error) (Message, bool)) (Message, bool) {
	switch req.Type {
	case MessageTypeClear:
		if err := s.ingester.Reset(s.sessionID, mod); err != nil {
			return fail(errorCode(err), err)
		}
	case MessageTypeConfigure:
		if req.Config == nil {
			return fail("VALIDATION_ERROR", errors.New("config is required"))
		}
		if err := s.ingester.Configure(s.sessionID, mod, *req.Config); err != nil {
			return fail(errorCode(err), err)
		}
	case MessageTypeStatus:
		st, err := s.ingester.Status(s.sessionID, mod)
		if err != nil {
			return fail(errorCode(err), err)
		}
		return Message{Type: MessageTypeStatus, Data: StatusData{RequestID: req.RequestID, Status: st}}, false
	}
	return Message{Type: MessageTypeAck, Data: AckData{RequestID: req.RequestID}}, false
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, hysteresis.ErrInvalidConfig):
		return "INVALID_CONFIG"
	default:
		return "INTERNAL_ERROR"
	}
}
