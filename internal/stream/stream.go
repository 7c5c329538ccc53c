// Package stream pushes per-frame layout records to a remote overlay over a
// websocket. Every message is an Envelope; session start and end wait for an
// ack, frames are fire-and-forget.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Message types on the wire.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeFrame        = "frame"
	TypeAck          = "ack"
)

// ErrNotStarted is returned by Write before Start succeeded.
var ErrNotStarted = errors.New("stream session not started")

// Envelope wraps every message sent to the overlay.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the overlay's acknowledgement.
type AckMessage struct {
	Type string `json:"type"`
	For  string `json:"for"`
}

// StartSessionPayload announces a run.
type StartSessionPayload struct {
	Session   string   `json:"session"`
	Renderers []string `json:"renderers"`
}

// Config locates the overlay.
type Config struct {
	URL    string
	Secret string
}

// Streamer is an io.Writer that forwards each written JSON document as one
// frame message. It expects one complete document per Write, which is what
// json.Encoder produces.
type Streamer struct {
	sock    *socket
	cfg     Config
	started atomic.Bool
	frames  atomic.Int64
}

// New creates a Streamer. Call Connect before use.
func New(cfg Config, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Streamer{
		sock: newSocket(logger.With("component", "stream")),
		cfg:  cfg,
	}
}

// Connect dials the overlay.
func (s *Streamer) Connect() error {
	if s.cfg.URL == "" {
		return errors.New("stream URL is empty")
	}
	return s.sock.open(s.cfg.URL, s.cfg.Secret)
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Start announces the session and waits for the overlay's ack. The
// announcement is replayed after a reconnect.
func (s *Streamer) Start(p StartSessionPayload) error {
	data, err := marshalEnvelope(TypeStartSession, p)
	if err != nil {
		return err
	}

	s.sock.setHello(data)
	if err := s.sock.request(data, TypeStartSession, ackTimeout); err != nil {
		return err
	}
	s.started.Store(true)
	return nil
}

// Write sends p as a frame payload. A full send queue drops the frame
// without failing the writer.
func (s *Streamer) Write(p []byte) (int, error) {
	if !s.started.Load() {
		return 0, ErrNotStarted
	}
	payload := bytes.TrimSpace(p)
	if len(payload) == 0 {
		return len(p), nil
	}
	if !json.Valid(payload) {
		return 0, fmt.Errorf("frame is not a JSON document")
	}
	data, err := json.Marshal(Envelope{Type: TypeFrame, Payload: payload})
	if err != nil {
		return 0, err
	}
	if s.sock.send(data) {
		s.frames.Add(1)
	}
	return len(p), nil
}

// Frames returns the number of frames queued for sending.
func (s *Streamer) Frames() int64 {
	return s.frames.Load()
}

// Dropped returns the number of messages dropped on a full queue.
func (s *Streamer) Dropped() int64 {
	return s.sock.dropped.Load()
}

// Close ends the session, if one was started, and disconnects. Frames
// queued before Close are delivered ahead of the end message.
func (s *Streamer) Close() error {
	var endErr error
	if s.started.Swap(false) {
		data, err := marshalEnvelope(TypeEndSession, nil)
		if err == nil {
			err = s.sock.request(data, TypeEndSession, ackTimeout)
		}
		endErr = err
		s.sock.setHello(nil)
	}
	return errors.Join(endErr, s.sock.close())
}
