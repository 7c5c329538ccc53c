package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	outboxSize     = 4096
	ackBufferSize  = 16
	redialAttempts = 10
	maxRetryDelay  = 30 * time.Second
	writeWait      = 10 * time.Second
	ackTimeout     = 10 * time.Second
)

var dialer = &ws.Dialer{
	Proxy:            ws.DefaultDialer.Proxy,
	HandshakeTimeout: 5 * time.Second,
}

// socket is a self-healing websocket to the overlay. Only its writer
// goroutine writes data frames; a broken socket is redialed in the
// background and the session hello is replayed before anything else.
type socket struct {
	target *url.URL

	mu     sync.Mutex
	ws     *ws.Conn
	retire chan struct{} // closed when ws is replaced
	hello  []byte
	closed bool

	outbox chan []byte
	acks   chan AckMessage
	stop   chan struct{}

	retryDelay time.Duration
	dropped    atomic.Int64

	logger *slog.Logger
}

func newSocket(logger *slog.Logger) *socket {
	return &socket{
		outbox:     make(chan []byte, outboxSize),
		acks:       make(chan AckMessage, ackBufferSize),
		stop:       make(chan struct{}),
		retryDelay: time.Second,
		logger:     logger,
	}
}

// open parses rawURL, adds the secret and dials once.
func (s *socket) open(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid stream URL: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	s.target = u

	conn, err := s.dial()
	if err != nil {
		return err
	}
	s.attach(conn)
	return nil
}

func (s *socket) dial() (*ws.Conn, error) {
	conn, _, err := dialer.Dial(s.target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", s.target.Redacted(), err)
	}
	return conn, nil
}

// attach makes conn current and starts its reader and writer. After close
// it just discards conn.
func (s *socket) attach(conn *ws.Conn) {
	retire := make(chan struct{})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.ws, s.retire = conn, retire
	s.mu.Unlock()

	go s.writer(conn, retire)
	go s.reader(conn)
}

func (s *socket) setHello(msg []byte) {
	s.mu.Lock()
	s.hello = msg
	s.mu.Unlock()
}

func (s *socket) writer(conn *ws.Conn, retire <-chan struct{}) {
	for {
		var msg []byte
		select {
		case <-s.stop:
			return
		case <-retire:
			return
		case msg = <-s.outbox:
		}
		if err := writeText(conn, msg); err != nil {
			s.logger.Warn("Stream write failed", "error", err)
			go s.redial(conn)
			return
		}
	}
}

func writeText(conn *ws.Conn, msg []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, msg)
}

// reader forwards acks. The overlay sends nothing else we act on.
func (s *socket) reader(conn *ws.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if s.isClosed() {
				return
			}
			s.logger.Warn("Stream read failed", "error", err)
			go s.redial(conn)
			return
		}

		var ack AckMessage
		if json.Unmarshal(msg, &ack) != nil || ack.Type != TypeAck {
			s.logger.Debug("Ignoring overlay message", "raw", string(msg))
			continue
		}
		select {
		case s.acks <- ack:
		default:
			s.logger.Debug("Ack buffer full", "for", ack.For)
		}
	}
}

func (s *socket) isClosed() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// redial replaces broken. Reader and writer both report the same failure;
// whichever arrives second finds broken already retired and returns.
func (s *socket) redial(broken *ws.Conn) {
	s.mu.Lock()
	if s.closed || s.ws != broken {
		s.mu.Unlock()
		return
	}
	broken.Close()
	close(s.retire)
	s.ws = nil
	s.mu.Unlock()

	delay := s.retryDelay
	for attempt := range redialAttempts {
		select {
		case <-s.stop:
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)

		conn, err := s.dial()
		if err != nil {
			s.logger.Warn("Stream redial failed", "attempt", attempt+1, "error", err)
			continue
		}

		s.mu.Lock()
		hello := s.hello
		s.mu.Unlock()
		if hello != nil {
			if err := writeText(conn, hello); err != nil {
				s.logger.Warn("Replaying session start failed", "attempt", attempt+1, "error", err)
				conn.Close()
				continue
			}
		}

		s.attach(conn)
		s.logger.Info("Stream reconnected", "attempt", attempt+1)
		return
	}
	s.logger.Error("Stream gave up reconnecting", "attempts", redialAttempts)
}

// send queues msg without blocking. A full outbox drops it.
func (s *socket) send(msg []byte) bool {
	select {
	case s.outbox <- msg:
		return true
	default:
		if s.dropped.Add(1) == 1 {
			s.logger.Warn("Stream outbox full, dropping messages")
		}
		return false
	}
}

// request sends msg and waits for the overlay to ack the given type.
func (s *socket) request(msg []byte, ackFor string, timeout time.Duration) error {
	if !s.send(msg) {
		return fmt.Errorf("%s not sent: outbox full", ackFor)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case ack := <-s.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-deadline.C:
			return fmt.Errorf("no ack for %s within %s", ackFor, timeout)
		case <-s.stop:
			return fmt.Errorf("stream closed while waiting for %s ack", ackFor)
		}
	}
}

// close says goodbye to the overlay and stops the loops. Safe to repeat.
func (s *socket) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stop)
	conn := s.ws
	s.ws = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	bye := ws.FormatCloseMessage(ws.CloseNormalClosure, "")
	_ = conn.WriteControl(ws.CloseMessage, bye, time.Now().Add(writeWait))
	return conn.Close()
}
