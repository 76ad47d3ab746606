package ccs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"friendlyping/relay/internal/logging"
	"friendlyping/relay/internal/wire"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultMaxBackoff   = 2 * time.Minute
	initialBackoff      = 250 * time.Millisecond
	writeWait           = 10 * time.Second
	authWait            = 15 * time.Second
)

var (
	// ErrNotConnected reports a send while no connection is live.
	ErrNotConnected = errors.New("ccs: session not connected")
	// ErrClosed reports a send after Close.
	ErrClosed = errors.New("ccs: session closed")
	// ErrAuthFailed reports rejected credentials during the handshake.
	ErrAuthFailed = errors.New("ccs: authentication rejected")
)

// authRequest is the first frame on every fresh connection.
type authRequest struct {
	Type     string `json:"type"`
	SenderID string `json:"sender_id"`
	APIKey   string `json:"api_key"`
}

// authResult is the endpoint's reply to an authRequest.
type authResult struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Options configures a websocket session.
type Options struct {
	URL                 string
	APIKey              string
	SenderID            string
	PingInterval        time.Duration
	MaxReconnectBackoff time.Duration
	Logger              *logging.Logger
	Dialer              *websocket.Dialer
}

// WebsocketSession keeps one authenticated websocket connection to the
// endpoint alive, reconnecting with capped exponential backoff when it drops.
type WebsocketSession struct {
	opts   Options
	logger *logging.Logger

	mu   sync.RWMutex
	conn *websocket.Conn

	writeMu sync.Mutex

	receiverMu sync.RWMutex
	receiver   func(payload string)

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ Session = (*WebsocketSession)(nil)

// Dial connects and authenticates against the configured endpoint, then
// starts the read and keepalive loops. A failed initial connection is
// returned to the caller; nothing keeps retrying until a session exists.
func Dial(opts Options) (*WebsocketSession, error) {
	if opts.URL == "" {
		return nil, errors.New("ccs: endpoint url is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.L()
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.MaxReconnectBackoff <= 0 {
		opts.MaxReconnectBackoff = defaultMaxBackoff
	}

	session := &WebsocketSession{
		opts:   opts,
		logger: opts.Logger,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	conn, err := session.connect()
	if err != nil {
		return nil, err
	}
	session.setConn(conn)

	session.wg.Add(2)
	go session.readLoop()
	go session.pingLoop()
	return session, nil
}

// Send writes one stanza to the live connection.
func (s *WebsocketSession) Send(stanza string) error {
	if s == nil {
		return ErrNotConnected
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	conn := s.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(stanza)); err != nil {
		return fmt.Errorf("writing stanza: %w", err)
	}
	return nil
}

// SetReceiver registers the consumer for inbound data payloads.
func (s *WebsocketSession) SetReceiver(receiver func(payload string)) {
	if s == nil {
		return
	}
	s.receiverMu.Lock()
	s.receiver = receiver
	s.receiverMu.Unlock()
}

// Events exposes the lifecycle notification channel.
func (s *WebsocketSession) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.events
}

// Close sends a close frame, tears the connection down and waits for the
// session goroutines to finish.
func (s *WebsocketSession) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() { close(s.done) })
	if conn := s.currentConn(); conn != nil {
		s.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		_ = conn.Close()
	}
	s.wg.Wait()
	return nil
}

// connect dials the endpoint and performs the credential handshake.
func (s *WebsocketSession) connect() (*websocket.Conn, error) {
	conn, _, err := s.opts.Dialer.Dial(s.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", s.opts.URL, err)
	}
	s.emit(Event{Kind: EventConnected})

	if err := authenticate(conn, s.opts); err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.emit(Event{Kind: EventAuthenticated})
	return conn, nil
}

func authenticate(conn *websocket.Conn, opts Options) error {
	//1.- The first frame on a fresh connection carries the relay credentials.
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	request := authRequest{Type: "auth", SenderID: opts.SenderID, APIKey: opts.APIKey}
	if err := conn.WriteJSON(request); err != nil {
		return fmt.Errorf("sending auth request: %w", err)
	}

	//2.- The endpoint answers with an auth result before any stanza flows.
	_ = conn.SetReadDeadline(time.Now().Add(authWait))
	var result authResult
	if err := conn.ReadJSON(&result); err != nil {
		return fmt.Errorf("reading auth result: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if result.Status != "ok" {
		return fmt.Errorf("%w: %s", ErrAuthFailed, result.Reason)
	}
	return nil
}

func (s *WebsocketSession) readLoop() {
	defer s.wg.Done()
	for {
		conn := s.currentConn()
		if conn == nil {
			return
		}
		_, frame, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				s.emit(Event{Kind: EventClosed})
				return
			default:
			}
			s.emit(Event{Kind: EventClosedOnError, Err: err})
			if !s.reconnect() {
				return
			}
			continue
		}
		s.handleFrame(string(frame))
	}
}

// handleFrame unwraps one inbound stanza and hands its JSON payload to the
// registered receiver. Frames without a data payload are dropped.
func (s *WebsocketSession) handleFrame(frame string) {
	payload, err := wire.Unwrap(frame)
	if err != nil {
		s.logger.Debug("ignoring frame without data payload", logging.Error(err))
		return
	}
	s.receiverMu.RLock()
	receiver := s.receiver
	s.receiverMu.RUnlock()
	if receiver != nil {
		receiver(payload)
	}
}

// reconnect redials with capped exponential backoff until a connection is
// re-established or the session is closed. Returns false when closed.
func (s *WebsocketSession) reconnect() bool {
	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		s.emit(Event{Kind: EventReconnecting, Attempt: attempt})
		select {
		case <-s.done:
			return false
		case <-time.After(backoff):
		}

		conn, err := s.connect()
		if err == nil {
			s.setConn(conn)
			s.emit(Event{Kind: EventReconnected, Attempt: attempt})
			return true
		}
		s.emit(Event{Kind: EventReconnectFailed, Attempt: attempt, Err: err})

		backoff *= 2
		if backoff > s.opts.MaxReconnectBackoff {
			backoff = s.opts.MaxReconnectBackoff
		}
	}
}

func (s *WebsocketSession) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			conn := s.currentConn()
			if conn == nil {
				continue
			}
			s.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				// The read loop notices the broken connection and reconnects.
				s.logger.Debug("keepalive ping failed", logging.Error(err))
			}
		}
	}
}

// emit never blocks: slow event consumers lose notifications rather than
// stalling the read loop.
func (s *WebsocketSession) emit(event Event) {
	select {
	case s.events <- event:
	default:
	}
}

func (s *WebsocketSession) currentConn() *websocket.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

func (s *WebsocketSession) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}
