// Package ccs maintains the persistent connection to the Cloud Connection
// Server endpoint. It hides framing, authentication and reconnection behind a
// narrow session interface; the relay core only sees stanza payloads and a
// stream of lifecycle events.
package ccs

// Session is the relay's view of one live upstream connection.
type Session interface {
	// Send writes one stanza to the connection. It fails when the session is
	// not currently connected; the caller treats delivery as fire-and-forget.
	Send(stanza string) error
	// SetReceiver registers the single consumer for inbound message payloads.
	// The receiver is invoked with the JSON payload of each data stanza.
	SetReceiver(receiver func(payload string))
	// Events exposes lifecycle notifications. Events are observational; the
	// session handles reconnection itself.
	Events() <-chan Event
	// Close tears the connection down and stops the session's goroutines.
	Close() error
}

// EventKind classifies a lifecycle notification.
type EventKind int

const (
	// EventConnected fires once the websocket handshake completes.
	EventConnected EventKind = iota
	// EventAuthenticated fires once the endpoint accepts the relay credentials.
	EventAuthenticated
	// EventClosed fires when the connection ends deliberately.
	EventClosed
	// EventClosedOnError fires when the connection drops unexpectedly.
	EventClosedOnError
	// EventReconnecting fires before each reconnection attempt.
	EventReconnecting
	// EventReconnected fires when a reconnection attempt succeeds.
	EventReconnected
	// EventReconnectFailed fires when a reconnection attempt fails.
	EventReconnectFailed
)

// String names the event kind for logs.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventAuthenticated:
		return "authenticated"
	case EventClosed:
		return "closed"
	case EventClosedOnError:
		return "closed_on_error"
	case EventReconnecting:
		return "reconnecting"
	case EventReconnected:
		return "reconnected"
	case EventReconnectFailed:
		return "reconnect_failed"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification from the session.
type Event struct {
	Kind    EventKind
	Err     error
	Attempt int
}
