package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Notification describes the platform display notification attached to a ping.
type Notification struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Icon        string `json:"icon"`
	Sound       string `json:"sound"`
	ClickAction string `json:"click_action"`
}

// outboundMessage mirrors the downstream JSON payload shape.
type outboundMessage struct {
	To           string         `json:"to"`
	MessageID    string         `json:"message_id"`
	MessageType  string         `json:"message_type,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
}

// Codec assembles outbound stanzas, stamping each with a unique message id.
type Codec struct {
	newID func() string
}

// NewCodec constructs a codec using UUID message id generation.
func NewCodec() *Codec {
	return &Codec{newID: func() string { return uuid.New().String() }}
}

// WithIDGenerator overrides id generation, enabling deterministic unit tests.
func (c *Codec) WithIDGenerator(generate func() string) {
	if c == nil || generate == nil {
		return
	}
	c.newID = generate
}

// Encode builds a downstream data stanza addressed to the recipient token or
// topic. Every call stamps a freshly generated message id, which is returned
// alongside the stanza so callers can correlate acknowledgments.
func (c *Codec) Encode(to string, data map[string]any, notification *Notification) (string, string, error) {
	if c == nil {
		return "", "", errors.New("codec not initialised")
	}
	if to == "" {
		return "", "", errors.New("recipient must be provided")
	}
	message := outboundMessage{
		To:           to,
		MessageID:    c.newID(),
		Data:         data,
		Notification: notification,
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return "", "", fmt.Errorf("encode stanza payload: %w", err)
	}
	return wrapStanza(string(payload)), message.MessageID, nil
}

// EncodeAck builds the acknowledgment stanza for one received upstream
// message, reusing the original inbound message id.
func (c *Codec) EncodeAck(to, messageID string) (string, error) {
	if c == nil {
		return "", errors.New("codec not initialised")
	}
	if to == "" || messageID == "" {
		return "", errors.New("ack requires recipient and message id")
	}
	message := outboundMessage{
		To:          to,
		MessageID:   messageID,
		MessageType: "ack",
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("encode ack payload: %w", err)
	}
	return wrapStanza(string(payload)), nil
}

// wrapStanza wraps the JSON payload in the namespaced element expected by the transport.
func wrapStanza(payload string) string {
	return fmt.Sprintf("<message><%s xmlns=%q>%s</%s></message>", ElementName, Namespace, payload, ElementName)
}
