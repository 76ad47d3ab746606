package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// ElementName is the XML element carrying the JSON payload inside a stanza.
	ElementName = "gcm"
	// Namespace is the XML namespace of the payload element.
	Namespace = "google:mobile:data"

	// ControlTypeConnectionDraining announces that the current connection will close soon.
	ControlTypeConnectionDraining = "CONNECTION_DRAINING"
)

var (
	// ErrMalformedPayload indicates the stanza payload was not valid JSON.
	ErrMalformedPayload = errors.New("malformed stanza payload")
	// ErrMissingFrom indicates a normal message arrived without a sender address.
	ErrMissingFrom = errors.New("missing from address")
	// ErrMissingMessageID indicates a normal message arrived without a message id.
	ErrMissingMessageID = errors.New("missing message id")
	// ErrUnknownMessageType indicates an unrecognised message_type value.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Kind classifies a decoded envelope by its transport-level message type.
type Kind int

const (
	// KindNormal is an upstream data message that must be acknowledged.
	KindNormal Kind = iota
	// KindAck acknowledges a previously sent downstream message.
	KindAck
	// KindNack rejects a previously sent downstream message.
	KindNack
	// KindControl carries connection management directives.
	KindControl
)

func (k Kind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindAck:
		return "ack"
	case KindNack:
		return "nack"
	case KindControl:
		return "control"
	default:
		return "unknown"
	}
}

// Action tags the application-level payload carried by a normal envelope.
type Action string

const (
	// ActionRegisterNewClient adds a client to the directory.
	ActionRegisterNewClient Action = "register_new_client"
	// ActionPingClient routes a ping between two registered clients.
	ActionPingClient Action = "ping_client"
	// ActionBroadcastNewClient announces a registration on the shared topic. Outbound only.
	ActionBroadcastNewClient Action = "broadcast_new_client"
	// ActionSendClientList delivers the directory snapshot to one client. Outbound only.
	ActionSendClientList Action = "send_client_list"
)

// Envelope is one decoded unit of wire traffic.
type Envelope struct {
	From        string
	MessageID   string
	Kind        Kind
	ControlType string
	Action      Action
	Data        json.RawMessage
}

// rawEnvelope mirrors the inbound JSON payload shape.
type rawEnvelope struct {
	From        string          `json:"from"`
	MessageID   string          `json:"message_id"`
	MessageType string          `json:"message_type"`
	ControlType string          `json:"control_type"`
	Data        json.RawMessage `json:"data"`
}

// Decode parses the JSON payload of one inbound stanza into an Envelope.
// Normal messages must carry both a sender address and a message id.
func Decode(raw string) (*Envelope, error) {
	var parsed rawEnvelope
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	envelope := &Envelope{
		From:        strings.TrimSpace(parsed.From),
		MessageID:   strings.TrimSpace(parsed.MessageID),
		ControlType: strings.TrimSpace(parsed.ControlType),
		Data:        parsed.Data,
	}

	//1.- Absent message_type means a normal upstream data message.
	switch strings.TrimSpace(parsed.MessageType) {
	case "":
		envelope.Kind = KindNormal
	case "ack":
		envelope.Kind = KindAck
	case "nack":
		envelope.Kind = KindNack
	case "control":
		envelope.Kind = KindControl
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, parsed.MessageType)
	}

	//2.- Normal messages are only routable when the sender and id are present.
	if envelope.Kind == KindNormal {
		if envelope.From == "" {
			return nil, ErrMissingFrom
		}
		if envelope.MessageID == "" {
			return nil, ErrMissingMessageID
		}
		envelope.Action = peekAction(parsed.Data)
	}

	return envelope, nil
}

// peekAction extracts the action tag from a data payload without decoding the rest.
func peekAction(data json.RawMessage) Action {
	if len(data) == 0 {
		return ""
	}
	var tagged struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return ""
	}
	return Action(strings.TrimSpace(tagged.Action))
}
