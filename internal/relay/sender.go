package relay

import (
	"friendlyping/relay/internal/journal"
	"friendlyping/relay/internal/logging"
	"friendlyping/relay/internal/wire"
)

// Transport is the narrow send capability the relay needs from the connection.
// The session behind it owns framing, authentication and reconnection.
type Transport interface {
	Send(stanza string) error
}

// Sender assembles outgoing envelopes and hands them to the transport.
// Delivery is fire-and-forget: failures are logged and never retried here.
type Sender struct {
	codec     *wire.Codec
	transport Transport
	logger    *logging.Logger
	journal   *journal.Journal
	stats     *Stats
}

// NewSender constructs the outbound sender. journal may be nil to disable recording.
func NewSender(codec *wire.Codec, transport Transport, logger *logging.Logger, j *journal.Journal, stats *Stats) *Sender {
	if logger == nil {
		logger = logging.L()
	}
	return &Sender{codec: codec, transport: transport, logger: logger, journal: j, stats: stats}
}

// Dispatch encodes and sends one data message to a recipient token or topic.
// The action tag is folded into the payload alongside the extra fields.
func (s *Sender) Dispatch(to string, action wire.Action, extra map[string]any, notification *wire.Notification) {
	if s == nil {
		return
	}
	data := make(map[string]any, len(extra)+1)
	data["action"] = string(action)
	for key, value := range extra {
		data[key] = value
	}

	stanza, messageID, err := s.codec.Encode(to, data, notification)
	if err != nil {
		s.logger.Error("failed encoding outbound message",
			logging.String("to", to),
			logging.String("action", string(action)),
			logging.Error(err))
		s.stats.markSendFailure()
		return
	}
	s.deliver(stanza, journal.Entry{
		Direction: journal.DirectionOutbound,
		Kind:      wire.KindNormal.String(),
		Action:    string(action),
		To:        to,
		MessageID: messageID,
	})
}

// Ack acknowledges one received upstream message using its original id.
func (s *Sender) Ack(to, messageID string) bool {
	if s == nil {
		return false
	}
	stanza, err := s.codec.EncodeAck(to, messageID)
	if err != nil {
		s.logger.Error("failed encoding ack",
			logging.String("to", to),
			logging.String("message_id", messageID),
			logging.Error(err))
		return false
	}
	return s.deliver(stanza, journal.Entry{
		Direction: journal.DirectionOutbound,
		Kind:      wire.KindAck.String(),
		To:        to,
		MessageID: messageID,
	})
}

func (s *Sender) deliver(stanza string, record journal.Entry) bool {
	if err := s.transport.Send(stanza); err != nil {
		s.logger.Error("failed sending stanza",
			logging.String("to", record.To),
			logging.String("message_id", record.MessageID),
			logging.Error(err))
		s.stats.markSendFailure()
		return false
	}
	s.stats.markOutbound()
	if err := s.journal.Append(record); err != nil {
		s.logger.Warn("failed journaling outbound message", logging.Error(err))
	}
	return true
}
