package relay

import (
	"friendlyping/relay/internal/journal"
	"friendlyping/relay/internal/logging"
	"friendlyping/relay/internal/wire"
)

// Dispatcher classifies every received envelope and routes data messages to
// the action router while acknowledging them. Malformed traffic degrades to
// log-and-drop; only transport-level failures are fatal to the relay.
type Dispatcher struct {
	router  *Router
	sender  *Sender
	journal *journal.Journal
	stats   *Stats
	logger  *logging.Logger
}

// NewDispatcher constructs the inbound dispatcher. journal may be nil.
func NewDispatcher(router *Router, sender *Sender, j *journal.Journal, stats *Stats, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.L()
	}
	return &Dispatcher{router: router, sender: sender, journal: j, stats: stats, logger: logger}
}

// Receive is the transport callback. Each payload is handled on its own
// goroutine because the transport may deliver several stanzas in quick
// succession; handlers only share the directory registry.
func (d *Dispatcher) Receive(payload string) {
	if d == nil {
		return
	}
	go d.HandlePayload(payload)
}

// HandlePayload processes the JSON payload of one inbound stanza to completion.
func (d *Dispatcher) HandlePayload(payload string) {
	if d == nil {
		return
	}
	envelope, err := wire.Decode(payload)
	if err != nil {
		d.stats.markDropped()
		d.logger.Warn("dropping undecodable message", logging.Error(err))
		return
	}

	if err := d.journal.Append(journal.Entry{
		Direction: journal.DirectionInbound,
		Kind:      envelope.Kind.String(),
		Action:    string(envelope.Action),
		From:      envelope.From,
		MessageID: envelope.MessageID,
	}); err != nil {
		d.logger.Warn("failed journaling inbound message", logging.Error(err))
	}

	switch envelope.Kind {
	case wire.KindNormal:
		d.handleNormal(envelope)
	case wire.KindAck:
		d.logger.Info("ack received",
			logging.String("message_id", envelope.MessageID),
			logging.String("from", envelope.From))
	case wire.KindNack:
		// A production counterpart would schedule a resend; this relay only reports.
		d.logger.Info("nack received",
			logging.String("message_id", envelope.MessageID),
			logging.String("from", envelope.From))
	case wire.KindControl:
		d.handleControl(envelope)
	}
}

func (d *Dispatcher) handleNormal(envelope *wire.Envelope) {
	//1.- Data must be present before the router can classify the action.
	if len(envelope.Data) == 0 {
		d.stats.markDropped()
		d.logger.Warn("dropping data message without payload",
			logging.String("from", envelope.From),
			logging.String("message_id", envelope.MessageID))
		return
	}
	d.stats.markInbound()
	d.router.Handle(envelope.Action, envelope.Data)

	//2.- Acknowledge receipt exactly once, reusing the inbound message id.
	if d.sender.Ack(envelope.From, envelope.MessageID) {
		d.stats.markAcked()
	}
}

func (d *Dispatcher) handleControl(envelope *wire.Envelope) {
	if envelope.ControlType == wire.ControlTypeConnectionDraining {
		// The transport library performs the actual reconnection.
		d.logger.Info("connection draining: current connection will be closed soon")
		return
	}
	d.logger.Info("unrecognized control message received",
		logging.String("control_type", envelope.ControlType))
}
