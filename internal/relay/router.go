package relay

import (
	"encoding/json"
	"fmt"

	"friendlyping/relay/internal/directory"
	"friendlyping/relay/internal/logging"
	"friendlyping/relay/internal/wire"
)

const (
	pingTitle       = "Friendly Ping!"
	pingIcon        = "mipmap/ic_launcher"
	pingSound       = "default"
	pingClickAction = "com.google.samples.apps.friendlyping.pingReceived"
)

func pingBody(name string) string {
	return fmt.Sprintf("%s is pinging you.", name)
}

// Router executes the application-level actions carried by normal envelopes,
// mutating the client directory and emitting outbound messages as required.
type Router struct {
	registry *directory.Registry
	sender   *Sender
	topic    string
	logger   *logging.Logger
}

// NewRouter constructs the action router around an injected directory registry.
func NewRouter(registry *directory.Registry, sender *Sender, topic string, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.L()
	}
	return &Router{registry: registry, sender: sender, topic: topic, logger: logger}
}

// Handle executes one action. Unknown actions are logged and ignored so newer
// clients never abort processing on this relay.
func (r *Router) Handle(action wire.Action, data json.RawMessage) {
	if r == nil {
		return
	}
	switch action {
	case wire.ActionRegisterNewClient:
		r.registerNewClient(data)
	case wire.ActionPingClient:
		r.pingClient(data)
	case "":
		r.logger.Info("message received missing action")
	default:
		r.logger.Info("ignoring unrecognized action", logging.String("action", string(action)))
	}
}

// registerNewClient adds the candidate to the directory, announces it on the
// shared topic, and delivers the full directory snapshot to the new client.
// The two outbound sends are independent; their relative delivery order is
// not guaranteed.
func (r *Router) registerNewClient(data json.RawMessage) {
	var client directory.Client
	if err := json.Unmarshal(data, &client); err != nil {
		r.logger.Warn("could not unpack received data into a client", logging.Error(err))
		return
	}
	if !client.Valid() {
		r.logger.Warn("rejecting client registration with missing fields",
			logging.String("token", client.RegistrationToken))
		return
	}

	if err := r.registry.Upsert(client); err != nil {
		r.logger.Warn("failed storing client", logging.Error(err))
		return
	}
	r.logger.Info("client registered",
		logging.String("token", client.RegistrationToken),
		logging.Int("directory_size", r.registry.Len()))

	r.sender.Dispatch(r.topic, wire.ActionBroadcastNewClient, map[string]any{"client": client}, nil)
	r.sender.Dispatch(client.RegistrationToken, wire.ActionSendClientList, map[string]any{"clients": r.registry.Snapshot()}, nil)
}

// pingClient routes a ping to its recipient. A ping addressed to the relay's
// own synthetic token is answered directly: the outbound notification goes
// back to the original sender with the server client as the announced sender.
func (r *Router) pingClient(data json.RawMessage) {
	var ping struct {
		To     string `json:"to"`
		Sender string `json:"sender"`
	}
	if err := json.Unmarshal(data, &ping); err != nil {
		r.logger.Warn("could not unpack ping payload", logging.Error(err))
		return
	}
	if ping.To == "" || ping.Sender == "" {
		r.logger.Warn("rejecting ping with missing tokens",
			logging.String("to", ping.To),
			logging.String("sender", ping.Sender))
		return
	}

	recipient := ping.To
	var announced directory.Client
	if ping.To == r.registry.ServerToken() {
		//1.- Self-ping: answer the sender directly on the relay's behalf.
		recipient = ping.Sender
		announced = r.registry.ServerClient()
	} else {
		sender, ok := r.registry.Get(ping.Sender)
		if !ok {
			// Unregistered senders have no display name to announce.
			r.logger.Warn("rejecting ping from unregistered sender",
				logging.String("sender", ping.Sender))
			return
		}
		announced = sender
	}

	notification := &wire.Notification{
		Title:       pingTitle,
		Body:        pingBody(announced.Name),
		Icon:        pingIcon,
		Sound:       pingSound,
		ClickAction: pingClickAction,
	}
	r.sender.Dispatch(recipient, wire.ActionPingClient,
		map[string]any{"sender": announced.RegistrationToken}, notification)
}
