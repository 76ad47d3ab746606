package relay

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"friendlyping/relay/internal/directory"
	"friendlyping/relay/internal/logging"
	"friendlyping/relay/internal/wire"
)

const (
	testServerToken = "100000@gcm.googleapis.com"
	testTopic       = "/topics/newclient"
)

// fakeTransport captures stanzas the relay attempts to send.
type fakeTransport struct {
	mu      sync.Mutex
	stanzas []string
	err     error
}

func (f *fakeTransport) Send(stanza string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.stanzas = append(f.stanzas, stanza)
	return nil
}

func (f *fakeTransport) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stanzas...)
}

// sentMessage is the decoded form of one captured outbound stanza.
type sentMessage struct {
	To           string             `json:"to"`
	MessageID    string             `json:"message_id"`
	MessageType  string             `json:"message_type"`
	Data         map[string]any     `json:"data"`
	Notification *wire.Notification `json:"notification"`
}

func decodeSent(t *testing.T, stanza string) sentMessage {
	t.Helper()
	payload, err := wire.Unwrap(stanza)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	var message sentMessage
	if err := json.Unmarshal([]byte(payload), &message); err != nil {
		t.Fatalf("decode sent stanza: %v", err)
	}
	return message
}

func (m sentMessage) action() string {
	if m.Data == nil {
		return ""
	}
	action, _ := m.Data["action"].(string)
	return action
}

type testRelay struct {
	registry   *directory.Registry
	transport  *fakeTransport
	stats      *Stats
	router     *Router
	dispatcher *Dispatcher
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	server := directory.Client{
		Name:              "Larry",
		RegistrationToken: testServerToken,
		ProfilePictureURL: "https://example.com/larry.jpg",
	}
	registry, err := directory.NewRegistry(server)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	transport := &fakeTransport{}
	stats := NewStats()
	logger := logging.NewTestLogger()
	sender := NewSender(wire.NewCodec(), transport, logger, nil, stats)
	router := NewRouter(registry, sender, testTopic, logger)
	dispatcher := NewDispatcher(router, sender, nil, stats, logger)

	return &testRelay{
		registry:   registry,
		transport:  transport,
		stats:      stats,
		router:     router,
		dispatcher: dispatcher,
	}
}

func registerPayload(name, token, picture string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{
		"action":              string(wire.ActionRegisterNewClient),
		"name":                name,
		"registration_token":  token,
		"profile_picture_url": picture,
	})
	return data
}

func pingPayload(to, sender string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{
		"action": string(wire.ActionPingClient),
		"to":     to,
		"sender": sender,
	})
	return data
}

func inboundStanza(from, messageID string, data json.RawMessage) string {
	payload, _ := json.Marshal(map[string]any{
		"from":       from,
		"message_id": messageID,
		"data":       json.RawMessage(data),
	})
	return string(payload)
}

func registeredClient(i int) directory.Client {
	return directory.Client{
		Name:              fmt.Sprintf("client-%d", i),
		RegistrationToken: fmt.Sprintf("token-%d", i),
		ProfilePictureURL: "https://example.com/p.jpg",
	}
}
