package relay

import (
	"encoding/json"
	"strings"
	"testing"

	"friendlyping/relay/internal/wire"
)

func TestRegisterNewClientAnnouncesAndSendsList(t *testing.T) {
	relay := newTestRelay(t)

	relay.router.Handle(wire.ActionRegisterNewClient, registerPayload("Ada", "token-ada", "https://example.com/ada.jpg"))

	if _, ok := relay.registry.Get("token-ada"); !ok {
		t.Fatalf("expected registered client in directory")
	}
	sent := relay.transport.sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 outbound messages, got %d", len(sent))
	}

	//1.- Exactly one topic broadcast and one client list, in either order.
	var broadcast, list *sentMessage
	for i := range sent {
		message := decodeSent(t, sent[i])
		switch message.action() {
		case string(wire.ActionBroadcastNewClient):
			broadcast = &message
		case string(wire.ActionSendClientList):
			list = &message
		default:
			t.Fatalf("unexpected outbound action %q", message.action())
		}
	}
	if broadcast == nil || list == nil {
		t.Fatalf("expected one broadcast and one client list, got broadcast=%v list=%v", broadcast != nil, list != nil)
	}

	if broadcast.To != testTopic {
		t.Fatalf("broadcast recipient = %q, want %q", broadcast.To, testTopic)
	}
	client, ok := broadcast.Data["client"].(map[string]any)
	if !ok {
		t.Fatalf("broadcast missing client payload: %v", broadcast.Data)
	}
	if client["registration_token"] != "token-ada" || client["name"] != "Ada" {
		t.Fatalf("broadcast carries wrong client: %v", client)
	}

	if list.To != "token-ada" {
		t.Fatalf("client list recipient = %q, want token-ada", list.To)
	}
	clients, ok := list.Data["clients"].([]any)
	if !ok {
		t.Fatalf("client list missing clients payload: %v", list.Data)
	}
	if len(clients) != 2 {
		t.Fatalf("client list length = %d, want 2 (server + new client)", len(clients))
	}
	tokens := make(map[string]bool, len(clients))
	for _, entry := range clients {
		record, ok := entry.(map[string]any)
		if !ok {
			t.Fatalf("client list entry is not an object: %v", entry)
		}
		token, _ := record["registration_token"].(string)
		tokens[token] = true
	}
	if !tokens[testServerToken] || !tokens["token-ada"] {
		t.Fatalf("client list missing expected tokens: %v", tokens)
	}
}

func TestRegisterNewClientRejectsIncompleteClients(t *testing.T) {
	cases := []struct {
		name    string
		payload json.RawMessage
	}{
		{name: "missing name", payload: registerPayload("", "token-x", "https://example.com/p.jpg")},
		{name: "missing token", payload: registerPayload("Ada", "", "https://example.com/p.jpg")},
		{name: "missing picture", payload: registerPayload("Ada", "token-x", "")},
		{name: "malformed json", payload: json.RawMessage(`{"name": 5}`)},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			relay := newTestRelay(t)

			relay.router.Handle(wire.ActionRegisterNewClient, testCase.payload)

			if got := relay.registry.Len(); got != 1 {
				t.Fatalf("directory size = %d, want 1 (server only)", got)
			}
			if sent := relay.transport.sent(); len(sent) != 0 {
				t.Fatalf("expected no outbound messages, got %d", len(sent))
			}
		})
	}
}

func TestRegisterNewClientIsIdempotentInDirectory(t *testing.T) {
	relay := newTestRelay(t)
	payload := registerPayload("Ada", "token-ada", "https://example.com/ada.jpg")

	relay.router.Handle(wire.ActionRegisterNewClient, payload)
	relay.router.Handle(wire.ActionRegisterNewClient, payload)

	//1.- One directory entry, but the announce/list pair repeats per request.
	if got := relay.registry.Len(); got != 2 {
		t.Fatalf("directory size = %d, want 2 (server + client)", got)
	}
	if sent := relay.transport.sent(); len(sent) != 4 {
		t.Fatalf("expected 4 outbound messages after re-registration, got %d", len(sent))
	}
}

func TestPingClientRoutesToRecipient(t *testing.T) {
	relay := newTestRelay(t)
	relay.router.Handle(wire.ActionRegisterNewClient, registerPayload("Ada", "token-ada", "https://example.com/ada.jpg"))
	relay.router.Handle(wire.ActionRegisterNewClient, registerPayload("Grace", "token-grace", "https://example.com/grace.jpg"))
	before := len(relay.transport.sent())

	relay.router.Handle(wire.ActionPingClient, pingPayload("token-grace", "token-ada"))

	sent := relay.transport.sent()
	if len(sent) != before+1 {
		t.Fatalf("expected exactly one ping message, got %d", len(sent)-before)
	}
	ping := decodeSent(t, sent[len(sent)-1])
	if ping.To != "token-grace" {
		t.Fatalf("ping recipient = %q, want token-grace", ping.To)
	}
	if ping.action() != string(wire.ActionPingClient) {
		t.Fatalf("ping action = %q", ping.action())
	}
	if ping.Data["sender"] != "token-ada" {
		t.Fatalf("ping sender = %v, want token-ada", ping.Data["sender"])
	}
	if ping.Notification == nil {
		t.Fatalf("ping missing notification")
	}
	if ping.Notification.Title != pingTitle {
		t.Fatalf("notification title = %q", ping.Notification.Title)
	}
	if !strings.Contains(ping.Notification.Body, "Ada") {
		t.Fatalf("notification body %q does not name the sender", ping.Notification.Body)
	}
	if ping.Notification.ClickAction != pingClickAction {
		t.Fatalf("notification click action = %q", ping.Notification.ClickAction)
	}
}

func TestPingClientSelfPingAnswersSender(t *testing.T) {
	relay := newTestRelay(t)
	relay.router.Handle(wire.ActionRegisterNewClient, registerPayload("Ada", "token-ada", "https://example.com/ada.jpg"))
	before := len(relay.transport.sent())

	relay.router.Handle(wire.ActionPingClient, pingPayload(testServerToken, "token-ada"))

	sent := relay.transport.sent()
	if len(sent) != before+1 {
		t.Fatalf("expected exactly one ping reply, got %d", len(sent)-before)
	}
	reply := decodeSent(t, sent[len(sent)-1])
	if reply.To != "token-ada" {
		t.Fatalf("self-ping reply recipient = %q, want token-ada", reply.To)
	}
	if reply.Data["sender"] != testServerToken {
		t.Fatalf("self-ping announced sender = %v, want server token", reply.Data["sender"])
	}
	if reply.Notification == nil || !strings.Contains(reply.Notification.Body, "Larry") {
		t.Fatalf("self-ping notification does not name the server client: %+v", reply.Notification)
	}
}

func TestPingClientRejectsMissingAndUnknownTokens(t *testing.T) {
	cases := []struct {
		name    string
		payload json.RawMessage
	}{
		{name: "missing to", payload: pingPayload("", "token-ada")},
		{name: "missing sender", payload: pingPayload("token-grace", "")},
		{name: "unregistered sender", payload: pingPayload("token-grace", "token-ghost")},
		{name: "malformed json", payload: json.RawMessage(`{"to": 5}`)},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			relay := newTestRelay(t)
			relay.router.Handle(wire.ActionRegisterNewClient, registerPayload("Ada", "token-ada", "https://example.com/ada.jpg"))
			before := len(relay.transport.sent())

			relay.router.Handle(wire.ActionPingClient, testCase.payload)

			if sent := relay.transport.sent(); len(sent) != before {
				t.Fatalf("expected no outbound ping, got %d extra messages", len(sent)-before)
			}
		})
	}
}

func TestHandleIgnoresUnknownAndMissingActions(t *testing.T) {
	relay := newTestRelay(t)

	relay.router.Handle(wire.Action("delete_all_clients"), json.RawMessage(`{}`))
	relay.router.Handle(wire.Action(""), json.RawMessage(`{}`))

	if sent := relay.transport.sent(); len(sent) != 0 {
		t.Fatalf("expected no outbound messages, got %d", len(sent))
	}
	if got := relay.registry.Len(); got != 1 {
		t.Fatalf("directory size = %d, want 1", got)
	}
}
