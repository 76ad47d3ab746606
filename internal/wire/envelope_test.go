package wire

import (
	"errors"
	"testing"
)

func TestDecodeNormalMessage(t *testing.T) {
	raw := `{"from":"token-a","message_id":"m-1","data":{"action":"ping_client","to":"token-b","sender":"token-a"}}`

	envelope, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if envelope.Kind != KindNormal {
		t.Fatalf("expected normal kind, got %v", envelope.Kind)
	}
	if envelope.From != "token-a" {
		t.Fatalf("unexpected from: %q", envelope.From)
	}
	if envelope.MessageID != "m-1" {
		t.Fatalf("unexpected message id: %q", envelope.MessageID)
	}
	if envelope.Action != ActionPingClient {
		t.Fatalf("unexpected action: %q", envelope.Action)
	}
	if len(envelope.Data) == 0 {
		t.Fatal("expected data payload to be retained")
	}
}

func TestDecodeAckAndNack(t *testing.T) {
	cases := []struct {
		raw  string
		kind Kind
	}{
		{`{"message_type":"ack","message_id":"m-2","from":"token-a"}`, KindAck},
		{`{"message_type":"nack","message_id":"m-3","from":"token-a"}`, KindNack},
	}
	for _, tc := range cases {
		envelope, err := Decode(tc.raw)
		if err != nil {
			t.Fatalf("Decode(%q): %v", tc.raw, err)
		}
		if envelope.Kind != tc.kind {
			t.Fatalf("expected kind %v, got %v", tc.kind, envelope.Kind)
		}
	}
}

func TestDecodeControlMessage(t *testing.T) {
	envelope, err := Decode(`{"message_type":"control","control_type":"CONNECTION_DRAINING"}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if envelope.Kind != KindControl {
		t.Fatalf("expected control kind, got %v", envelope.Kind)
	}
	if envelope.ControlType != ControlTypeConnectionDraining {
		t.Fatalf("unexpected control type: %q", envelope.ControlType)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, err := Decode(`{"from":`)
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected malformed payload error, got %v", err)
	}
}

func TestDecodeRejectsNormalWithoutFrom(t *testing.T) {
	_, err := Decode(`{"message_id":"m-4","data":{"action":"ping_client"}}`)
	if !errors.Is(err, ErrMissingFrom) {
		t.Fatalf("expected missing from error, got %v", err)
	}
}

func TestDecodeRejectsNormalWithoutMessageID(t *testing.T) {
	_, err := Decode(`{"from":"token-a","data":{"action":"ping_client"}}`)
	if !errors.Is(err, ErrMissingMessageID) {
		t.Fatalf("expected missing message id error, got %v", err)
	}
}

func TestDecodeRejectsUnknownMessageType(t *testing.T) {
	_, err := Decode(`{"message_type":"receipt","message_id":"m-5"}`)
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected unknown message type error, got %v", err)
	}
}
