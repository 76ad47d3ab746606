package config

import (
	"strings"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("RELAY_API_KEY", "test-api-key")
	t.Setenv("RELAY_SENDER_ID", "1234567890")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("RELAY_ADDR", "")
	t.Setenv("RELAY_CCS_URL", "")
	t.Setenv("RELAY_NEW_CLIENT_TOPIC", "")
	t.Setenv("RELAY_PING_INTERVAL", "")
	t.Setenv("RELAY_SNAPSHOT_INTERVAL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != DefaultAddr {
		t.Fatalf("expected default addr %q, got %q", DefaultAddr, cfg.Address)
	}
	if cfg.CCSURL != DefaultCCSURL {
		t.Fatalf("expected default CCS URL %q, got %q", DefaultCCSURL, cfg.CCSURL)
	}
	if cfg.NewClientTopic != DefaultNewClientTopic {
		t.Fatalf("expected default topic %q, got %q", DefaultNewClientTopic, cfg.NewClientTopic)
	}
	if cfg.PingInterval != DefaultPingInterval {
		t.Fatalf("expected default ping interval %v, got %v", DefaultPingInterval, cfg.PingInterval)
	}
	if cfg.SnapshotInterval != DefaultSnapshotInterval {
		t.Fatalf("expected default snapshot interval %v, got %v", DefaultSnapshotInterval, cfg.SnapshotInterval)
	}
	if cfg.JournalDumpBurst != DefaultJournalDumpBurst {
		t.Fatalf("expected default dump burst %d, got %d", DefaultJournalDumpBurst, cfg.JournalDumpBurst)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("RELAY_ADDR", "127.0.0.1:9000")
	t.Setenv("RELAY_CCS_URL", "ws://localhost:5235/ws")
	t.Setenv("RELAY_NEW_CLIENT_TOPIC", "/topics/newuser")
	t.Setenv("RELAY_PING_INTERVAL", "45s")
	t.Setenv("RELAY_RECONNECT_MAX_BACKOFF", "5m")
	t.Setenv("RELAY_JOURNAL_DUMP_BURST", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != "127.0.0.1:9000" {
		t.Fatalf("unexpected address: %q", cfg.Address)
	}
	if cfg.CCSURL != "ws://localhost:5235/ws" {
		t.Fatalf("unexpected CCS URL: %q", cfg.CCSURL)
	}
	if cfg.NewClientTopic != "/topics/newuser" {
		t.Fatalf("unexpected topic: %q", cfg.NewClientTopic)
	}
	if cfg.PingInterval.String() != "45s" {
		t.Fatalf("expected ping interval 45s, got %v", cfg.PingInterval)
	}
	if cfg.ReconnectMaxBackoff.String() != "5m0s" {
		t.Fatalf("expected max backoff 5m, got %v", cfg.ReconnectMaxBackoff)
	}
	if cfg.JournalDumpBurst != 3 {
		t.Fatalf("expected dump burst 3, got %d", cfg.JournalDumpBurst)
	}
}

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv("RELAY_API_KEY", "")
	t.Setenv("RELAY_SENDER_ID", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing credentials, got nil")
	}
	for _, want := range []string{"RELAY_API_KEY", "RELAY_SENDER_ID"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	setRequired(t)
	t.Setenv("RELAY_PING_INTERVAL", "abc")
	t.Setenv("RELAY_JOURNAL_DUMP_BURST", "-1")
	t.Setenv("RELAY_LOG_MAX_SIZE_MB", "0")
	t.Setenv("RELAY_LOG_COMPRESS", "maybe")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error from invalid configuration, got nil")
	}

	for _, want := range []string{
		"RELAY_PING_INTERVAL",
		"RELAY_JOURNAL_DUMP_BURST",
		"RELAY_LOG_MAX_SIZE_MB",
		"RELAY_LOG_COMPRESS",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}

func TestServerToken(t *testing.T) {
	cfg := &Config{SenderID: "1234567890"}
	if got := cfg.ServerToken(); got != "1234567890@gcm.googleapis.com" {
		t.Fatalf("unexpected server token: %q", got)
	}
}
