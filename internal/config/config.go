package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address the operational HTTP server listens on.
	DefaultAddr = ":43180"
	// DefaultCCSURL points at the Cloud Connection Server websocket endpoint.
	DefaultCCSURL = "wss://gcm-xmpp.googleapis.com:5235/ws"
	// DefaultNewClientTopic is the broadcast address every registered client subscribes to.
	DefaultNewClientTopic = "/topics/newclient"
	// DefaultPingInterval controls the keepalive cadence for the CCS connection.
	DefaultPingInterval = 30 * time.Second
	// DefaultReconnectMaxBackoff caps the delay between reconnection attempts.
	DefaultReconnectMaxBackoff = 2 * time.Minute

	// DefaultJournalDumpWindow bounds how frequently journal dump triggers may be requested.
	DefaultJournalDumpWindow = time.Minute
	// DefaultJournalDumpBurst sets how many journal dump requests may be made per window.
	DefaultJournalDumpBurst = 1

	// DefaultLogLevel controls verbosity for relay logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "relay.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultSnapshotInterval controls how frequently directory snapshots are persisted.
	DefaultSnapshotInterval = 30 * time.Second
)

// Config captures all runtime tunables for the relay service.
type Config struct {
	APIKey              string
	SenderID            string
	CCSURL              string
	NewClientTopic      string
	SeedPath            string
	Address             string
	AdminToken          string
	PingInterval        time.Duration
	ReconnectMaxBackoff time.Duration
	JournalDir          string
	JournalDumpWindow   time.Duration
	JournalDumpBurst    int
	SnapshotPath        string
	SnapshotInterval    time.Duration
	Logging             LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// ServerToken derives the synthetic server address used as the relay's own directory entry.
func (c *Config) ServerToken() string {
	return fmt.Sprintf("%s@gcm.googleapis.com", c.SenderID)
}

// Load reads the relay configuration from environment variables, applying sane defaults
// and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		APIKey:              strings.TrimSpace(os.Getenv("RELAY_API_KEY")),
		SenderID:            strings.TrimSpace(os.Getenv("RELAY_SENDER_ID")),
		CCSURL:              getString("RELAY_CCS_URL", DefaultCCSURL),
		NewClientTopic:      getString("RELAY_NEW_CLIENT_TOPIC", DefaultNewClientTopic),
		SeedPath:            strings.TrimSpace(os.Getenv("RELAY_SEED_PATH")),
		Address:             getString("RELAY_ADDR", DefaultAddr),
		AdminToken:          strings.TrimSpace(os.Getenv("RELAY_ADMIN_TOKEN")),
		PingInterval:        DefaultPingInterval,
		ReconnectMaxBackoff: DefaultReconnectMaxBackoff,
		JournalDir:          strings.TrimSpace(os.Getenv("RELAY_JOURNAL_DIR")),
		JournalDumpWindow:   DefaultJournalDumpWindow,
		JournalDumpBurst:    DefaultJournalDumpBurst,
		SnapshotPath:        strings.TrimSpace(os.Getenv("RELAY_SNAPSHOT_PATH")),
		SnapshotInterval:    DefaultSnapshotInterval,
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("RELAY_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("RELAY_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if cfg.APIKey == "" {
		problems = append(problems, "RELAY_API_KEY must be provided")
	}
	if cfg.SenderID == "" {
		problems = append(problems, "RELAY_SENDER_ID must be provided")
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_PING_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("RELAY_PING_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.PingInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_RECONNECT_MAX_BACKOFF")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("RELAY_RECONNECT_MAX_BACKOFF must be a positive duration, got %q", raw))
		} else {
			cfg.ReconnectMaxBackoff = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_JOURNAL_DUMP_WINDOW")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("RELAY_JOURNAL_DUMP_WINDOW must be a positive duration, got %q", raw))
		} else {
			cfg.JournalDumpWindow = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_JOURNAL_DUMP_BURST")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("RELAY_JOURNAL_DUMP_BURST must be a positive integer, got %q", raw))
		} else {
			cfg.JournalDumpBurst = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_SNAPSHOT_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("RELAY_SNAPSHOT_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.SnapshotInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("RELAY_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("RELAY_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("RELAY_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("RELAY_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
