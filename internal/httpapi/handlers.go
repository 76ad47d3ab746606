package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"friendlyping/relay/internal/journal"
	"friendlyping/relay/internal/logging"
	"friendlyping/relay/internal/relay"
)

// ReadinessProvider exposes relay state required for readiness checks.
type ReadinessProvider interface {
	DirectorySize() int
	StartupError() error
	Uptime() time.Duration
}

// StatsFunc returns a point-in-time copy of the relay traffic counters.
type StatsFunc func() relay.StatsSnapshot

// JournalDumper seals the current journal segment and returns its location.
type JournalDumper interface {
	DumpJournal(ctx context.Context) (string, error)
}

// JournalDumperFunc adapts a function into a JournalDumper.
type JournalDumperFunc func(ctx context.Context) (string, error)

// DumpJournal implements JournalDumper.
func (f JournalDumperFunc) DumpJournal(ctx context.Context) (string, error) { return f(ctx) }

// RateLimiter gates how frequently sensitive operations may be invoked.
type RateLimiter interface {
	Allow() bool
}

// Options configures the HandlerSet.
type Options struct {
	Logger       *logging.Logger
	Readiness    ReadinessProvider
	Stats        StatsFunc
	Journal      JournalDumper
	JournalStats func() journal.Stats
	AdminToken   string
	RateLimiter  RateLimiter
	TimeSource   func() time.Time
}

// HandlerSet bundles the relay operational handlers.
type HandlerSet struct {
	logger       *logging.Logger
	readiness    ReadinessProvider
	stats        StatsFunc
	journal      JournalDumper
	journalStats func() journal.Stats
	adminToken   string
	rateLimiter  RateLimiter
	now          func() time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:       logger,
		readiness:    opts.Readiness,
		stats:        opts.Stats,
		journal:      opts.Journal,
		journalStats: opts.JournalStats,
		adminToken:   strings.TrimSpace(opts.AdminToken),
		rateLimiter:  opts.RateLimiter,
		now:          now,
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/journal/dump", h.JournalDumpHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports relay readiness, including directory size and
// startup status.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status        string  `json:"status"`
		Message       string  `json:"message,omitempty"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Clients       int     `json:"clients"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok"}
		if h.readiness != nil {
			resp.Clients = h.readiness.DirectorySize()
			resp.UptimeSeconds = h.readiness.Uptime().Seconds()
			if err := h.readiness.StartupError(); err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = err.Error()
			}
		}
		writeJSON(w, status, resp)
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		if h.readiness != nil {
			fmt.Fprintf(w, "# HELP relay_uptime_seconds Relay uptime in seconds.\n")
			fmt.Fprintf(w, "# TYPE relay_uptime_seconds gauge\n")
			fmt.Fprintf(w, "relay_uptime_seconds %.0f\n", h.readiness.Uptime().Seconds())

			fmt.Fprintf(w, "# HELP relay_directory_clients Registered clients in the directory.\n")
			fmt.Fprintf(w, "# TYPE relay_directory_clients gauge\n")
			fmt.Fprintf(w, "relay_directory_clients %d\n", h.readiness.DirectorySize())
		}
		if h.stats != nil {
			stats := h.stats()
			fmt.Fprintf(w, "# HELP relay_inbound_messages_total Data messages received and routed.\n")
			fmt.Fprintf(w, "# TYPE relay_inbound_messages_total counter\n")
			fmt.Fprintf(w, "relay_inbound_messages_total %d\n", stats.Inbound)

			fmt.Fprintf(w, "# HELP relay_acked_messages_total Inbound messages acknowledged upstream.\n")
			fmt.Fprintf(w, "# TYPE relay_acked_messages_total counter\n")
			fmt.Fprintf(w, "relay_acked_messages_total %d\n", stats.Acked)

			fmt.Fprintf(w, "# HELP relay_dropped_messages_total Malformed or empty messages dropped.\n")
			fmt.Fprintf(w, "# TYPE relay_dropped_messages_total counter\n")
			fmt.Fprintf(w, "relay_dropped_messages_total %d\n", stats.Dropped)

			fmt.Fprintf(w, "# HELP relay_outbound_messages_total Stanzas delivered to the connection server.\n")
			fmt.Fprintf(w, "# TYPE relay_outbound_messages_total counter\n")
			fmt.Fprintf(w, "relay_outbound_messages_total %d\n", stats.Outbound)

			fmt.Fprintf(w, "# HELP relay_send_failures_total Outbound deliveries that failed.\n")
			fmt.Fprintf(w, "# TYPE relay_send_failures_total counter\n")
			fmt.Fprintf(w, "relay_send_failures_total %d\n", stats.SendFailures)
		}
		if h.journalStats != nil {
			stats := h.journalStats()
			fmt.Fprintf(w, "# HELP relay_journal_records_total Traffic records appended to the journal.\n")
			fmt.Fprintf(w, "# TYPE relay_journal_records_total counter\n")
			fmt.Fprintf(w, "relay_journal_records_total %d\n", stats.Records)

			fmt.Fprintf(w, "# HELP relay_journal_bytes_total Compressed journal bytes written.\n")
			fmt.Fprintf(w, "# TYPE relay_journal_bytes_total counter\n")
			fmt.Fprintf(w, "relay_journal_bytes_total %d\n", stats.Bytes)

			fmt.Fprintf(w, "# HELP relay_journal_rotations_total Journal segments sealed.\n")
			fmt.Fprintf(w, "# TYPE relay_journal_rotations_total counter\n")
			fmt.Fprintf(w, "relay_journal_rotations_total %d\n", stats.Rotations)
		}
	}
}

// JournalDumpHandler authorises and seals the active journal segment.
func (h *HandlerSet) JournalDumpHandler() http.HandlerFunc {
	type response struct {
		Status   string `json:"status"`
		Location string `json:"location,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.logger.With(
			logging.String("handler", "journal_dump"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.adminToken == "" {
			reqLogger.Warn("journal dump denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("journal dump denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if h.rateLimiter != nil && !h.rateLimiter.Allow() {
			reqLogger.Warn("journal dump denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.journal == nil {
			reqLogger.Warn("journal dump denied: no journal configured")
			http.Error(w, "journal dumping is unavailable", http.StatusServiceUnavailable)
			return
		}
		location, err := h.journal.DumpJournal(r.Context())
		if err != nil {
			reqLogger.Error("journal dump failed", logging.Error(err))
			http.Error(w, "failed to dump journal", http.StatusInternalServerError)
			return
		}
		reqLogger.Info("journal dump triggered")
		writeJSON(w, http.StatusAccepted, response{Status: "accepted", Location: location})
	}
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
