package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"friendlyping/relay/internal/ccs"
	"friendlyping/relay/internal/config"
	"friendlyping/relay/internal/directory"
	"friendlyping/relay/internal/httpapi"
	"friendlyping/relay/internal/journal"
	"friendlyping/relay/internal/logging"
	"friendlyping/relay/internal/relay"
	"friendlyping/relay/internal/wire"
)

const (
	serverClientName       = "Larry"
	serverClientProfileURL = "https://lh3.googleusercontent.com/-Y86IN-vEObo/AAAAAAAAAAI/AAAAAAADO1I/QzjOGHq5kNQ/photo.jpg?sz=50"

	shutdownTimeout = 5 * time.Second
)

// serviceState tracks liveness details the operational endpoints report.
type serviceState struct {
	registry *directory.Registry
	started  time.Time

	mu         sync.RWMutex
	startupErr error
}

func (s *serviceState) DirectorySize() int {
	return s.registry.Len()
}

func (s *serviceState) StartupError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startupErr
}

func (s *serviceState) Uptime() time.Duration {
	return time.Since(s.started)
}

func (s *serviceState) setStartupError(err error) {
	s.mu.Lock()
	s.startupErr = err
	s.mu.Unlock()
}

// unavailableTransport stands in when the initial connection never came up.
// Outbound sends fail loudly while the rest of the service stays reachable.
type unavailableTransport struct{}

func (unavailableTransport) Send(string) error { return ccs.ErrNotConnected }

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logging.ReplaceGlobals(logger)

	//1.- The directory always contains the relay's own synthetic client.
	registry, err := directory.NewRegistry(directory.Client{
		Name:              serverClientName,
		RegistrationToken: cfg.ServerToken(),
		ProfilePictureURL: serverClientProfileURL,
	})
	if err != nil {
		logger.Fatal("directory setup failed", logging.Error(err))
	}
	if cfg.SeedPath != "" {
		count, err := registry.LoadSeed(cfg.SeedPath)
		if err != nil {
			logger.Warn("seed load failed", logging.String("path", cfg.SeedPath), logging.Error(err))
		} else {
			logger.Info("directory seeded", logging.String("path", cfg.SeedPath), logging.Int("clients", count))
		}
	}

	var trafficJournal *journal.Journal
	if cfg.JournalDir != "" {
		trafficJournal, err = journal.New(cfg.JournalDir, time.Now)
		if err != nil {
			logger.Warn("journal disabled", logging.String("dir", cfg.JournalDir), logging.Error(err))
		}
	}
	defer func() { _ = trafficJournal.Close() }()

	state := &serviceState{registry: registry, started: time.Now()}
	stats := relay.NewStats()

	//2.- Connect to the push backend. A failed dial leaves the relay idle but
	// alive so the operational endpoints can report the startup error.
	session, err := ccs.Dial(ccs.Options{
		URL:                 cfg.CCSURL,
		APIKey:              cfg.APIKey,
		SenderID:            cfg.SenderID,
		PingInterval:        cfg.PingInterval,
		MaxReconnectBackoff: cfg.ReconnectMaxBackoff,
		Logger:              logger,
	})
	var transport relay.Transport = unavailableTransport{}
	if err != nil {
		logger.Error("connection to push backend failed, relay staying idle", logging.Error(err))
		state.setStartupError(err)
	} else {
		transport = session
	}

	sender := relay.NewSender(wire.NewCodec(), transport, logger, trafficJournal, stats)
	router := relay.NewRouter(registry, sender, cfg.NewClientTopic, logger)
	dispatcher := relay.NewDispatcher(router, sender, trafficJournal, stats, logger)

	if session != nil {
		session.SetReceiver(dispatcher.Receive)
		go logSessionEvents(session.Events(), logger)
	}

	done := make(chan struct{})
	if cfg.SnapshotPath != "" {
		go snapshotLoop(cfg.SnapshotPath, cfg.SnapshotInterval, registry, logger, done)
	}

	server := opsServer(cfg, state, stats, trafficJournal, logger)
	go func() {
		logger.Info("operational endpoints listening", logging.String("addr", cfg.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("operational server failed", logging.Error(err))
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	<-signals
	logger.Info("shutting down")

	close(done)
	if session != nil {
		_ = session.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("operational server shutdown failed", logging.Error(err))
	}
}

func opsServer(cfg *config.Config, state *serviceState, stats *relay.Stats, trafficJournal *journal.Journal, logger *logging.Logger) *http.Server {
	opts := httpapi.Options{
		Logger:      logger,
		Readiness:   state,
		Stats:       stats.Snapshot,
		AdminToken:  cfg.AdminToken,
		RateLimiter: httpapi.NewSlidingWindowLimiter(cfg.JournalDumpWindow, cfg.JournalDumpBurst, nil),
	}
	if trafficJournal != nil {
		opts.Journal = httpapi.JournalDumperFunc(func(context.Context) (string, error) {
			return trafficJournal.Rotate()
		})
		opts.JournalStats = trafficJournal.Snapshot
	}

	mux := http.NewServeMux()
	httpapi.NewHandlerSet(opts).Register(mux)
	return &http.Server{Addr: cfg.Address, Handler: mux}
}

// snapshotLoop persists the directory on a fixed cadence until done closes.
func snapshotLoop(path string, interval time.Duration, registry *directory.Registry, logger *logging.Logger, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := journal.WriteDirectorySnapshot(path, registry.Snapshot(), time.Now()); err != nil {
				logger.Warn("directory snapshot failed", logging.String("path", path), logging.Error(err))
			}
		}
	}
}

// logSessionEvents reports connection lifecycle changes. The events are
// observational; the session reconnects on its own.
func logSessionEvents(events <-chan ccs.Event, logger *logging.Logger) {
	for event := range events {
		fields := []logging.Field{logging.String("event", event.Kind.String())}
		if event.Attempt > 0 {
			fields = append(fields, logging.Int("attempt", event.Attempt))
		}
		if event.Err != nil {
			fields = append(fields, logging.Error(event.Err))
		}
		switch event.Kind {
		case ccs.EventClosedOnError, ccs.EventReconnectFailed:
			logger.Warn("session state changed", fields...)
		default:
			logger.Info("session state changed", fields...)
		}
	}
}
