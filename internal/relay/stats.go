package relay

import "sync/atomic"

// Stats tracks cumulative relay traffic counters across concurrent handlers.
type Stats struct {
	inbound      atomic.Int64
	acked        atomic.Int64
	dropped      atomic.Int64
	outbound     atomic.Int64
	sendFailures atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the relay counters.
type StatsSnapshot struct {
	Inbound      int64
	Acked        int64
	Dropped      int64
	Outbound     int64
	SendFailures int64
}

// NewStats constructs an empty counter set.
func NewStats() *Stats { return &Stats{} }

// Snapshot copies the counters so monitoring endpoints avoid racing the handlers.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		Inbound:      s.inbound.Load(),
		Acked:        s.acked.Load(),
		Dropped:      s.dropped.Load(),
		Outbound:     s.outbound.Load(),
		SendFailures: s.sendFailures.Load(),
	}
}

func (s *Stats) markInbound() {
	if s != nil {
		s.inbound.Add(1)
	}
}

func (s *Stats) markAcked() {
	if s != nil {
		s.acked.Add(1)
	}
}

func (s *Stats) markDropped() {
	if s != nil {
		s.dropped.Add(1)
	}
}

func (s *Stats) markOutbound() {
	if s != nil {
		s.outbound.Add(1)
	}
}

func (s *Stats) markSendFailure() {
	if s != nil {
		s.sendFailures.Add(1)
	}
}
