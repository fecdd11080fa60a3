// Package keepalive tears down calls whose connection stopped answering
// liveness probes.
package keepalive

import (
	"context"
	"log/slog"
	"time"

	"github.com/chriscow/voicebridge-go/internal/metrics"
	"github.com/chriscow/voicebridge-go/internal/session"
)

// DefaultInterval is the probe period.
const DefaultInterval = 30 * time.Second

// Monitor probes every registered session once per interval. A session whose
// previous probe is still unanswered at the next tick is destroyed.
type Monitor struct {
	manager  *session.Manager
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a monitor; a non-positive interval uses DefaultInterval.
func New(mgr *session.Manager, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		manager:  mgr,
		interval: interval,
		metrics:  m,
		logger:   logger.With(slog.String("component", "keepalive")),
	}
}

// Run sweeps on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Keepalive monitor started", slog.Duration("interval", m.interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep probes each session once and returns how many it destroyed.
func (m *Monitor) Sweep() int {
	destroyed := 0
	for _, s := range m.manager.Snapshot() {
		stale, err := s.Probe()
		switch {
		case stale:
			s.Logger().Warn("Keepalive probe unanswered, closing call",
				slog.Time("last_pong", s.LastPong()))
			if m.manager.Destroy(s.ID(), session.ReasonKeepalive) {
				m.metrics.RecordKeepaliveTimeout()
				destroyed++
			}
		case err != nil:
			s.Logger().Warn("Keepalive probe failed, closing call", slog.String("error", err.Error()))
			if m.manager.Destroy(s.ID(), session.ReasonConnection) {
				destroyed++
			}
		}
	}
	return destroyed
}
