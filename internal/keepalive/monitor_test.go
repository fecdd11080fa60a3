package keepalive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/chriscow/voicebridge-go/internal/metrics"
	"github.com/chriscow/voicebridge-go/internal/session"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSweep_DestroysUnansweredSessions(t *testing.T) {
	is := is.New(t)
	met := metrics.NewMetrics(prometheus.NewRegistry())
	mgr := session.NewManager(met, quiet)
	mon := New(mgr, time.Second, met, quiet)

	live, err := mgr.Create(context.Background(), "live")
	is.NoErr(err)
	dead, err := mgr.Create(context.Background(), "dead")
	is.NoErr(err)

	var probes atomic.Int32
	probe := func() error { probes.Add(1); return nil }
	live.SetProbe(probe)
	dead.SetProbe(probe)

	// First sweep sends probes to both.
	is.Equal(mon.Sweep(), 0)
	is.Equal(probes.Load(), int32(2))

	// Only one answers before the next tick.
	live.Ack()
	is.Equal(mon.Sweep(), 1)

	_, ok := mgr.Get("dead")
	is.True(!ok)
	is.True(dead.Context().Err() != nil)
	_, ok = mgr.Get("live")
	is.True(ok)
	is.Equal(testutil.ToFloat64(met.KeepaliveTimeouts), 1.0)
	is.Equal(testutil.ToFloat64(met.SessionsDestroyed.WithLabelValues(session.ReasonKeepalive)), 1.0)
}

func TestSweep_ProbeFailureClosesCall(t *testing.T) {
	is := is.New(t)
	mgr := session.NewManager(nil, quiet)
	mon := New(mgr, time.Second, nil, quiet)

	s, err := mgr.Create(context.Background(), "broken")
	is.NoErr(err)
	s.SetProbe(func() error { return errors.New("write: broken pipe") })

	is.Equal(mon.Sweep(), 1)
	is.Equal(mgr.Count(), 0)
}

func TestSweep_RacesWithDestroy(t *testing.T) {
	is := is.New(t)
	mgr := session.NewManager(nil, quiet)
	mon := New(mgr, time.Second, nil, quiet)

	s, err := mgr.Create(context.Background(), "racing")
	is.NoErr(err)
	_, _ = s.Probe()

	done := make(chan bool)
	go func() { done <- mgr.Destroy("racing", session.ReasonStop) }()
	swept := mon.Sweep()
	stopped := <-done

	// Exactly one path performs the teardown.
	is.True(stopped != (swept == 1))
	is.Equal(mgr.Count(), 0)
}

func TestRun_StopsWithContext(t *testing.T) {
	is := is.New(t)
	mgr := session.NewManager(nil, quiet)
	mon := New(mgr, 10*time.Millisecond, nil, quiet)

	s, err := mgr.Create(context.Background(), "silent")
	is.NoErr(err)
	s.SetProbe(func() error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err = mon.Run(ctx)
	is.True(errors.Is(err, context.DeadlineExceeded))

	// Two ticks without a pong are enough to close the call.
	is.Equal(mgr.Count(), 0)
}
