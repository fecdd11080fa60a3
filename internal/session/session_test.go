package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/chriscow/voicebridge-go/internal/metrics"
	"github.com/chriscow/voicebridge-go/pkg/ai/llm"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestManager_CreateGetDestroy(t *testing.T) {
	is := is.New(t)
	m := NewManager(nil, quiet)

	s, err := m.Create(context.Background(), "c1")
	is.NoErr(err)
	is.Equal(s.ID(), "c1")
	is.Equal(s.State(), StateStarting)

	got, ok := m.Get("c1")
	is.True(ok)
	is.Equal(got, s)
	is.Equal(m.Count(), 1)

	is.True(m.Destroy("c1", ReasonStop))
	_, ok = m.Get("c1")
	is.True(!ok)
	is.Equal(s.State(), StateClosed)
	is.True(s.Context().Err() != nil)
}

func TestManager_CreateDuplicate(t *testing.T) {
	is := is.New(t)
	m := NewManager(nil, quiet)

	_, err := m.Create(context.Background(), "c1")
	is.NoErr(err)
	_, err = m.Create(context.Background(), "c1")
	is.True(errors.Is(err, ErrSessionExists))
}

func TestManager_Require(t *testing.T) {
	is := is.New(t)
	m := NewManager(nil, quiet)

	_, err := m.Require("missing")
	is.True(errors.Is(err, ErrSessionNotFound))

	var regErr *RegistryError
	is.True(errors.As(err, &regErr))
	is.Equal(regErr.ID, "missing")
}

func TestManager_DestroyIsIdempotent(t *testing.T) {
	is := is.New(t)
	reg := prometheus.NewRegistry()
	met := metrics.NewMetrics(reg)
	m := NewManager(met, quiet)

	s, err := m.Create(context.Background(), "c1")
	is.NoErr(err)

	var hooks atomic.Int32
	s.OnClose(func(string) { hooks.Add(1) })

	is.True(m.Destroy("c1", ReasonStop))
	is.True(!m.Destroy("c1", ReasonKeepalive))
	is.True(!m.Destroy("never-existed", ReasonStop))

	is.Equal(hooks.Load(), int32(1))
	is.Equal(testutil.ToFloat64(met.ActiveSessions), 0.0)
	is.Equal(testutil.ToFloat64(met.SessionsDestroyed.WithLabelValues(ReasonStop)), 1.0)
	is.Equal(testutil.ToFloat64(met.SessionsDestroyed.WithLabelValues(ReasonKeepalive)), 0.0)
}

func TestManager_ConcurrentDestroy(t *testing.T) {
	is := is.New(t)
	m := NewManager(nil, quiet)

	s, err := m.Create(context.Background(), "c1")
	is.NoErr(err)

	var hooks atomic.Int32
	s.OnClose(func(string) { hooks.Add(1) })

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reason := ReasonStop
			if i%2 == 0 {
				reason = ReasonKeepalive
			}
			if m.Destroy("c1", reason) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	is.Equal(wins.Load(), int32(1))
	is.Equal(hooks.Load(), int32(1))
	is.Equal(m.Count(), 0)
}

func TestManager_CloseAll(t *testing.T) {
	is := is.New(t)
	m := NewManager(nil, quiet)
	for _, id := range []string{"a", "b", "c"} {
		_, err := m.Create(context.Background(), id)
		is.NoErr(err)
	}

	is.Equal(len(m.Snapshot()), 3)
	is.Equal(m.CloseAll(ReasonShutdown), 3)
	is.Equal(m.Count(), 0)
}

func TestSession_StateTransitions(t *testing.T) {
	is := is.New(t)
	m := NewManager(nil, quiet)
	s, err := m.Create(context.Background(), "c1")
	is.NoErr(err)

	is.True(!s.Accepting())
	s.Activate()
	is.Equal(s.State(), StateActive)
	is.True(s.Accepting())

	s.SetTurnInProgress(true)
	is.Equal(s.State(), StateTurnInProgress)
	s.SetTurnInProgress(false)
	is.Equal(s.State(), StateActive)

	is.True(s.MarkClosing())
	is.True(!s.MarkClosing())
	s.SetTurnInProgress(true)
	is.Equal(s.State(), StateClosing)
	is.True(!s.Accepting())

	m.Destroy("c1", ReasonStop)
	is.Equal(s.State(), StateClosed)
	is.Equal(s.State().String(), "closed")
}

func TestSession_BufferAndDrain(t *testing.T) {
	is := is.New(t)
	s := newSession(context.Background(), "c1", quiet)

	is.True(s.DrainUnit().Empty())

	for i := 0; i < 3; i++ {
		f := s.NewFrame([]byte{byte(i), 0})
		is.Equal(f.Seq, uint64(i+1))
		is.Equal(s.AppendFrame(f), i+1)
	}

	unit := s.DrainUnit()
	is.Equal(unit.Index, 1)
	is.Equal(unit.Frames, 3)
	is.Equal(unit.FirstSeq, uint64(1))
	is.Equal(unit.LastSeq, uint64(3))
	is.Equal(s.Pending(), 0)

	s.AppendFrame(s.NewFrame([]byte{9, 9}))
	is.Equal(s.DrainUnit().Index, 2)
}

func TestSession_CloseReleasesAudio(t *testing.T) {
	is := is.New(t)
	s := newSession(context.Background(), "c1", quiet)
	s.AppendFrame(s.NewFrame([]byte{1, 2}))

	s.close(ReasonConnection)
	is.Equal(s.Pending(), 0)
	is.True(errors.Is(s.Context().Err(), context.Canceled))
}

func TestSession_History(t *testing.T) {
	is := is.New(t)
	s := newSession(context.Background(), "c1", quiet)

	s.AppendAssistant("Hello, how can I help?")
	s.AppendExchange("what's up", "not much")

	h := s.History()
	is.Equal(h, []llm.Message{
		{Role: llm.RoleAssistant, Content: "Hello, how can I help?"},
		{Role: llm.RoleUser, Content: "what's up"},
		{Role: llm.RoleAssistant, Content: "not much"},
	})

	h[0].Content = "mutated"
	is.Equal(s.History()[0].Content, "Hello, how can I help?")
}

func TestSession_Probe(t *testing.T) {
	is := is.New(t)
	s := newSession(context.Background(), "c1", quiet)

	var sent int
	s.SetProbe(func() error { sent++; return nil })

	stale, err := s.Probe()
	is.NoErr(err)
	is.True(!stale)
	is.Equal(sent, 1)

	stale, _ = s.Probe()
	is.True(stale)
	is.Equal(sent, 1)

	s.Ack()
	stale, _ = s.Probe()
	is.True(!stale)
	is.Equal(sent, 2)
}
