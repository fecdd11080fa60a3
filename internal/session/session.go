// Package session holds per-call state and the process-wide registry of
// active calls.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chriscow/voicebridge-go/pkg/ai/llm"
	"github.com/chriscow/voicebridge-go/pkg/rtc"
)

// State is a call's lifecycle position.
type State int

const (
	StateStarting State = iota
	StateActive
	StateTurnInProgress
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateTurnInProgress:
		return "turn_in_progress"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Teardown reasons.
const (
	ReasonStop       = "stop"
	ReasonConnection = "connection_error"
	ReasonKeepalive  = "keepalive_timeout"
	ReasonShutdown   = "shutdown"
)

// Session is the state of one call. Its buffered audio is written only by the
// connection's relay loop; history is written only by that call's turn worker.
type Session struct {
	id        string
	createdAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger

	mu               sync.Mutex
	state            State
	pending          []rtc.AudioFrame
	nextSeq          uint64
	units            int
	history          []llm.Message
	lastPong         time.Time
	probeOutstanding bool
	streamSID        string
	probe            func() error
	onClose          []func(reason string)

	closeOnce sync.Once
}

func newSession(parent context.Context, id string, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	now := time.Now()
	return &Session{
		id:        id,
		createdAt: now,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(slog.String("connection_id", id)),
		state:     StateStarting,
		lastPong:  now,
	}
}

// ID returns the connection identity.
func (s *Session) ID() string { return s.id }

// Context is cancelled when the session is destroyed.
func (s *Session) Context() context.Context { return s.ctx }

// Logger returns a logger carrying the connection id.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Age returns how long ago the session was created.
func (s *Session) Age() time.Duration { return time.Since(s.createdAt) }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activate moves a starting session to active.
func (s *Session) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStarting {
		s.state = StateActive
	}
}

// SetTurnInProgress toggles between active and turn-in-progress. Closing and
// closed sessions are left alone.
func (s *Session) SetTurnInProgress(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case busy && s.state == StateActive:
		s.state = StateTurnInProgress
	case !busy && s.state == StateTurnInProgress:
		s.state = StateActive
	}
}

// MarkClosing records that the call has stopped and is draining. It reports
// false if the session was already closing or closed.
func (s *Session) MarkClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state >= StateClosing {
		return false
	}
	s.state = StateClosing
	return true
}

// Accepting reports whether the session still takes inbound audio.
func (s *Session) Accepting() bool {
	st := s.State()
	return st == StateActive || st == StateTurnInProgress
}

// NewFrame stamps data with the next arrival sequence number.
func (s *Session) NewFrame(data []byte) rtc.AudioFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	return rtc.AudioFrame{Seq: s.nextSeq, Data: data}
}

// AppendFrame buffers a frame and returns how many are now pending.
func (s *Session) AppendFrame(frame rtc.AudioFrame) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, frame)
	return len(s.pending)
}

// Pending returns the number of buffered frames.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// DrainUnit atomically empties the buffer into a new work unit. An empty
// buffer yields an empty unit and does not consume an index.
func (s *Session) DrainUnit() rtc.WorkUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return rtc.WorkUnit{}
	}
	s.units++
	unit := rtc.NewWorkUnit(s.units, s.pending)
	s.pending = nil
	return unit
}

// History returns a copy of the conversation so far.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Message(nil), s.history...)
}

// AppendExchange records a completed user/assistant exchange.
func (s *Session) AppendExchange(user, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		llm.Message{Role: llm.RoleUser, Content: user},
		llm.Message{Role: llm.RoleAssistant, Content: assistant})
}

// AppendAssistant records an assistant utterance with no user prompt.
func (s *Session) AppendAssistant(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, llm.Message{Role: llm.RoleAssistant, Content: text})
}

// StreamSID returns the carrier's stream identifier, if one was announced.
func (s *Session) StreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}

// SetStreamSID records the carrier's stream identifier.
func (s *Session) SetStreamSID(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamSID = sid
}

// SetProbe installs the function that sends a liveness probe.
func (s *Session) SetProbe(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probe = fn
}

// Ack records a liveness acknowledgement.
func (s *Session) Ack() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPong = time.Now()
	s.probeOutstanding = false
}

// LastPong returns the time of the last acknowledgement.
func (s *Session) LastPong() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPong
}

// Probe sends a liveness probe. It reports stale=true, without sending, when
// the previous probe was never acknowledged.
func (s *Session) Probe() (stale bool, err error) {
	s.mu.Lock()
	if s.probeOutstanding {
		s.mu.Unlock()
		return true, nil
	}
	s.probeOutstanding = true
	probe := s.probe
	s.mu.Unlock()

	if probe == nil {
		return false, nil
	}
	return false, probe()
}

// OnClose registers fn to run once when the session is destroyed.
func (s *Session) OnClose(fn func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
}

// close releases buffered audio, cancels in-flight work and runs close hooks.
// Only the first call has any effect.
func (s *Session) close(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.pending = nil
		hooks := s.onClose
		s.onClose = nil
		s.mu.Unlock()

		s.cancel()
		for _, fn := range hooks {
			fn(reason)
		}
	})
}
