// Package relay bridges a telephony media-stream connection to a call's
// session, framer and turn queue.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/chriscow/voicebridge-go/internal/framer"
	"github.com/chriscow/voicebridge-go/internal/metrics"
	"github.com/chriscow/voicebridge-go/internal/session"
	"github.com/chriscow/voicebridge-go/internal/turn"
)

// Conn is the part of *websocket.Conn the relay uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Config controls a relay.
type Config struct {
	// StopGrace bounds how long a stopped call may keep running turns.
	StopGrace time.Duration
	// DrainOnStop lets turns queued before stop run within StopGrace.
	// Otherwise they are cancelled when stop arrives.
	DrainOnStop bool
	// StartTimeout bounds the wait for the start event; zero waits forever.
	StartTimeout time.Duration
	WriteTimeout time.Duration
	// Greeting, when set, is spoken before the caller's first turn.
	Greeting string
}

// Relay serves media-stream connections. One Relay is shared by all calls;
// per-call state lives in the session and the link.
type Relay struct {
	cfg     Config
	manager *session.Manager
	framer  *framer.Framer
	orch    *turn.Orchestrator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a relay.
func New(cfg Config, mgr *session.Manager, fr *framer.Framer, orch *turn.Orchestrator, m *metrics.Metrics, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Relay{
		cfg:     cfg,
		manager: mgr,
		framer:  fr,
		orch:    orch,
		metrics: m,
		logger:  logger,
	}
}

// link is one connection's view of its call.
type link struct {
	id     string
	conn   Conn
	group  *errgroup.Group
	ctx    context.Context
	logger *slog.Logger

	sess       *session.Session
	queue      *turn.Queue
	writerDone chan struct{}
}

// Serve runs the connection until stop, a transport failure or session
// teardown. The session registered under id is destroyed before Serve
// returns. A nil error means the call ended normally.
func (r *Relay) Serve(ctx context.Context, id string, conn Conn) error {
	g, gctx := errgroup.WithContext(ctx)
	l := &link{
		id:     id,
		conn:   conn,
		group:  g,
		ctx:    gctx,
		logger: r.logger.With(slog.String("connection_id", id)),
	}

	defer conn.Close()
	defer r.manager.Destroy(id, session.ReasonConnection)

	if r.cfg.StartTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(r.cfg.StartTimeout))
	}

	g.Go(func() error { return r.read(l) })

	err := g.Wait()
	if err != nil {
		l.logger.Warn("Media stream ended with error", slog.String("error", err.Error()))
	} else {
		l.logger.Info("Media stream ended")
	}
	return err
}

func (r *Relay) read(l *link) error {
	for {
		mt, raw, err := l.conn.ReadMessage()
		if err != nil {
			return r.readFailed(l, err)
		}
		if mt != websocket.TextMessage {
			r.dropMalformed(l, malformed(ReasonBinary, errors.New("binary frames are not supported")))
			continue
		}

		msg, err := Decode(raw)
		if err != nil {
			r.dropMalformed(l, err)
			continue
		}

		switch msg.Event {
		case EventStart:
			r.start(l, msg)
		case EventMedia:
			r.media(l, msg)
		case EventStop:
			r.stop(l)
			return nil
		default:
			l.logger.Debug("Ignoring unknown event", slog.String("event", msg.Event))
		}
	}
}

// readFailed decides whether a read error ends the call normally.
func (r *Relay) readFailed(l *link, err error) error {
	// The session was torn down elsewhere and closed the connection.
	if l.sess != nil && l.sess.Context().Err() != nil {
		return nil
	}
	r.manager.Destroy(l.id, session.ReasonConnection)
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return &ConnectionError{Op: "read", Err: err}
}

func (r *Relay) dropMalformed(l *link, err error) {
	reason := "unknown"
	var me *MalformedMessageError
	if errors.As(err, &me) {
		reason = me.Reason
	}
	r.metrics.RecordMalformed(reason)
	l.logger.Warn("Dropping malformed message",
		slog.String("reason", reason),
		slog.String("error", err.Error()))
}

func (r *Relay) start(l *link, msg Message) {
	if l.sess != nil {
		l.logger.Warn("Ignoring duplicate start")
		return
	}

	s, err := r.manager.Create(l.ctx, l.id)
	if err != nil {
		l.logger.Warn("Start ignored", slog.String("error", err.Error()))
		return
	}
	_ = l.conn.SetReadDeadline(time.Time{})

	s.SetStreamSID(msg.SID())
	s.SetProbe(func() error {
		return l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(r.cfg.WriteTimeout))
	})
	l.conn.SetPongHandler(func(string) error {
		s.Ack()
		return nil
	})
	s.OnClose(func(reason string) {
		_ = l.conn.Close()
	})
	s.Activate()

	l.sess = s
	l.queue = turn.NewQueue(r.orch, s)
	l.writerDone = make(chan struct{})
	if r.cfg.Greeting != "" {
		l.queue.Enqueue(turn.Job{Greeting: r.cfg.Greeting})
	}
	l.group.Go(func() error { return r.write(l) })

	s.Logger().Info("Call started", slog.String("stream_sid", msg.SID()))
}

func (r *Relay) media(l *link, msg Message) {
	if l.sess == nil {
		l.logger.Debug("Ignoring media before start")
		return
	}
	if !l.sess.Accepting() {
		return
	}

	pcm, err := msg.Audio()
	if err != nil {
		r.dropMalformed(l, err)
		return
	}
	r.metrics.RecordFrame()

	if unit, ok := r.framer.Accumulate(l.sess, l.sess.NewFrame(pcm)); ok {
		r.enqueue(l, unit.Index, turn.Job{Unit: unit})
	}
}

func (r *Relay) enqueue(l *link, index int, job turn.Job) {
	r.metrics.RecordWorkUnit()
	if !l.queue.Enqueue(job) {
		l.sess.Logger().Warn("Work unit dropped after stop", slog.Int("turn", index))
		return
	}
	l.sess.Logger().Debug("Work unit queued",
		slog.Int("turn", index),
		slog.Int("frames", job.Unit.Frames))
}

// stop flushes the buffer, lets queued turns finish within the grace period
// and destroys the session.
func (r *Relay) stop(l *link) {
	if l.sess == nil {
		l.logger.Debug("Ignoring stop before start")
		return
	}
	s := l.sess
	if !s.MarkClosing() {
		return
	}
	deadline := time.Now().Add(r.cfg.StopGrace)

	if unit, ok := r.framer.Flush(s); ok {
		r.enqueue(l, unit.Index, turn.Job{Unit: unit})
	}
	l.queue.Close()

	if !r.cfg.DrainOnStop {
		if n := l.queue.CancelPending(); n > 0 {
			s.Logger().Info("Cancelled queued turns on stop", slog.Int("cancelled", n))
		}
	}

	if !l.queue.Wait(time.Until(deadline)) {
		n := l.queue.CancelPending()
		l.queue.Abandon()
		s.Logger().Warn("Stop grace elapsed, abandoning turns",
			slog.Int("cancelled", n),
			slog.Duration("grace", r.cfg.StopGrace))
	}

	// Give the writer until the deadline to deliver the last reply.
	timer := time.NewTimer(max(time.Until(deadline), 0))
	select {
	case <-l.writerDone:
	case <-timer.C:
	}
	timer.Stop()

	r.manager.Destroy(l.id, session.ReasonStop)
}

// write sends completed turns in the order the queue produced them.
func (r *Relay) write(l *link) error {
	defer close(l.writerDone)

	s := l.sess
	for res := range l.queue.Results() {
		if s.Context().Err() != nil {
			return nil
		}

		data, err := EncodeMedia(s.StreamSID(), res.Audio)
		if err != nil {
			s.Logger().Error("Failed to encode reply", slog.String("error", err.Error()))
			continue
		}

		_ = l.conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
		if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			if s.Context().Err() != nil {
				return nil
			}
			r.manager.Destroy(l.id, session.ReasonConnection)
			return &ConnectionError{Op: "write", Err: err}
		}
		r.metrics.RecordOutboundMedia()
		s.Logger().Debug("Reply sent",
			slog.Int("turn", res.Unit),
			slog.Int("bytes", len(res.Audio)))
	}
	return nil
}
