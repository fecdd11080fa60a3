package turn

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chriscow/voicebridge-go/internal/session"
	"github.com/chriscow/voicebridge-go/pkg/rtc"
)

// Job is one queued turn: a work unit, or a greeting when Greeting is set.
type Job struct {
	Unit     rtc.WorkUnit
	Greeting string
}

// Queue serializes a call's turns. A single worker takes jobs in arrival
// order, so at most one turn runs at a time and results leave in FIFO order.
type Queue struct {
	orch    *Orchestrator
	sess    *session.Session
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wake    chan struct{}
	results chan Result
	done    chan struct{}

	mu      sync.Mutex
	pending []Job
	closed  bool
}

// NewQueue starts the worker for s. It stops when the session is destroyed,
// on Abandon, or after Close once the queue is empty.
func NewQueue(orch *Orchestrator, s *session.Session) *Queue {
	ctx, cancel := context.WithCancel(s.Context())
	q := &Queue{
		orch:    orch,
		sess:    s,
		logger:  s.Logger(),
		ctx:     ctx,
		cancel:  cancel,
		wake:    make(chan struct{}, 1),
		results: make(chan Result, 1),
		done:    make(chan struct{}),
	}
	go q.work()
	return q
}

// Results delivers completed turns that have audio. It is closed when the
// worker exits.
func (q *Queue) Results() <-chan Result { return q.results }

// Done is closed when the worker has exited.
func (q *Queue) Done() <-chan struct{} { return q.done }

// Enqueue adds a job. It reports false once the queue is closed.
func (q *Queue) Enqueue(job Job) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, job)
	q.mu.Unlock()

	q.signal()
	return true
}

// Close stops accepting jobs. Queued jobs still run.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// CancelPending drops jobs that have not started and returns how many.
func (q *Queue) CancelPending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	q.pending = nil
	return n
}

// Pending returns the number of jobs waiting to start.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wait blocks until the worker exits or grace elapses and reports whether
// the worker finished.
func (q *Queue) Wait(grace time.Duration) bool {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-q.done:
		return true
	case <-timer.C:
		return false
	}
}

// Abandon cancels the running turn and stops the worker. A result the turn
// produces afterwards is discarded.
func (q *Queue) Abandon() {
	q.CancelPending()
	q.cancel()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) next() (Job, bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			job := q.pending[0]
			q.pending = q.pending[1:]
			q.mu.Unlock()
			return job, q.ctx.Err() == nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return Job{}, false
		}
		select {
		case <-q.wake:
		case <-q.ctx.Done():
			return Job{}, false
		}
	}
}

func (q *Queue) work() {
	defer close(q.done)
	defer close(q.results)
	defer q.cancel()

	for {
		job, ok := q.next()
		if !ok {
			return
		}

		q.sess.SetTurnInProgress(true)
		res, err := q.run(job)
		q.sess.SetTurnInProgress(false)

		if q.ctx.Err() != nil {
			if err == nil && len(res.Audio) > 0 {
				q.logger.Info("Discarding late turn result", slog.Int("turn", res.Unit))
			}
			return
		}
		if err != nil || len(res.Audio) == 0 {
			continue
		}

		select {
		case q.results <- res:
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *Queue) run(job Job) (Result, error) {
	if job.Greeting != "" {
		return q.orch.RunGreeting(q.ctx, q.sess, job.Greeting)
	}
	return q.orch.RunTurn(q.ctx, q.sess, job.Unit)
}
