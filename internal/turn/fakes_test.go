package turn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chriscow/voicebridge-go/internal/session"
	"github.com/chriscow/voicebridge-go/pkg/ai/llm"
	"github.com/chriscow/voicebridge-go/pkg/audio/wav"
	"github.com/chriscow/voicebridge-go/pkg/rtc"
	"github.com/chriscow/voicebridge-go/pkg/speech"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeConverter wraps and unwraps WAV in process. Calls are numbered from 1
// per direction.
type fakeConverter struct {
	mu       sync.Mutex
	inCalls  int
	outCalls int
	failIn   map[int]error
	failOut  map[int]error
	delayIn  time.Duration
}

func (c *fakeConverter) ToPipelineFormat(ctx context.Context, raw []byte) ([]byte, error) {
	c.mu.Lock()
	c.inCalls++
	err, delay := c.failIn[c.inCalls], c.delayIn
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return wav.Encode(raw, rtc.Telephony)
}

func (c *fakeConverter) ToTelephonyFormat(ctx context.Context, encoded []byte) ([]byte, error) {
	c.mu.Lock()
	c.outCalls++
	err := c.failOut[c.outCalls]
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	_, pcm, err := wav.Decode(encoded)
	return pcm, err
}

// fakePipeline transcribes the Nth clip as "utterance N" and replies
// "reply to utterance N". It tracks how many calls overlap.
type fakePipeline struct {
	mu         sync.Mutex
	transcribe int
	failStage  map[speech.Stage]error
	silent     bool
	delay      time.Duration
	histories  [][]llm.Message

	active    atomic.Int32
	maxActive atomic.Int32
}

func (p *fakePipeline) enter(ctx context.Context) error {
	n := p.active.Add(1)
	for {
		m := p.maxActive.Load()
		if n <= m || p.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			p.active.Add(-1)
			return ctx.Err()
		}
	}
	return nil
}

func (p *fakePipeline) leave() { p.active.Add(-1) }

func (p *fakePipeline) fail(stage speech.Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failStage[stage]; err != nil {
		return &speech.StageError{Stage: stage, Err: err}
	}
	return nil
}

func (p *fakePipeline) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if err := p.enter(ctx); err != nil {
		return "", &speech.StageError{Stage: speech.StageTranscribe, Err: err}
	}
	defer p.leave()

	if _, _, err := wav.Decode(audio); err != nil {
		return "", &speech.StageError{Stage: speech.StageTranscribe, Err: err}
	}
	if err := p.fail(speech.StageTranscribe); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcribe++
	if p.silent {
		return "", nil
	}
	return fmt.Sprintf("utterance %d", p.transcribe), nil
}

func (p *fakePipeline) Generate(ctx context.Context, text string, history []llm.Message) (string, error) {
	p.mu.Lock()
	p.histories = append(p.histories, history)
	p.mu.Unlock()
	if err := p.fail(speech.StageGenerate); err != nil {
		return "", err
	}
	return "reply to " + text, nil
}

func (p *fakePipeline) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := p.fail(speech.StageSynthesize); err != nil {
		return nil, err
	}
	// Two bytes per character keeps audio length traceable to the text.
	return wav.Encode(make([]byte, 2*len(text)), rtc.Telephony)
}

func newTestSession(t *testing.T) (*session.Manager, *session.Session) {
	t.Helper()
	m := session.NewManager(nil, quiet)
	s, err := m.Create(context.Background(), "call-"+t.Name())
	if err != nil {
		t.Fatal(err)
	}
	s.Activate()
	return m, s
}

func unit(index int) rtc.WorkUnit {
	frames := make([]rtc.AudioFrame, 5)
	for i := range frames {
		frames[i] = rtc.AudioFrame{Seq: uint64(index*5 + i), Data: make([]byte, 320)}
	}
	return rtc.NewWorkUnit(index, frames)
}
