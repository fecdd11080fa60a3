// Package turn runs work units through conversion and the speech pipeline,
// one turn at a time per call.
package turn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chriscow/voicebridge-go/internal/metrics"
	"github.com/chriscow/voicebridge-go/internal/session"
	"github.com/chriscow/voicebridge-go/pkg/rtc"
	"github.com/chriscow/voicebridge-go/pkg/speech"
)

// Step is a position in a turn's state machine.
type Step string

const (
	StepConvertingIn  Step = "converting_in"
	StepTranscribing  Step = "transcribing"
	StepGenerating    Step = "generating"
	StepSynthesizing  Step = "synthesizing"
	StepConvertingOut Step = "converting_out"
	StepDone          Step = "done"
	StepFailed        Step = "failed"
)

// Outcomes recorded for finished turns.
const (
	OutcomeReplied = "replied"
	OutcomeSilent  = "silent"
	OutcomeFailed  = "failed"
)

// Failure is a turn that reached the failed state. It never ends the call.
type Failure struct {
	Step Step // the step that failed
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("turn failed during %s: %v", f.Step, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Converter is the audio conversion the orchestrator needs.
type Converter interface {
	ToPipelineFormat(ctx context.Context, raw []byte) ([]byte, error)
	ToTelephonyFormat(ctx context.Context, encoded []byte) ([]byte, error)
}

// Result is a completed turn. Audio is carrier PCM and is empty when the
// caller said nothing.
type Result struct {
	Unit       int // work unit index, 0 for the greeting
	Transcript string
	Reply      string
	Audio      []byte
}

// Orchestrator runs turns. It holds no per-call state.
type Orchestrator struct {
	conv     Converter
	pipeline speech.Pipeline
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(conv Converter, pipeline speech.Pipeline, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{conv: conv, pipeline: pipeline, metrics: m, logger: logger}
}

// RunTurn drives one work unit through
// converting_in, transcribing, generating, synthesizing, converting_out.
// History on s is appended only when every step succeeds.
func (o *Orchestrator) RunTurn(ctx context.Context, s *session.Session, unit rtc.WorkUnit) (Result, error) {
	t := o.begin(s, unit.Index)
	res := Result{Unit: unit.Index}

	t.enter(StepConvertingIn)
	encoded, err := o.conv.ToPipelineFormat(ctx, unit.Data)
	if err != nil {
		return res, t.fail(err)
	}

	t.enter(StepTranscribing)
	res.Transcript, err = o.pipeline.Transcribe(ctx, encoded)
	if err != nil {
		return res, t.fail(err)
	}
	if res.Transcript == "" {
		t.done(OutcomeSilent)
		return res, nil
	}

	t.enter(StepGenerating)
	res.Reply, err = o.pipeline.Generate(ctx, res.Transcript, s.History())
	if err != nil {
		return res, t.fail(err)
	}

	audio, err := o.speak(ctx, t, res.Reply)
	if err != nil {
		return res, err
	}

	s.AppendExchange(res.Transcript, res.Reply)
	res.Audio = audio
	t.done(OutcomeReplied)
	return res, nil
}

// RunGreeting synthesizes text without a caller utterance and records it as
// the assistant's opening line.
func (o *Orchestrator) RunGreeting(ctx context.Context, s *session.Session, text string) (Result, error) {
	t := o.begin(s, 0)
	res := Result{Reply: text}

	audio, err := o.speak(ctx, t, text)
	if err != nil {
		return res, err
	}

	s.AppendAssistant(text)
	res.Audio = audio
	t.done(OutcomeReplied)
	return res, nil
}

// speak runs synthesizing and converting_out, then refuses to commit if the
// turn was abandoned meanwhile.
func (o *Orchestrator) speak(ctx context.Context, t *tracker, text string) ([]byte, error) {
	t.enter(StepSynthesizing)
	encoded, err := o.pipeline.Synthesize(ctx, text)
	if err != nil {
		return nil, t.fail(err)
	}

	t.enter(StepConvertingOut)
	pcm, err := o.conv.ToTelephonyFormat(ctx, encoded)
	if err != nil {
		return nil, t.fail(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, t.fail(err)
	}
	return pcm, nil
}

// tracker times steps and reports a turn's outcome.
type tracker struct {
	o         *Orchestrator
	logger    *slog.Logger
	step      Step
	start     time.Time
	stepStart time.Time
}

func (o *Orchestrator) begin(s *session.Session, index int) *tracker {
	now := time.Now()
	return &tracker{
		o:         o,
		logger:    s.Logger().With(slog.Int("turn", index)),
		start:     now,
		stepStart: now,
	}
}

func (t *tracker) enter(step Step) {
	t.finishStep()
	t.step = step
	t.logger.Debug("Turn step", slog.String("step", string(step)))
}

func (t *tracker) finishStep() {
	now := time.Now()
	if t.step != "" {
		t.o.metrics.RecordStep(string(t.step), now.Sub(t.stepStart))
	}
	t.stepStart = now
}

func (t *tracker) fail(err error) error {
	t.finishStep()
	t.o.metrics.RecordTurn(OutcomeFailed, string(t.step))
	t.logger.Warn("Turn failed",
		slog.String("step", string(t.step)),
		slog.String("error", err.Error()),
		slog.Duration("elapsed", time.Since(t.start)))
	return &Failure{Step: t.step, Err: err}
}

func (t *tracker) done(outcome string) {
	t.finishStep()
	t.step = StepDone
	t.o.metrics.RecordTurn(outcome, "")
	t.logger.Info("Turn complete",
		slog.String("outcome", outcome),
		slog.Duration("elapsed", time.Since(t.start)))
}
