package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chriscow/voicebridge-go/pkg/ai"
	"github.com/chriscow/voicebridge-go/pkg/ai/stt"
	"github.com/chriscow/voicebridge-go/pkg/audio/wav"
)

// DefaultTranscript is used when no transcript is provided
const DefaultTranscript = "This is a fake transcript from the fake STT provider."

// FakeSTT is a fake STT implementation for testing. It checks that each clip
// is a well-formed WAV container and answers with a fixed transcript.
type FakeSTT struct {
	transcript string

	mu    sync.Mutex
	err   error
	delay time.Duration
	calls []stt.TranscribeRequest
}

// NewFakeSTT creates a new fake STT provider with a fixed transcript.
func NewFakeSTT(transcript string) *FakeSTT {
	if transcript == "" {
		transcript = DefaultTranscript
	}
	return &FakeSTT{transcript: transcript}
}

// NewSilentSTT returns a provider that always hears nothing.
func NewSilentSTT() *FakeSTT {
	return &FakeSTT{}
}

// FailWith makes every following call return err.
func (f *FakeSTT) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// SetDelay makes every following call block for d or until ctx is done.
func (f *FakeSTT) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Calls returns the requests seen so far.
func (f *FakeSTT) Calls() []stt.TranscribeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stt.TranscribeRequest(nil), f.calls...)
}

// Transcribe validates the clip and returns the configured transcript.
func (f *FakeSTT) Transcribe(ctx context.Context, req stt.TranscribeRequest) (stt.Transcript, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	err, delay, text := f.err, f.delay, f.transcript
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return stt.Transcript{}, ai.NewRecoverableError("fake", ctx.Err(), "transcription interrupted")
		}
	}
	if err != nil {
		return stt.Transcript{}, err
	}

	if _, _, err := wav.Decode(req.Audio); err != nil {
		return stt.Transcript{}, ai.NewFatalError("fake", err, "invalid audio")
	}

	lang := req.Language
	if lang == "" {
		lang = "en-US"
	}
	return stt.Transcript{Text: text, Language: lang}, nil
}

// Capabilities returns the fake STT capabilities.
func (f *FakeSTT) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{
		SupportedLanguages: []string{"en-US", "en-GB", "es-ES"},
		SampleRates:        []int{8000, 16000},
	}
}

func (f *FakeSTT) String() string {
	return fmt.Sprintf("FakeSTT(%q)", f.transcript)
}
