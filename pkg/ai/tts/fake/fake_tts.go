package fake

import (
	"context"
	"sync"
	"time"

	"github.com/chriscow/voicebridge-go/pkg/ai"
	"github.com/chriscow/voicebridge-go/pkg/ai/tts"
	"github.com/chriscow/voicebridge-go/pkg/audio/wav"
	"github.com/chriscow/voicebridge-go/pkg/rtc"
)

const (
	// msPerChar controls how long the generated tone lasts per input character.
	msPerChar = 10
	// maxDurationMs caps the tone length.
	maxDurationMs = 3000
	toneHz        = 440.0
)

// OutputFormat is the PCM layout inside the WAV clips FakeTTS returns.
var OutputFormat = rtc.Format{SampleRate: 24000, Channels: 1}

// FakeTTS is a fake TTS implementation that returns a sine tone as WAV.
type FakeTTS struct {
	mu    sync.Mutex
	err   error
	delay time.Duration
	texts []string
}

// NewFakeTTS creates a new fake TTS provider.
func NewFakeTTS() *FakeTTS {
	return &FakeTTS{}
}

// FailWith makes every following call return err.
func (f *FakeTTS) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// SetDelay makes every following call block for d or until ctx is done.
func (f *FakeTTS) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Texts returns the texts synthesized so far.
func (f *FakeTTS) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// Synthesize generates a tone whose length grows with the text.
func (f *FakeTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (tts.Speech, error) {
	f.mu.Lock()
	f.texts = append(f.texts, req.Text)
	err, delay := f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return tts.Speech{}, ai.NewRecoverableError("fake", ctx.Err(), "synthesis interrupted")
		}
	}
	if err != nil {
		return tts.Speech{}, err
	}
	if req.Text == "" {
		return tts.Speech{}, ai.NewFatalError("fake", nil, "empty text")
	}

	durationMs := min(len(req.Text)*msPerChar, maxDurationMs)
	audio, err := wav.Encode(wav.SineWave(OutputFormat, toneHz, durationMs), OutputFormat)
	if err != nil {
		return tts.Speech{}, ai.NewFatalError("fake", err, "encode tone")
	}
	return tts.Speech{Audio: audio, Format: "wav"}, nil
}

// Capabilities returns the fake TTS capabilities.
func (f *FakeTTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		SupportedLanguages:   []string{"en-US", "en-GB", "es-ES"},
		SupportedVoices:      []string{"fake-voice-1", "fake-voice-2"},
		OutputFormats:        []string{"wav"},
		SupportsSpeedControl: false,
	}
}
