// Package tts provides interfaces and types for text-to-speech providers.
package tts

import (
	"context"

	"github.com/chriscow/voicebridge-go/pkg/ai"
)

// TTS-specific error variables for backward compatibility
var (
	// ErrRecoverable indicates a temporary TTS failure.
	// Examples: service overload, temporary quota exceeded, network issues.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent TTS failure.
	// Examples: invalid voice ID, unsupported text format, permanent quota exceeded.
	ErrFatal = ai.ErrFatal
)

// SynthesizeRequest contains parameters for text-to-speech synthesis.
type SynthesizeRequest struct {
	Text     string
	Voice    string
	Language string
	Speed    float32
}

// Speech is one complete synthesized clip.
type Speech struct {
	Audio  []byte
	Format string // container, e.g. "wav" or "mp3"
}

// TTSCapabilities describes the capabilities of a TTS provider.
type TTSCapabilities struct {
	SupportedLanguages   []string
	SupportedVoices      []string
	OutputFormats        []string
	SupportsSpeedControl bool
}

// TTS is the main interface for text-to-speech providers.
type TTS interface {
	// Synthesize converts text into one complete encoded audio clip.
	Synthesize(ctx context.Context, req SynthesizeRequest) (Speech, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() TTSCapabilities
}
