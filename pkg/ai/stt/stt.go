// Package stt provides interfaces and types for speech-to-text providers.
// A provider turns one complete encoded audio clip into a transcript.
package stt

import (
	"context"

	"github.com/chriscow/voicebridge-go/pkg/ai"
)

// STT-specific error variables for backward compatibility
var (
	// ErrRecoverable indicates a temporary STT failure.
	// Examples: network timeout, service unavailable, rate limiting.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent STT failure.
	// Examples: invalid audio format, unsupported language, authentication failure.
	ErrFatal = ai.ErrFatal
)

// TranscribeRequest carries one encoded clip (WAV unless the provider says otherwise).
type TranscribeRequest struct {
	Audio    []byte
	Filename string // hint for the container type, e.g. "audio.wav"
	Language string // empty means auto-detect
}

// Transcript is the provider's result for a clip.
type Transcript struct {
	Text     string
	Language string // detected or configured language code
}

// STTCapabilities describes the capabilities of an STT provider.
type STTCapabilities struct {
	SupportedLanguages []string
	SampleRates        []int
}

// STT is the main interface for speech-to-text providers.
type STT interface {
	// Transcribe converts a complete clip to text.
	Transcribe(ctx context.Context, req TranscribeRequest) (Transcript, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() STTCapabilities
}
