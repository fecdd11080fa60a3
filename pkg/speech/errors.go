package speech

import (
	"errors"
	"fmt"
)

// Stage names one of the three pipeline calls.
type Stage string

const (
	StageTranscribe Stage = "transcribe"
	StageGenerate   Stage = "generate"
	StageSynthesize Stage = "synthesize"
)

// Per-stage sentinels; a StageError matches the one for its stage.
var (
	ErrTranscription = errors.New("transcription failed")
	ErrGeneration    = errors.New("generation failed")
	ErrSynthesis     = errors.New("synthesis failed")
)

// StageError reports a failed or timed out pipeline call.
type StageError struct {
	Stage   Stage
	Err     error
	Timeout bool
}

func (e *StageError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: timed out: %v", e.sentinel(), e.Err)
	}
	return fmt.Sprintf("%s: %v", e.sentinel(), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's stage.
func (e *StageError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *StageError) sentinel() error {
	switch e.Stage {
	case StageTranscribe:
		return ErrTranscription
	case StageGenerate:
		return ErrGeneration
	default:
		return ErrSynthesis
	}
}
