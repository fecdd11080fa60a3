package convert

import (
	"errors"
	"fmt"
)

// Direction names which way a conversion runs.
type Direction string

const (
	ToPipeline  Direction = "to-pipeline"
	ToTelephony Direction = "to-telephony"
)

var (
	// ErrConversion matches every ConversionError.
	ErrConversion = errors.New("audio conversion failed")

	ErrFFmpegNotFound = errors.New("ffmpeg not found")
	ErrFFmpegTimeout  = errors.New("ffmpeg execution timed out")
	ErrTruncated      = errors.New("codec output truncated")
	ErrEmptyInput     = errors.New("empty audio input")
)

// ConversionError reports a failed codec run and which way it was going.
type ConversionError struct {
	Direction Direction
	Err       error
	Stderr    string // tail of the codec's stderr, if any
}

func (e *ConversionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s conversion failed: %v (stderr: %s)", e.Direction, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s conversion failed: %v", e.Direction, e.Err)
}

func (e *ConversionError) Unwrap() []error {
	return []error{ErrConversion, e.Err}
}

// IsTimeout reports whether err is a conversion that ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrFFmpegTimeout)
}
