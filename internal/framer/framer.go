// Package framer groups a call's inbound frames into work units.
package framer

import (
	"github.com/chriscow/voicebridge-go/internal/session"
	"github.com/chriscow/voicebridge-go/pkg/rtc"
)

// DefaultThreshold is 50 frames of 20ms, about one second of 8kHz audio.
const DefaultThreshold = 50

// Framer forms a work unit every Threshold frames.
type Framer struct {
	Threshold int
}

// New returns a framer; a threshold below 1 uses DefaultThreshold.
func New(threshold int) *Framer {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Framer{Threshold: threshold}
}

// Accumulate buffers frame on s and returns a work unit once the threshold
// is reached.
func (f *Framer) Accumulate(s *session.Session, frame rtc.AudioFrame) (rtc.WorkUnit, bool) {
	if s.AppendFrame(frame) < f.Threshold {
		return rtc.WorkUnit{}, false
	}
	return nonEmpty(s.DrainUnit())
}

// Flush returns whatever is buffered as a final partial unit. An empty buffer,
// or one that would play for zero time, yields nothing.
func (f *Framer) Flush(s *session.Session) (rtc.WorkUnit, bool) {
	return nonEmpty(s.DrainUnit())
}

func nonEmpty(u rtc.WorkUnit) (rtc.WorkUnit, bool) {
	if u.Empty() {
		return rtc.WorkUnit{}, false
	}
	return u, true
}
