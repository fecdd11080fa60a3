package rtc

import (
	"fmt"
	"time"
)

// Format describes raw PCM audio: signed 16-bit little-endian samples.
type Format struct {
	SampleRate int // 8 000 for telephony, 16 000 for most ASR models
	Channels   int // 1 for phone calls
}

// Telephony is the default carrier format (8kHz mono s16le).
var Telephony = Format{SampleRate: 8000, Channels: 1}

// BytesPerSecond returns the number of PCM bytes in one second of audio.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Samples returns the number of samples per channel held in n bytes.
func (f Format) Samples(n int) int {
	if f.Channels <= 0 {
		return 0
	}
	return n / (2 * f.Channels)
}

// Duration returns the play time of n bytes of PCM in this format.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// Validate reports whether the format can describe s16le PCM.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("only mono and stereo are supported, got %d channels", f.Channels)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("s16le/%dHz/%dch", f.SampleRate, f.Channels)
}

// AudioFrame is one chunk of raw audio exactly as the carrier delivered it.
// Frames are opaque and carry their arrival order in Seq.
type AudioFrame struct {
	Seq  uint64 // arrival sequence number within the call, starting at 1
	Data []byte // s16le PCM
}

// WorkUnit is a contiguous run of frames concatenated for one pipeline turn.
// It is never mutated after the framer produces it.
type WorkUnit struct {
	Index    int    // 1-based position among the call's work units
	FirstSeq uint64 // Seq of the first frame
	LastSeq  uint64 // Seq of the last frame
	Frames   int    // number of frames concatenated
	Data     []byte // concatenated PCM
}

// Empty reports whether the unit would play for zero time.
func (w WorkUnit) Empty() bool {
	return w.Frames == 0 || len(w.Data) == 0
}

// NewWorkUnit concatenates frames, in order, into a WorkUnit.
func NewWorkUnit(index int, frames []AudioFrame) WorkUnit {
	if len(frames) == 0 {
		return WorkUnit{Index: index}
	}

	total := 0
	for _, f := range frames {
		total += len(f.Data)
	}

	data := make([]byte, 0, total)
	for _, f := range frames {
		data = append(data, f.Data...)
	}

	return WorkUnit{
		Index:    index,
		FirstSeq: frames[0].Seq,
		LastSeq:  frames[len(frames)-1].Seq,
		Frames:   len(frames),
		Data:     data,
	}
}
