// Package wav reads and writes 16-bit PCM WAV containers in memory.
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chriscow/voicebridge-go/pkg/rtc"
)

// HeaderSize is the size of the canonical 44 byte PCM header written by Encode.
const HeaderSize = 44

// Encode wraps s16le PCM in a canonical WAV container.
func Encode(pcm []byte, format rtc.Format) ([]byte, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm length must be even, got %d bytes", len(pcm))
	}

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(pcm))

	if err := writeHeader(&buf, format, uint32(len(pcm))); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// SineWave returns durationMs of a 16-bit sine tone at half amplitude.
func SineWave(format rtc.Format, frequency float64, durationMs int) []byte {
	samplesPerChannel := format.SampleRate * durationMs / 1000
	out := make([]byte, 0, samplesPerChannel*format.Channels*2)

	for i := 0; i < samplesPerChannel; i++ {
		t := float64(i) / float64(format.SampleRate)
		sample := int16(math.Sin(2*math.Pi*frequency*t) * 32767 * 0.5)

		for ch := 0; ch < format.Channels; ch++ {
			out = binary.LittleEndian.AppendUint16(out, uint16(sample))
		}
	}

	return out
}

func writeHeader(buf *bytes.Buffer, format rtc.Format, dataSize uint32) error {
	bitsPerSample := uint16(16)
	numChannels := uint16(format.Channels)
	sampleRate := uint32(format.SampleRate)

	buf.WriteString("RIFF")
	if err := binary.Write(buf, binary.LittleEndian, dataSize+36); err != nil {
		return err
	}
	buf.WriteString("WAVE")

	// fmt chunk
	buf.WriteString("fmt ")
	fields := []any{
		uint32(16), // chunk size
		uint16(1),  // PCM
		numChannels,
		sampleRate,
		sampleRate * uint32(numChannels) * uint32(bitsPerSample) / 8, // byte rate
		numChannels * bitsPerSample / 8,                              // block align
		bitsPerSample,
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return err
		}
	}

	// data chunk header
	buf.WriteString("data")
	return binary.Write(buf, binary.LittleEndian, dataSize)
}
