package wav

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/chriscow/voicebridge-go/pkg/rtc"
)

// ErrTruncated indicates the container ended before its declared data size.
var ErrTruncated = errors.New("truncated WAV data")

// Header represents the parts of a WAV header this package cares about.
type Header struct {
	SampleRate    uint32
	NumChannels   uint16
	BitsPerSample uint16
	DataSize      uint32 // as declared; 0 or 0xFFFFFFFF for streamed output
}

// Format returns the PCM format described by the header.
func (h Header) Format() rtc.Format {
	return rtc.Format{SampleRate: int(h.SampleRate), Channels: int(h.NumChannels)}
}

// streamedSize reports placeholder data sizes written by encoders that cannot
// seek back to patch the header (e.g. ffmpeg writing to a pipe).
func streamedSize(size uint32) bool {
	return size == 0 || size == 0xFFFFFFFF
}

// Decode parses a 16-bit PCM WAV container and returns its header and samples.
// Unknown chunks are skipped. When the declared data size is a streaming
// placeholder the remainder of the buffer is taken as audio.
func Decode(data []byte) (Header, []byte, error) {
	var h Header

	if len(data) < 12 {
		return h, nil, fmt.Errorf("%w: need at least 12 bytes, got %d", ErrTruncated, len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return h, nil, fmt.Errorf("not a valid RIFF file")
	}
	if string(data[8:12]) != "WAVE" {
		return h, nil, fmt.Errorf("not a valid WAVE file")
	}

	pos := 12
	haveFmt := false

	for {
		if pos+8 > len(data) {
			return h, nil, fmt.Errorf("%w: no data chunk", ErrTruncated)
		}

		chunkID := string(data[pos : pos+4])
		chunkSize := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		pos += 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || pos+16 > len(data) {
				return h, nil, fmt.Errorf("fmt chunk too small: %d bytes", chunkSize)
			}
			audioFormat := binary.LittleEndian.Uint16(data[pos : pos+2])
			// 0xFFFE is WAVE_FORMAT_EXTENSIBLE, which ffmpeg uses for some layouts.
			if audioFormat != 1 && audioFormat != 0xFFFE {
				return h, nil, fmt.Errorf("only PCM format is supported, got format %d", audioFormat)
			}
			h.NumChannels = binary.LittleEndian.Uint16(data[pos+2 : pos+4])
			h.SampleRate = binary.LittleEndian.Uint32(data[pos+4 : pos+8])
			h.BitsPerSample = binary.LittleEndian.Uint16(data[pos+14 : pos+16])
			haveFmt = true

		case "data":
			if !haveFmt {
				return h, nil, fmt.Errorf("data chunk before fmt chunk")
			}
			if h.BitsPerSample != 16 {
				return h, nil, fmt.Errorf("only 16-bit samples are supported, got %d-bit", h.BitsPerSample)
			}
			h.DataSize = chunkSize

			pcm := data[pos:]
			if !streamedSize(chunkSize) {
				if int(chunkSize) > len(pcm) {
					return h, nil, fmt.Errorf("%w: declared %d bytes, have %d", ErrTruncated, chunkSize, len(pcm))
				}
				pcm = pcm[:chunkSize]
			}
			if len(pcm)%2 != 0 {
				return h, nil, fmt.Errorf("%w: odd number of PCM bytes (%d)", ErrTruncated, len(pcm))
			}
			return h, pcm, nil
		}

		// Chunks are word aligned.
		skip := int(chunkSize)
		if skip%2 == 1 {
			skip++
		}
		if streamedSize(chunkSize) || pos+skip > len(data) {
			return h, nil, fmt.Errorf("%w: chunk %q overruns buffer", ErrTruncated, chunkID)
		}
		pos += skip
	}
}
