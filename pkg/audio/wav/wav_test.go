package wav

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/chriscow/voicebridge-go/pkg/rtc"
	"github.com/matryer/is"
)

func TestEncodeDecode(t *testing.T) {
	is := is.New(t)

	format := rtc.Format{SampleRate: 16000, Channels: 1}
	pcm := SineWave(format, 440, 100)

	data, err := Encode(pcm, format)
	is.NoErr(err)
	is.Equal(len(data), HeaderSize+len(pcm)) // canonical header plus samples

	h, got, err := Decode(data)
	is.NoErr(err)
	is.Equal(h.Format(), format)
	is.Equal(h.BitsPerSample, uint16(16))
	is.Equal(got, pcm)
}

func TestEncode_OddLength(t *testing.T) {
	is := is.New(t)
	_, err := Encode([]byte{1, 2, 3}, rtc.Telephony)
	is.True(err != nil) // odd PCM length is rejected
}

func TestDecode_StreamedHeader(t *testing.T) {
	is := is.New(t)

	pcm := SineWave(rtc.Telephony, 300, 40)
	data, err := Encode(pcm, rtc.Telephony)
	is.NoErr(err)

	// Patch the data size to the placeholder ffmpeg writes to pipes.
	binary.LittleEndian.PutUint32(data[40:44], 0xFFFFFFFF)

	_, got, err := Decode(data)
	is.NoErr(err)
	is.Equal(got, pcm) // rest of buffer is taken as audio
}

func TestDecode_SkipsUnknownChunks(t *testing.T) {
	is := is.New(t)

	pcm := []byte{1, 0, 2, 0}
	data, err := Encode(pcm, rtc.Telephony)
	is.NoErr(err)

	// Insert a LIST chunk between fmt and data.
	list := append([]byte("LIST"), 3, 0, 0, 0, 'a', 'b', 'c', 0)
	withList := append(append(append([]byte{}, data[:36]...), list...), data[36:]...)

	_, got, err := Decode(withList)
	is.NoErr(err)
	is.Equal(got, pcm)
}

func TestDecode_Truncated(t *testing.T) {
	tests := []struct {
		name string
		data func() []byte
	}{
		{
			name: "short buffer",
			data: func() []byte { return []byte("RIFF") },
		},
		{
			name: "declared size exceeds buffer",
			data: func() []byte {
				data, _ := Encode(make([]byte, 320), rtc.Telephony)
				return data[:len(data)-100]
			},
		},
		{
			name: "header only, no data chunk",
			data: func() []byte {
				data, _ := Encode(make([]byte, 320), rtc.Telephony)
				return data[:36]
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.data())
			if !errors.Is(err, ErrTruncated) {
				t.Errorf("Decode() error = %v, want ErrTruncated", err)
			}
		})
	}
}

func TestDecode_NotWAV(t *testing.T) {
	is := is.New(t)
	_, _, err := Decode([]byte("ID3\x04\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"))
	is.True(err != nil)
	is.True(!errors.Is(err, ErrTruncated)) // wrong container, not truncation
}
