package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/voicebridge-go/pkg/ai"
	"github.com/chriscow/voicebridge-go/pkg/ai/stt"
	"github.com/chriscow/voicebridge-go/pkg/audio/wav"
	"github.com/chriscow/voicebridge-go/pkg/rtc"
)

func clip(t *testing.T) []byte {
	t.Helper()
	data, err := wav.Encode(wav.SineWave(rtc.Format{SampleRate: 16000, Channels: 1}, 440, 100), rtc.Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func TestFakeSTT_Transcribe(t *testing.T) {
	is := is.New(t)
	provider := NewFakeSTT("hello there")

	got, err := provider.Transcribe(context.Background(), stt.TranscribeRequest{Audio: clip(t)})
	is.NoErr(err)
	is.Equal(got.Text, "hello there")
	is.Equal(got.Language, "en-US")
	is.Equal(len(provider.Calls()), 1)
}

func TestFakeSTT_DefaultTranscript(t *testing.T) {
	is := is.New(t)
	got, err := NewFakeSTT("").Transcribe(context.Background(), stt.TranscribeRequest{Audio: clip(t)})
	is.NoErr(err)
	is.Equal(got.Text, DefaultTranscript)
}

func TestFakeSTT_Silent(t *testing.T) {
	is := is.New(t)
	got, err := NewSilentSTT().Transcribe(context.Background(), stt.TranscribeRequest{Audio: clip(t)})
	is.NoErr(err)
	is.Equal(got.Text, "")
}

func TestFakeSTT_RejectsRawPCM(t *testing.T) {
	is := is.New(t)
	_, err := NewFakeSTT("x").Transcribe(context.Background(), stt.TranscribeRequest{Audio: []byte{1, 2, 3, 4}})
	is.True(err != nil)
	is.True(ai.IsFatal(err))
}

func TestFakeSTT_FailWith(t *testing.T) {
	is := is.New(t)
	boom := errors.New("boom")
	provider := NewFakeSTT("x")
	provider.FailWith(boom)

	_, err := provider.Transcribe(context.Background(), stt.TranscribeRequest{Audio: clip(t)})
	is.True(errors.Is(err, boom))
}

func TestFakeSTT_DelayHonorsContext(t *testing.T) {
	is := is.New(t)
	provider := NewFakeSTT("x")
	provider.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := provider.Transcribe(ctx, stt.TranscribeRequest{Audio: clip(t)})
	is.True(err != nil)
	is.True(ai.IsTimeout(err))
	is.True(time.Since(start) < 500*time.Millisecond)
}
