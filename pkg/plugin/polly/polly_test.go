package polly

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"github.com/matryer/is"

	"github.com/chriscow/voicebridge-go/pkg/ai"
	"github.com/chriscow/voicebridge-go/pkg/ai/tts"
	"github.com/chriscow/voicebridge-go/pkg/audio/wav"
)

type fakePollyClient struct {
	audio string
	err   error
	input *polly.SynthesizeSpeechInput
}

func (f *fakePollyClient) SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &polly.SynthesizeSpeechOutput{AudioStream: io.NopCloser(strings.NewReader(f.audio))}, nil
}

type fakeAPIError struct {
	code  string
	fault smithy.ErrorFault
}

func (e fakeAPIError) Error() string                 { return e.code }
func (e fakeAPIError) ErrorCode() string             { return e.code }
func (e fakeAPIError) ErrorMessage() string          { return e.code }
func (e fakeAPIError) ErrorFault() smithy.ErrorFault { return e.fault }

var _ smithy.APIError = fakeAPIError{}

func TestSynthesize_PCMIsWrappedAsWAV(t *testing.T) {
	is := is.New(t)
	client := &fakePollyClient{audio: "\x01\x00\x02\x00\x03"}
	provider, err := NewWithClient(Config{SampleRate: 8000}, client)
	is.NoErr(err)

	speech, err := provider.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "hello"})
	is.NoErr(err)
	is.Equal(speech.Format, "wav")

	header, pcm, err := wav.Decode(speech.Audio)
	is.NoErr(err)
	is.Equal(header.SampleRate, uint32(8000))
	is.Equal(pcm, []byte{1, 0, 2, 0}) // trailing odd byte dropped

	is.Equal(client.input.OutputFormat, pollytypes.OutputFormatPcm)
	is.Equal(*client.input.SampleRate, "8000")
	is.Equal(*client.input.Text, "hello")
	is.Equal(client.input.VoiceId, pollytypes.VoiceIdJoanna)
	is.Equal(client.input.Engine, pollytypes.EngineNeural)
}

func TestSynthesize_MP3(t *testing.T) {
	is := is.New(t)
	client := &fakePollyClient{audio: "ID3mp3"}
	provider, err := NewWithClient(Config{Format: "mp3", Engine: "standard"}, client)
	is.NoErr(err)

	speech, err := provider.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "hi", Voice: "Matthew"})
	is.NoErr(err)
	is.Equal(speech.Format, "mp3")
	is.Equal(string(speech.Audio), "ID3mp3")
	is.Equal(client.input.OutputFormat, pollytypes.OutputFormatMp3)
	is.Equal(client.input.VoiceId, pollytypes.VoiceIdMatthew)
	is.Equal(client.input.Engine, pollytypes.EngineStandard)
}

func TestNewWithClient_RejectsBadConfig(t *testing.T) {
	is := is.New(t)
	_, err := NewWithClient(Config{Format: "ogg"}, nil)
	is.True(err != nil)
	_, err = NewWithClient(Config{SampleRate: 44100}, nil)
	is.True(err != nil)
}

func TestSynthesize_ErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		recoverable bool
	}{
		{name: "overload", err: fakeAPIError{code: "TooManyRequestsException"}, recoverable: true},
		{name: "blocked", err: fakeAPIError{code: "TextLengthExceededException"}, recoverable: false},
		{name: "server fault", err: fakeAPIError{code: "Weird", fault: smithy.FaultServer}, recoverable: true},
		{name: "client fault", err: fakeAPIError{code: "Weird", fault: smithy.FaultClient}, recoverable: false},
		{name: "timeout", err: context.DeadlineExceeded, recoverable: true},
		{name: "transport", err: errors.New("connection reset"), recoverable: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			provider, err := NewWithClient(Config{}, &fakePollyClient{err: tc.err})
			is.NoErr(err)

			_, err = provider.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "x"})
			is.True(err != nil)
			is.Equal(ai.IsRecoverable(err), tc.recoverable)
			is.True(errors.Is(err, tc.err))
		})
	}
}
