package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/voicebridge-go/pkg/ai/tts"
)

// OpenAITTS implements TTS with the speech endpoint, requesting WAV output.
type OpenAITTS struct {
	client *openai.Client
	model  string
	voice  string
}

// NewOpenAITTS creates a speech provider.
func NewOpenAITTS(cfg Config) (*OpenAITTS, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.TTSModel1)
	}
	voice := cfg.Voice
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAITTS{client: newClient(cfg), model: model, voice: voice}, nil
}

func newOpenAITTS(cfg map[string]any) (any, error) {
	c, err := configFromMap(cfg)
	if err != nil {
		return nil, err
	}
	return NewOpenAITTS(c)
}

// Synthesize converts text to one WAV clip.
func (o *OpenAITTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (tts.Speech, error) {
	start := time.Now()

	voice := req.Voice
	if voice == "" {
		voice = o.voice
	}

	speechReq := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
	}
	if req.Speed > 0 {
		speechReq.Speed = float64(req.Speed)
	}

	resp, err := o.client.CreateSpeech(ctx, speechReq)
	if err != nil {
		return tts.Speech{}, classifyError(err, "speech request failed")
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return tts.Speech{}, classifyError(err, "reading speech response")
	}

	slog.Debug("OpenAI TTS synthesis completed",
		slog.String("voice", voice),
		slog.Int("bytes", len(audio)),
		slog.Duration("elapsed", time.Since(start)))

	return tts.Speech{Audio: audio, Format: "wav"}, nil
}

// Capabilities returns the TTS capabilities.
func (o *OpenAITTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		SupportedLanguages: []string{"en", "es", "fr", "de", "it", "pt", "ja", "zh"},
		SupportedVoices: []string{
			string(openai.VoiceAlloy), string(openai.VoiceEcho), string(openai.VoiceFable),
			string(openai.VoiceOnyx), string(openai.VoiceNova), string(openai.VoiceShimmer),
		},
		OutputFormats:        []string{"wav"},
		SupportsSpeedControl: true,
	}
}
