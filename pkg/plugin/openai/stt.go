package openai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/voicebridge-go/pkg/ai/stt"
)

// WhisperSTT implements STT using OpenAI's Whisper API.
type WhisperSTT struct {
	client   *openai.Client
	model    string
	language string
}

// NewWhisperSTT creates a new OpenAI Whisper STT provider.
func NewWhisperSTT(cfg Config) (*WhisperSTT, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &WhisperSTT{
		client:   newClient(cfg),
		model:    model,
		language: cfg.Language,
	}, nil
}

func newOpenAISTT(cfg map[string]any) (any, error) {
	c, err := configFromMap(cfg)
	if err != nil {
		return nil, err
	}
	return NewWhisperSTT(c)
}

// Transcribe uploads one clip and returns the recognized text.
func (w *WhisperSTT) Transcribe(ctx context.Context, req stt.TranscribeRequest) (stt.Transcript, error) {
	start := time.Now()

	language := req.Language
	if language == "" {
		language = w.language
	}
	filename := req.Filename
	if filename == "" {
		filename = "audio.wav"
	}

	response, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		Language: language,
		Format:   openai.AudioResponseFormatJSON,
		Reader:   bytes.NewReader(req.Audio),
		FilePath: filename,
	})
	if err != nil {
		return stt.Transcript{}, classifyError(err, "transcription failed")
	}

	slog.Debug("Whisper transcription result",
		slog.String("text", response.Text),
		slog.Duration("elapsed", time.Since(start)))

	return stt.Transcript{Text: response.Text, Language: response.Language}, nil
}

// Capabilities returns the STT capabilities.
func (w *WhisperSTT) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{
		SupportedLanguages: []string{
			"en", "zh", "de", "es", "ru", "ko", "fr", "ja", "pt", "tr", "pl", "ca", "nl",
			"ar", "sv", "it", "id", "hi", "fi", "vi", "he", "uk", "el", "ms", "cs", "ro",
		},
		SampleRates: []int{8000, 16000, 22050, 44100, 48000},
	}
}
