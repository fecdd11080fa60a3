// Package openai provides OpenAI-based providers: Whisper transcription,
// chat completion and speech synthesis.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/voicebridge-go/pkg/ai"
	"github.com/chriscow/voicebridge-go/pkg/plugin"
)

const providerName = "openai"

// Config holds configuration shared by the OpenAI providers.
type Config struct {
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"` // Default: the public API
	Model    string `json:"model"`
	Language string `json:"language"` // STT only; empty means auto-detect
	Voice    string `json:"voice"`    // TTS only
}

// configFromMap reads plugin options, falling back to OPENAI_API_KEY.
func configFromMap(cfg map[string]any) (Config, error) {
	c := Config{
		APIKey:   plugin.StringOption(cfg, "api_key", os.Getenv("OPENAI_API_KEY")),
		BaseURL:  plugin.StringOption(cfg, "base_url", ""),
		Model:    plugin.StringOption(cfg, "model", ""),
		Language: plugin.StringOption(cfg, "language", ""),
		Voice:    plugin.StringOption(cfg, "voice", ""),
	}
	if c.APIKey == "" {
		return c, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY environment variable or provide api_key in config)")
	}
	return c, nil
}

func newClient(cfg Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

// classifyError marks rate limits, server errors and timeouts as recoverable.
func classifyError(err error, message string) error {
	if err == nil {
		return nil
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ai.NewRecoverableError(providerName, err, message)
	}

	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return ai.NewRecoverableError(providerName, err, message)
	}
	return ai.NewFatalError(providerName, err, message)
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        providerName,
		Factory:     newOpenAISTT,
		Description: "OpenAI Whisper speech-to-text service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":    openai.Whisper1,
			"language": "auto-detect (leave empty) or specify language code",
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        providerName,
		Factory:     newOpenAILLM,
		Description: "OpenAI GPT chat completion service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key": "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":   defaultChatModel,
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        providerName,
		Factory:     newOpenAITTS,
		Description: "OpenAI text-to-speech service (WAV output)",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key": "OpenAI API key (or set OPENAI_API_KEY env var)",
			"model":   string(openai.TTSModel1),
			"voice":   string(openai.VoiceAlloy),
		},
	})
}
