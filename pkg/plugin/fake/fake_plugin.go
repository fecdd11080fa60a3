// Package fake registers the fake providers so the server can run end to end
// without credentials.
package fake

import (
	"time"

	llmfake "github.com/chriscow/voicebridge-go/pkg/ai/llm/fake"
	sttfake "github.com/chriscow/voicebridge-go/pkg/ai/stt/fake"
	ttsfake "github.com/chriscow/voicebridge-go/pkg/ai/tts/fake"
	"github.com/chriscow/voicebridge-go/pkg/plugin"
)

func newFakeSTT(cfg map[string]any) (any, error) {
	provider := sttfake.NewFakeSTT(plugin.StringOption(cfg, "transcript", "Hello, this is a fake STT transcript"))
	provider.SetDelay(delayOption(cfg))
	return provider, nil
}

func newFakeTTS(cfg map[string]any) (any, error) {
	provider := ttsfake.NewFakeTTS()
	provider.SetDelay(delayOption(cfg))
	return provider, nil
}

func newFakeLLM(cfg map[string]any) (any, error) {
	if echo, ok := cfg["echo"].(bool); ok && echo {
		return llmfake.NewEchoLLM(), nil
	}

	var responses []string
	switch r := cfg["responses"].(type) {
	case []string:
		responses = r
	case []any:
		for _, v := range r {
			if s, ok := v.(string); ok {
				responses = append(responses, s)
			}
		}
	}

	provider := llmfake.NewFakeLLM(responses...)
	provider.SetDelay(delayOption(cfg))
	return provider, nil
}

// delayOption reads "delay" as a duration string such as "200ms".
func delayOption(cfg map[string]any) time.Duration {
	d, err := time.ParseDuration(plugin.StringOption(cfg, "delay", "0s"))
	if err != nil {
		return 0
	}
	return d
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "fake",
		Factory:     newFakeSTT,
		Description: "Fake STT provider for testing and development",
		Version:     "1.0.0",
		Config: map[string]any{
			"transcript": "Customizable transcript text",
			"delay":      "0s",
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "fake",
		Factory:     newFakeTTS,
		Description: "Fake TTS provider returning a WAV sine tone",
		Version:     "1.0.0",
		Config: map[string]any{
			"delay": "0s",
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "fake",
		Factory:     newFakeLLM,
		Description: "Fake LLM provider for testing and development",
		Version:     "1.0.0",
		Config: map[string]any{
			"responses": []string{"List of predefined responses"},
			"echo":      false,
			"delay":     "0s",
		},
	})
}
