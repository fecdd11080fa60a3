package plugin

import (
	"fmt"

	"github.com/chriscow/voicebridge-go/pkg/ai/llm"
	"github.com/chriscow/voicebridge-go/pkg/ai/stt"
	"github.com/chriscow/voicebridge-go/pkg/ai/tts"
)

// NewSTT builds the named speech-to-text provider.
func (r *Registry) NewSTT(name string, cfg map[string]any) (stt.STT, error) {
	instance, err := r.build(KindSTT, name, cfg)
	if err != nil {
		return nil, err
	}
	provider, ok := instance.(stt.STT)
	if !ok {
		return nil, fmt.Errorf("plugin %s/%s does not implement stt.STT (got %T)", KindSTT, name, instance)
	}
	return provider, nil
}

// NewLLM builds the named chat provider.
func (r *Registry) NewLLM(name string, cfg map[string]any) (llm.LLM, error) {
	instance, err := r.build(KindLLM, name, cfg)
	if err != nil {
		return nil, err
	}
	provider, ok := instance.(llm.LLM)
	if !ok {
		return nil, fmt.Errorf("plugin %s/%s does not implement llm.LLM (got %T)", KindLLM, name, instance)
	}
	return provider, nil
}

// NewTTS builds the named text-to-speech provider.
func (r *Registry) NewTTS(name string, cfg map[string]any) (tts.TTS, error) {
	instance, err := r.build(KindTTS, name, cfg)
	if err != nil {
		return nil, err
	}
	provider, ok := instance.(tts.TTS)
	if !ok {
		return nil, fmt.Errorf("plugin %s/%s does not implement tts.TTS (got %T)", KindTTS, name, instance)
	}
	return provider, nil
}

func (r *Registry) build(kind, name string, cfg map[string]any) (any, error) {
	factory, ok := r.Get(kind, name)
	if !ok {
		return nil, fmt.Errorf("no %s plugin named %q is registered", kind, name)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	instance, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s/%s: %w", kind, name, err)
	}
	return instance, nil
}

// StringOption returns cfg[key] when it is a non-empty string, else def.
func StringOption(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

// FloatOption accepts the numeric types YAML decoding produces.
func FloatOption(cfg map[string]any, key string, def float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}
