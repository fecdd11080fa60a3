// Package speech assembles speech-to-text, chat and text-to-speech providers
// into the three-call pipeline a call turn runs through.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chriscow/voicebridge-go/pkg/ai/llm"
	"github.com/chriscow/voicebridge-go/pkg/ai/stt"
	"github.com/chriscow/voicebridge-go/pkg/ai/tts"
)

// Pipeline is the capability a turn consumes. Each call is independent and
// makes exactly one attempt.
type Pipeline interface {
	// Transcribe turns an encoded clip into text. Silence yields "".
	Transcribe(ctx context.Context, audio []byte) (string, error)

	// Generate produces a reply to text given the prior conversation.
	Generate(ctx context.Context, text string, history []llm.Message) (string, error)

	// Synthesize renders text as one complete encoded clip.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config holds per-call timeouts and request defaults.
type Config struct {
	TranscribeTimeout time.Duration
	GenerateTimeout   time.Duration
	SynthesizeTimeout time.Duration

	SystemPrompt string
	Language     string
	Voice        string
	MaxTokens    int
	Temperature  float32
}

// DefaultConfig returns the timeouts used when none are configured.
func DefaultConfig() Config {
	return Config{
		TranscribeTimeout: 15 * time.Second,
		GenerateTimeout:   20 * time.Second,
		SynthesizeTimeout: 15 * time.Second,
		SystemPrompt:      "You are a helpful voice assistant on a phone call. Keep answers short and conversational.",
		MaxTokens:         256,
		Temperature:       0.7,
	}
}

// Composite is a Pipeline backed by one provider per stage.
type Composite struct {
	stt    stt.STT
	llm    llm.LLM
	tts    tts.TTS
	cfg    Config
	logger *slog.Logger
}

// NewComposite builds a pipeline. Zero timeouts fall back to DefaultConfig.
func NewComposite(s stt.STT, l llm.LLM, t tts.TTS, cfg Config, logger *slog.Logger) (*Composite, error) {
	if s == nil || l == nil || t == nil {
		return nil, fmt.Errorf("stt, llm and tts providers are all required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = def.TranscribeTimeout
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = def.GenerateTimeout
	}
	if cfg.SynthesizeTimeout <= 0 {
		cfg.SynthesizeTimeout = def.SynthesizeTimeout
	}

	return &Composite{stt: s, llm: l, tts: t, cfg: cfg, logger: logger}, nil
}

// Transcribe implements Pipeline.
func (c *Composite) Transcribe(ctx context.Context, audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TranscribeTimeout)
	defer cancel()

	start := time.Now()
	res, err := c.stt.Transcribe(ctx, stt.TranscribeRequest{
		Audio:    audio,
		Filename: "audio.wav",
		Language: c.cfg.Language,
	})
	if err != nil {
		return "", stageError(ctx, StageTranscribe, err)
	}

	text := strings.TrimSpace(res.Text)
	c.logger.Debug("Transcribed audio",
		slog.Int("bytes", len(audio)),
		slog.Int("chars", len(text)),
		slog.Duration("elapsed", time.Since(start)))
	return text, nil
}

// Generate implements Pipeline. The system prompt leads, then history, then text.
func (c *Composite) Generate(ctx context.Context, text string, history []llm.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GenerateTimeout)
	defer cancel()

	messages := make([]llm.Message, 0, len(history)+2)
	if c.cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: c.cfg.SystemPrompt})
	}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})

	start := time.Now()
	resp, err := c.llm.Chat(ctx, llm.ChatRequest{
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", stageError(ctx, StageGenerate, err)
	}

	reply := strings.TrimSpace(resp.Message.Content)
	if reply == "" {
		return "", &StageError{Stage: StageGenerate, Err: errors.New("empty reply")}
	}

	c.logger.Debug("Generated reply",
		slog.Int("history", len(history)),
		slog.Int("tokens", resp.TokensUsed),
		slog.Duration("elapsed", time.Since(start)))
	return reply, nil
}

// Synthesize implements Pipeline.
func (c *Composite) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SynthesizeTimeout)
	defer cancel()

	start := time.Now()
	speech, err := c.tts.Synthesize(ctx, tts.SynthesizeRequest{
		Text:     text,
		Voice:    c.cfg.Voice,
		Language: c.cfg.Language,
	})
	if err != nil {
		return nil, stageError(ctx, StageSynthesize, err)
	}
	if len(speech.Audio) == 0 {
		return nil, &StageError{Stage: StageSynthesize, Err: errors.New("provider returned no audio")}
	}

	c.logger.Debug("Synthesized reply",
		slog.Int("chars", len(text)),
		slog.Int("bytes", len(speech.Audio)),
		slog.String("format", speech.Format),
		slog.Duration("elapsed", time.Since(start)))
	return speech.Audio, nil
}

func stageError(ctx context.Context, stage Stage, err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	return &StageError{Stage: stage, Err: err, Timeout: timeout}
}
