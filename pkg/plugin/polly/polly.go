// Package polly provides an Amazon Polly text-to-speech provider.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/chriscow/voicebridge-go/pkg/ai"
	"github.com/chriscow/voicebridge-go/pkg/ai/tts"
	"github.com/chriscow/voicebridge-go/pkg/audio/wav"
	"github.com/chriscow/voicebridge-go/pkg/plugin"
	"github.com/chriscow/voicebridge-go/pkg/rtc"
)

const providerName = "polly"

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Config holds Polly options.
type Config struct {
	Region     string
	VoiceID    string
	Engine     string // "standard" or "neural"
	Format     string // "pcm" (returned as WAV) or "mp3"
	SampleRate int    // PCM only: 8000 or 16000
}

// DefaultConfig returns the options used for unset fields.
func DefaultConfig() Config {
	return Config{
		Region:     "us-east-1",
		VoiceID:    string(pollytypes.VoiceIdJoanna),
		Engine:     "neural",
		Format:     "pcm",
		SampleRate: 16000,
	}
}

// TTS synthesizes speech with Amazon Polly.
type TTS struct {
	cfg Config

	mu     sync.Mutex
	client synthClient
}

// New creates a provider that loads AWS credentials from the default chain on
// first use.
func New(cfg Config) (*TTS, error) {
	return NewWithClient(cfg, nil)
}

// NewWithClient creates a provider with an injected client.
func NewWithClient(cfg Config, client synthClient) (*TTS, error) {
	def := DefaultConfig()
	cfg.Region = defaultString(cfg.Region, def.Region)
	cfg.VoiceID = defaultString(cfg.VoiceID, def.VoiceID)
	cfg.Engine = defaultString(cfg.Engine, def.Engine)
	cfg.Format = strings.ToLower(defaultString(cfg.Format, def.Format))
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}

	if cfg.Format != "pcm" && cfg.Format != "mp3" {
		return nil, fmt.Errorf("unsupported polly output format %q", cfg.Format)
	}
	if cfg.Format == "pcm" && cfg.SampleRate != 8000 && cfg.SampleRate != 16000 {
		return nil, fmt.Errorf("polly pcm output supports 8000 or 16000 Hz, got %d", cfg.SampleRate)
	}

	return &TTS{cfg: cfg, client: client}, nil
}

func newPollyTTS(cfg map[string]any) (any, error) {
	return New(Config{
		Region:     plugin.StringOption(cfg, "region", ""),
		VoiceID:    plugin.StringOption(cfg, "voice", ""),
		Engine:     plugin.StringOption(cfg, "engine", ""),
		Format:     plugin.StringOption(cfg, "format", ""),
		SampleRate: int(plugin.FloatOption(cfg, "sample_rate", 0)),
	})
}

// Synthesize implements tts.TTS.
func (p *TTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (tts.Speech, error) {
	client, err := p.resolveClient(ctx)
	if err != nil {
		return tts.Speech{}, ai.NewFatalError(providerName, err, "client setup failed")
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(p.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}
	voice := defaultString(req.Voice, p.cfg.VoiceID)

	input := &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         aws.String(req.Text),
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(voice),
	}
	if p.cfg.Format == "pcm" {
		input.OutputFormat = pollytypes.OutputFormatPcm
		input.SampleRate = aws.String(strconv.Itoa(p.cfg.SampleRate))
	}

	start := time.Now()
	output, err := client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return tts.Speech{}, normalizePollyError(err)
	}
	if output == nil || output.AudioStream == nil {
		return tts.Speech{}, ai.NewRecoverableError(providerName, nil, "provider returned empty audio")
	}
	defer output.AudioStream.Close()

	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return tts.Speech{}, ai.NewRecoverableError(providerName, err, "reading audio stream")
	}

	slog.Debug("Polly synthesis completed",
		slog.String("voice", voice),
		slog.String("format", p.cfg.Format),
		slog.Int("bytes", len(audio)),
		slog.Duration("elapsed", time.Since(start)))

	if p.cfg.Format == "mp3" {
		return tts.Speech{Audio: audio, Format: "mp3"}, nil
	}

	// Polly PCM is headerless s16le mono.
	if len(audio)%2 == 1 {
		audio = audio[:len(audio)-1]
	}
	wrapped, err := wav.Encode(audio, rtc.Format{SampleRate: p.cfg.SampleRate, Channels: 1})
	if err != nil {
		return tts.Speech{}, ai.NewFatalError(providerName, err, "wrapping pcm")
	}
	return tts.Speech{Audio: wrapped, Format: "wav"}, nil
}

// Capabilities implements tts.TTS.
func (p *TTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		SupportedLanguages: []string{"en-US", "en-GB", "es-ES", "es-US", "fr-FR", "de-DE"},
		SupportedVoices: []string{
			string(pollytypes.VoiceIdJoanna), string(pollytypes.VoiceIdMatthew),
			string(pollytypes.VoiceIdAmy), string(pollytypes.VoiceIdLupe),
		},
		OutputFormats: []string{"wav", "mp3"},
	}
}

func normalizePollyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ai.NewRecoverableError(providerName, err, "request interrupted")
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "ServiceFailureException":
			return ai.NewRecoverableError(providerName, err, "service unavailable")
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException",
			"MarksNotSupportedForFormatException", "InvalidSampleRateException", "EngineNotSupportedException":
			return ai.NewFatalError(providerName, err, "synthesis rejected")
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return ai.NewRecoverableError(providerName, err, "server error")
		}
		return ai.NewFatalError(providerName, err, "synthesis rejected")
	}

	return ai.NewRecoverableError(providerName, err, "transport error")
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func (p *TTS) resolveClient(ctx context.Context) (synthClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	p.client = polly.NewFromConfig(awsCfg)
	return p.client, nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        providerName,
		Factory:     newPollyTTS,
		Description: "Amazon Polly text-to-speech (AWS default credential chain)",
		Version:     "1.0.0",
		Config: map[string]any{
			"region":      "us-east-1",
			"voice":       string(pollytypes.VoiceIdJoanna),
			"engine":      "neural",
			"format":      "pcm",
			"sample_rate": 16000,
		},
	})
}
