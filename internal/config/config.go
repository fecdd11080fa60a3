// Package config loads the voicebridge YAML configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Converter ConverterConfig `yaml:"converter"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Session   SessionConfig   `yaml:"session"`
	Providers ProvidersConfig `yaml:"providers"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP listener and media-stream endpoint settings
type ServerConfig struct {
	Address           string        `yaml:"address"`
	MediaPath         string        `yaml:"media_path"`
	PublicURL         string        `yaml:"public_url"` // wss:// base used in the TwiML response
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	Announcement      string        `yaml:"announcement"` // read by the carrier before the stream opens
	AnnouncementVoice string        `yaml:"announcement_voice"`
}

// AudioConfig describes the carrier audio and how much of it forms a turn
type AudioConfig struct {
	SampleRate         int `yaml:"sample_rate"`
	Channels           int `yaml:"channels"`
	FrameThreshold     int `yaml:"frame_threshold"`
	PipelineSampleRate int `yaml:"pipeline_sample_rate"`
}

// ConverterConfig configures the external codec process
type ConverterConfig struct {
	FFmpegPath string        `yaml:"ffmpeg_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// PipelineConfig holds per-call timeouts and conversation settings
type PipelineConfig struct {
	TranscribeTimeout time.Duration `yaml:"transcribe_timeout"`
	GenerateTimeout   time.Duration `yaml:"generate_timeout"`
	SynthesizeTimeout time.Duration `yaml:"synthesize_timeout"`
	SystemPrompt      string        `yaml:"system_prompt"`
	Greeting          string        `yaml:"greeting"`
	Language          string        `yaml:"language"`
	Voice             string        `yaml:"voice"`
	MaxTokens         int           `yaml:"max_tokens"`
	Temperature       float32       `yaml:"temperature"`
}

// SessionConfig controls call teardown and liveness
type SessionConfig struct {
	StopGrace         time.Duration `yaml:"stop_grace"`
	StartTimeout      time.Duration `yaml:"start_timeout"`
	DrainOnStop       bool          `yaml:"drain_on_stop"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	MaxMessageSize    int64         `yaml:"max_message_size"`
}

// ProviderConfig selects a registered plugin and passes it options
type ProviderConfig struct {
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:"options"`
}

// ProvidersConfig picks one provider per pipeline stage
type ProvidersConfig struct {
	STT ProviderConfig `yaml:"stt"`
	LLM ProviderConfig `yaml:"llm"`
	TTS ProviderConfig `yaml:"tts"`
}

// MetricsConfig contains Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:           ":10000",
			MediaPath:         "/media-stream",
			ShutdownTimeout:   10 * time.Second,
			AnnouncementVoice: "alice",
		},
		Audio: AudioConfig{
			SampleRate:         8000,
			Channels:           1,
			FrameThreshold:     50,
			PipelineSampleRate: 16000,
		},
		Converter: ConverterConfig{
			FFmpegPath: "ffmpeg",
			Timeout:    10 * time.Second,
		},
		Pipeline: PipelineConfig{
			TranscribeTimeout: 15 * time.Second,
			GenerateTimeout:   20 * time.Second,
			SynthesizeTimeout: 15 * time.Second,
			SystemPrompt:      "You are a helpful voice assistant on a phone call. Keep answers short and conversational.",
			MaxTokens:         256,
			Temperature:       0.7,
		},
		Session: SessionConfig{
			StopGrace:         5 * time.Second,
			StartTimeout:      10 * time.Second,
			DrainOnStop:       true,
			KeepaliveInterval: 30 * time.Second,
			WriteTimeout:      10 * time.Second,
			MaxMessageSize:    1 << 20,
		},
		Providers: ProvidersConfig{
			STT: ProviderConfig{Name: "openai"},
			LLM: ProviderConfig{Name: "openai"},
			TTS: ProviderConfig{Name: "openai"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration file over the defaults. An empty path yields
// the defaults. PORT in the environment overrides the listen port.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("PORT must be numeric, got %q", port)
		}
		host, _, err := net.SplitHostPort(c.Server.Address)
		if err != nil {
			host = ""
		}
		c.Server.Address = net.JoinHostPort(host, port)
	}
	if level := os.Getenv("VOICEBRIDGE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("VOICEBRIDGE_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	return nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Converter.Validate(); err != nil {
		return fmt.Errorf("converter config: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if err := c.Providers.Validate(); err != nil {
		return fmt.Errorf("providers config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !strings.HasPrefix(s.MediaPath, "/") {
		return fmt.Errorf("media_path must start with /, got %q", s.MediaPath)
	}
	if s.PublicURL != "" && !strings.HasPrefix(s.PublicURL, "ws://") && !strings.HasPrefix(s.PublicURL, "wss://") {
		return fmt.Errorf("public_url must be a ws:// or wss:// URL, got %q", s.PublicURL)
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", s.ShutdownTimeout)
	}
	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", a.SampleRate)
	}
	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono) for telephony, got %d", a.Channels)
	}
	if a.FrameThreshold < 1 {
		return fmt.Errorf("frame_threshold must be at least 1, got %d", a.FrameThreshold)
	}
	if a.PipelineSampleRate <= 0 {
		return fmt.Errorf("pipeline_sample_rate must be positive, got %d", a.PipelineSampleRate)
	}
	return nil
}

// Validate validates converter configuration
func (c *ConverterConfig) Validate() error {
	if c.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg_path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.TranscribeTimeout <= 0 || p.GenerateTimeout <= 0 || p.SynthesizeTimeout <= 0 {
		return fmt.Errorf("transcribe, generate and synthesize timeouts must all be positive")
	}
	if p.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative, got %d", p.MaxTokens)
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", p.Temperature)
	}
	return nil
}

// Validate validates session configuration
func (s *SessionConfig) Validate() error {
	if s.StopGrace <= 0 {
		return fmt.Errorf("stop_grace must be positive, got %v", s.StopGrace)
	}
	if s.StartTimeout < 0 {
		return fmt.Errorf("start_timeout must not be negative, got %v", s.StartTimeout)
	}
	if s.KeepaliveInterval < time.Second {
		return fmt.Errorf("keepalive_interval must be at least 1s, got %v", s.KeepaliveInterval)
	}
	if s.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive, got %v", s.WriteTimeout)
	}
	if s.MaxMessageSize < 1024 {
		return fmt.Errorf("max_message_size must be at least 1024 bytes, got %d", s.MaxMessageSize)
	}
	return nil
}

// Validate validates provider selection
func (p *ProvidersConfig) Validate() error {
	for kind, name := range map[string]string{"stt": p.STT.Name, "llm": p.LLM.Name, "tts": p.TTS.Name} {
		if name == "" {
			return fmt.Errorf("%s provider name cannot be empty", kind)
		}
	}
	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Enabled && !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("path must start with / when metrics are enabled, got %q", m.Path)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("format must be json, text or console, got %q", l.Format)
	}
	return nil
}
