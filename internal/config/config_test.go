package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestDefaultIsValid(t *testing.T) {
	is := is.New(t)
	is.NoErr(Default().Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{name: "valid configuration", mutate: func(*Config) {}},
		{
			name:     "media path without slash",
			mutate:   func(c *Config) { c.Server.MediaPath = "media" },
			errorMsg: "media_path must start with /",
		},
		{
			name:     "http public url",
			mutate:   func(c *Config) { c.Server.PublicURL = "https://example.com" },
			errorMsg: "public_url must be a ws://",
		},
		{
			name:     "stereo carrier",
			mutate:   func(c *Config) { c.Audio.Channels = 2 },
			errorMsg: "channels must be 1",
		},
		{
			name:     "zero threshold",
			mutate:   func(c *Config) { c.Audio.FrameThreshold = 0 },
			errorMsg: "frame_threshold must be at least 1",
		},
		{
			name:     "zero converter timeout",
			mutate:   func(c *Config) { c.Converter.Timeout = 0 },
			errorMsg: "converter config",
		},
		{
			name:     "negative generate timeout",
			mutate:   func(c *Config) { c.Pipeline.GenerateTimeout = -time.Second },
			errorMsg: "timeouts must all be positive",
		},
		{
			name:     "keepalive too short",
			mutate:   func(c *Config) { c.Session.KeepaliveInterval = 10 * time.Millisecond },
			errorMsg: "keepalive_interval",
		},
		{
			name:     "negative start timeout",
			mutate:   func(c *Config) { c.Session.StartTimeout = -time.Second },
			errorMsg: "start_timeout must not be negative",
		},
		{
			name:     "missing tts provider",
			mutate:   func(c *Config) { c.Providers.TTS.Name = "" },
			errorMsg: "tts provider name cannot be empty",
		},
		{
			name:     "bad log level",
			mutate:   func(c *Config) { c.Logging.Level = "verbose" },
			errorMsg: "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errorMsg == "" {
				is.NoErr(err)
				return
			}
			is.True(err != nil)
			is.True(strings.Contains(err.Error(), tt.errorMsg))
		})
	}
}

func TestLoad(t *testing.T) {
	is := is.New(t)
	t.Setenv("PORT", "")

	path := filepath.Join(t.TempDir(), "voicebridge.yaml")
	err := os.WriteFile(path, []byte(`
server:
  address: "127.0.0.1:8080"
  public_url: "wss://bridge.example.com"
audio:
  frame_threshold: 25
session:
  stop_grace: 2s
  drain_on_stop: false
pipeline:
  greeting: "Hi, how can I help?"
providers:
  stt:
    name: fake
    options:
      transcript: "hello"
  llm:
    name: gemini
    options:
      model: gemini-2.5-flash
  tts:
    name: polly
    options:
      sample_rate: 8000
`), 0o644)
	is.NoErr(err)

	cfg, err := Load(path)
	is.NoErr(err)
	is.Equal(cfg.Server.Address, "127.0.0.1:8080")
	is.Equal(cfg.Server.MediaPath, "/media-stream") // default kept
	is.Equal(cfg.Audio.FrameThreshold, 25)
	is.Equal(cfg.Audio.SampleRate, 8000)
	is.Equal(cfg.Session.StopGrace, 2*time.Second)
	is.True(!cfg.Session.DrainOnStop)
	is.Equal(cfg.Pipeline.Greeting, "Hi, how can I help?")
	is.Equal(cfg.Providers.STT.Name, "fake")
	is.Equal(cfg.Providers.STT.Options["transcript"], "hello")
	is.Equal(cfg.Providers.TTS.Options["sample_rate"], 8000)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	is := is.New(t)
	t.Setenv("PORT", "")
	t.Setenv("VOICEBRIDGE_LOG_LEVEL", "")
	t.Setenv("VOICEBRIDGE_LOG_FORMAT", "")

	cfg, err := Load("")
	is.NoErr(err)
	is.Equal(cfg, Default())
}

func TestLoad_Environment(t *testing.T) {
	is := is.New(t)
	t.Setenv("PORT", "5050")
	t.Setenv("VOICEBRIDGE_LOG_LEVEL", "debug")
	t.Setenv("VOICEBRIDGE_LOG_FORMAT", "text")

	cfg, err := Load("")
	is.NoErr(err)
	is.Equal(cfg.Server.Address, ":5050")
	is.Equal(cfg.Logging.Level, "debug")
	is.Equal(cfg.Logging.Format, "text")

	t.Setenv("PORT", "http")
	_, err = Load("")
	is.True(err != nil)
}

func TestLoad_Errors(t *testing.T) {
	is := is.New(t)
	t.Setenv("PORT", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	is.True(err != nil)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	is.NoErr(os.WriteFile(path, []byte("audio:\n  frame_threshold: -1\n"), 0o644))
	_, err = Load(path)
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "config validation failed"))
}
