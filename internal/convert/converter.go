// Package convert moves audio between the carrier's raw PCM and the container
// the speech pipeline expects by running ffmpeg once per conversion.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/chriscow/voicebridge-go/internal/metrics"
	"github.com/chriscow/voicebridge-go/pkg/audio/wav"
	"github.com/chriscow/voicebridge-go/pkg/rtc"
)

// Default configuration values.
const (
	DefaultFFmpegPath = "ffmpeg"
	DefaultTimeout    = 10 * time.Second

	// FrameTolerance is how far output duration may drift from input.
	FrameTolerance = 20 * time.Millisecond

	waitDelay   = 2 * time.Second
	stderrLimit = 512
)

// Config configures the converter.
type Config struct {
	FFmpegPath   string
	Timeout      time.Duration
	Telephony    rtc.Format // carrier PCM layout
	PipelineRate int        // sample rate of the WAV handed to transcription
}

// Converter runs ffmpeg to convert between formats. It is safe for
// concurrent use; every call owns its own process.
type Converter struct {
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns a converter. Zero fields take defaults.
func New(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Converter {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = DefaultFFmpegPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Telephony.SampleRate == 0 {
		cfg.Telephony = rtc.Telephony
	}
	if cfg.PipelineRate == 0 {
		cfg.PipelineRate = 16000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{cfg: cfg, metrics: m, logger: logger}
}

// PipelineFormat is the PCM layout inside the WAV that ToPipelineFormat returns.
func (c *Converter) PipelineFormat() rtc.Format {
	return rtc.Format{SampleRate: c.cfg.PipelineRate, Channels: c.cfg.Telephony.Channels}
}

// ToPipelineFormat wraps and resamples raw carrier PCM into a WAV clip.
func (c *Converter) ToPipelineFormat(ctx context.Context, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, &ConversionError{Direction: ToPipeline, Err: ErrEmptyInput}
	}
	if len(raw)%2 != 0 {
		return nil, &ConversionError{Direction: ToPipeline, Err: fmt.Errorf("odd pcm length %d", len(raw))}
	}

	tel := c.cfg.Telephony
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "s16le", "-ar", strconv.Itoa(tel.SampleRate), "-ac", strconv.Itoa(tel.Channels),
		"-i", "pipe:0",
		"-f", "wav", "-ar", strconv.Itoa(c.cfg.PipelineRate), "-ac", strconv.Itoa(tel.Channels),
		"-acodec", "pcm_s16le",
		"pipe:1",
	}

	out, err := c.run(ctx, ToPipeline, args, raw)
	if err != nil {
		return nil, err
	}

	header, pcm, err := wav.Decode(out)
	if err != nil {
		return nil, &ConversionError{Direction: ToPipeline, Err: fmt.Errorf("%w: %v", ErrTruncated, err)}
	}
	if int(header.SampleRate) != c.cfg.PipelineRate {
		return nil, &ConversionError{Direction: ToPipeline,
			Err: fmt.Errorf("codec produced %d Hz, want %d Hz", header.SampleRate, c.cfg.PipelineRate)}
	}
	if err := checkDuration(tel.Duration(len(raw)), header.Format().Duration(len(pcm))); err != nil {
		return nil, &ConversionError{Direction: ToPipeline, Err: err}
	}

	return out, nil
}

// ToTelephonyFormat decodes any container ffmpeg understands into raw carrier PCM.
func (c *Converter) ToTelephonyFormat(ctx context.Context, encoded []byte) ([]byte, error) {
	if len(encoded) == 0 {
		return nil, &ConversionError{Direction: ToTelephony, Err: ErrEmptyInput}
	}

	tel := c.cfg.Telephony
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le", "-ar", strconv.Itoa(tel.SampleRate), "-ac", strconv.Itoa(tel.Channels),
		"-acodec", "pcm_s16le",
		"pipe:1",
	}

	out, err := c.run(ctx, ToTelephony, args, encoded)
	if err != nil {
		return nil, err
	}

	if len(out) == 0 || len(out)%2 != 0 {
		return nil, &ConversionError{Direction: ToTelephony,
			Err: fmt.Errorf("%w: %d bytes of pcm", ErrTruncated, len(out))}
	}

	// Only WAV input carries a duration we can check against.
	if header, pcm, err := wav.Decode(encoded); err == nil {
		if err := checkDuration(header.Format().Duration(len(pcm)), tel.Duration(len(out))); err != nil {
			return nil, &ConversionError{Direction: ToTelephony, Err: err}
		}
	}

	return out, nil
}

// run executes one codec process. exec writes all of input and closes stdin,
// drains stdout and stderr, and waits; on timeout the process is killed and
// the pipes are closed after waitDelay.
func (c *Converter) run(ctx context.Context, dir Direction, args []string, input []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.cfg.FFmpegPath, args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	c.metrics.RecordConversion(string(dir), elapsed)

	if err != nil {
		convErr := &ConversionError{Direction: dir, Err: err, Stderr: tail(stderr.String())}
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			convErr.Err = fmt.Errorf("%w after %v", ErrFFmpegTimeout, c.cfg.Timeout)
		case notFound(err):
			convErr.Err = fmt.Errorf("%w: %s", ErrFFmpegNotFound, c.cfg.FFmpegPath)
		case ctx.Err() != nil:
			convErr.Err = ctx.Err()
		}
		return nil, convErr
	}

	c.logger.Debug("Converted audio",
		slog.String("direction", string(dir)),
		slog.Int("in_bytes", len(input)),
		slog.Int("out_bytes", stdout.Len()),
		slog.Duration("elapsed", elapsed))

	return stdout.Bytes(), nil
}

// Check verifies the codec binary can be executed.
func (c *Converter) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.FFmpegPath, "-version")
	if err := cmd.Run(); err != nil {
		if notFound(err) {
			return fmt.Errorf("%w: %s", ErrFFmpegNotFound, c.cfg.FFmpegPath)
		}
		return fmt.Errorf("ffmpeg check failed: %w", err)
	}
	return nil
}

func notFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

func checkDuration(in, out time.Duration) error {
	diff := in - out
	if diff < 0 {
		diff = -diff
	}
	if diff > FrameTolerance {
		return fmt.Errorf("%w: input %v, output %v", ErrTruncated, in, out)
	}
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrLimit {
		s = "..." + s[len(s)-stderrLimit:]
	}
	return s
}
