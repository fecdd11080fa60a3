package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chriscow/voicebridge-go/internal/convert"
	"github.com/chriscow/voicebridge-go/pkg/rtc"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Run the audio converter on a file",
	Long: `Run one conversion through the configured ffmpeg binary, exactly as a
call turn would. Useful for checking the codec setup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		in, _ := cmd.Flags().GetString("in")
		out, _ := cmd.Flags().GetString("out")
		direction, _ := cmd.Flags().GetString("direction")

		conv := convert.New(convert.Config{
			FFmpegPath:   cfg.Converter.FFmpegPath,
			Timeout:      cfg.Converter.Timeout,
			Telephony:    rtc.Format{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels},
			PipelineRate: cfg.Audio.PipelineSampleRate,
		}, nil, logger)

		return runConvert(cmd.Context(), conv, convert.Direction(direction), in, out, logger)
	},
}

func runConvert(ctx context.Context, conv *convert.Converter, direction convert.Direction, in, out string, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	var result []byte
	switch direction {
	case convert.ToPipeline:
		result, err = conv.ToPipelineFormat(ctx, data)
	case convert.ToTelephony:
		result, err = conv.ToTelephonyFormat(ctx, data)
	default:
		return fmt.Errorf("unknown direction %q (want %s or %s)", direction, convert.ToPipeline, convert.ToTelephony)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(out, result, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	logger.Info("Converted audio",
		slog.String("direction", string(direction)),
		slog.Int("in_bytes", len(data)),
		slog.Int("out_bytes", len(result)),
		slog.String("out", out))
	return nil
}
