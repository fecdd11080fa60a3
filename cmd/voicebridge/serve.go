package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chriscow/voicebridge-go/internal/config"
	"github.com/chriscow/voicebridge-go/internal/convert"
	"github.com/chriscow/voicebridge-go/internal/framer"
	"github.com/chriscow/voicebridge-go/internal/keepalive"
	"github.com/chriscow/voicebridge-go/internal/metrics"
	"github.com/chriscow/voicebridge-go/internal/relay"
	"github.com/chriscow/voicebridge-go/internal/server"
	"github.com/chriscow/voicebridge-go/internal/session"
	"github.com/chriscow/voicebridge-go/internal/turn"
	"github.com/chriscow/voicebridge-go/pkg/plugin"
	"github.com/chriscow/voicebridge-go/pkg/rtc"
	"github.com/chriscow/voicebridge-go/pkg/speech"
	"github.com/chriscow/voicebridge-go/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the media-stream server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Address = addr
		}
		if useFake, _ := cmd.Flags().GetBool("fake"); useFake {
			cfg.Providers = config.ProvidersConfig{
				STT: config.ProviderConfig{Name: "fake"},
				LLM: config.ProviderConfig{Name: "fake", Options: map[string]any{"echo": true}},
				TTS: config.ProviderConfig{Name: "fake"},
			}
		}

		logger.Info("Starting voicebridge",
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.String("address", cfg.Server.Address),
			slog.String("stt", cfg.Providers.STT.Name),
			slog.String("llm", cfg.Providers.LLM.Name),
			slog.String("tts", cfg.Providers.TTS.Name))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(cfg, plugin.Default(), logger)
		if err != nil {
			return err
		}
		if err := a.converter.Check(ctx); err != nil {
			logger.Warn("Audio converter unavailable, turns will fail until it is installed",
				slog.String("error", err.Error()))
		}
		return a.run(ctx)
	},
}

// app is the fully wired service.
type app struct {
	registry  *prometheus.Registry
	manager   *session.Manager
	converter *convert.Converter
	relay     *relay.Relay
	monitor   *keepalive.Monitor
	server    *server.Server
}

func newApp(cfg *config.Config, plugins *plugin.Registry, logger *slog.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.NewMetrics(reg)

	pipeline, err := newPipeline(cfg, plugins, logger)
	if err != nil {
		return nil, err
	}

	conv := convert.New(convert.Config{
		FFmpegPath:   cfg.Converter.FFmpegPath,
		Timeout:      cfg.Converter.Timeout,
		Telephony:    rtc.Format{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels},
		PipelineRate: cfg.Audio.PipelineSampleRate,
	}, met, logger)

	mgr := session.NewManager(met, logger)
	orch := turn.NewOrchestrator(conv, pipeline, met, logger)
	rl := relay.New(relay.Config{
		StopGrace:    cfg.Session.StopGrace,
		DrainOnStop:  cfg.Session.DrainOnStop,
		StartTimeout: cfg.Session.StartTimeout,
		WriteTimeout: cfg.Session.WriteTimeout,
		Greeting:     cfg.Pipeline.Greeting,
	}, mgr, framer.New(cfg.Audio.FrameThreshold), orch, met, logger)

	return &app{
		registry:  reg,
		manager:   mgr,
		converter: conv,
		relay:     rl,
		monitor:   keepalive.New(mgr, cfg.Session.KeepaliveInterval, met, logger),
		server:    server.New(cfg, rl, mgr, reg, logger),
	}, nil
}

func newPipeline(cfg *config.Config, plugins *plugin.Registry, logger *slog.Logger) (*speech.Composite, error) {
	stt, err := plugins.NewSTT(cfg.Providers.STT.Name, cfg.Providers.STT.Options)
	if err != nil {
		return nil, fmt.Errorf("stt provider: %w", err)
	}
	llm, err := plugins.NewLLM(cfg.Providers.LLM.Name, cfg.Providers.LLM.Options)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	tts, err := plugins.NewTTS(cfg.Providers.TTS.Name, cfg.Providers.TTS.Options)
	if err != nil {
		return nil, fmt.Errorf("tts provider: %w", err)
	}

	return speech.NewComposite(stt, llm, tts, speech.Config{
		TranscribeTimeout: cfg.Pipeline.TranscribeTimeout,
		GenerateTimeout:   cfg.Pipeline.GenerateTimeout,
		SynthesizeTimeout: cfg.Pipeline.SynthesizeTimeout,
		SystemPrompt:      cfg.Pipeline.SystemPrompt,
		Language:          cfg.Pipeline.Language,
		Voice:             cfg.Pipeline.Voice,
		MaxTokens:         cfg.Pipeline.MaxTokens,
		Temperature:       cfg.Pipeline.Temperature,
	}, logger)
}

// run serves HTTP and sweeps keepalives until ctx is cancelled.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(gctx) })
	g.Go(func() error {
		if err := a.monitor.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	return g.Wait()
}
