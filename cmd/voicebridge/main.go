package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chriscow/voicebridge-go/internal/config"
	"github.com/chriscow/voicebridge-go/pkg/plugin"
	_ "github.com/chriscow/voicebridge-go/pkg/plugin/fake"   // Import to register fake plugins
	_ "github.com/chriscow/voicebridge-go/pkg/plugin/gemini" // Import to register Gemini plugin
	_ "github.com/chriscow/voicebridge-go/pkg/plugin/openai" // Import to register OpenAI plugins
	_ "github.com/chriscow/voicebridge-go/pkg/plugin/polly"  // Import to register Polly plugin
	"github.com/chriscow/voicebridge-go/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "voicebridge",
	Short: "Voicebridge - a telephony voice bridge for speech pipelines",
	Long: `voicebridge accepts a carrier's bidirectional media stream, turns the
caller's audio into conversational turns and plays synthesized replies back
on the same call.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Plugin management commands",
}

var pluginListCmd = &cobra.Command{
	Use:   "list [kind]",
	Short: "List registered plugins",
	Long: `List all registered plugins or plugins of a specific kind.
Available kinds: stt, llm, tts`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := ""
		if len(args) > 0 {
			kind = args[0]
		}
		listPlugins(cmd.OutOrStdout(), kind)
		return nil
	},
}

func listPlugins(w io.Writer, kind string) {
	plugins := plugin.List(kind)
	if len(plugins) == 0 {
		if kind == "" {
			fmt.Fprintln(w, "No plugins registered")
		} else {
			fmt.Fprintf(w, "No plugins registered for kind: %s\n", kind)
		}
		return
	}

	fmt.Fprintf(w, "%-8s %-20s %-10s %s\n", "KIND", "NAME", "VERSION", "DESCRIPTION")
	fmt.Fprintln(w, "------------------------------------------------------------")
	for _, p := range plugins {
		ver := p.Version
		if ver == "" {
			ver = "N/A"
		}
		description := p.Description
		if description == "" {
			description = "No description"
		}
		fmt.Fprintf(w, "%-8s %-20s %-10s %s\n", p.Kind, p.Name, ver, description)
	}
}

// setupLogger builds the process logger from the logging config and makes
// it the slog default.
func setupLogger(cfg config.LoggingConfig, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{}

	switch strings.ToLower(cfg.Level) {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Format == "console" || cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// loadConfig reads --config and builds the logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, setupLogger(cfg.Logging, os.Stdout), nil
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to YAML config file")

	serveCmd.Flags().String("addr", "", "Listen address (overrides server.address)")
	serveCmd.Flags().Bool("fake", false, "Use fake speech providers (no API keys needed)")

	convertCmd.Flags().String("in", "", "Input file")
	convertCmd.Flags().String("out", "", "Output file")
	convertCmd.Flags().String("direction", "to-pipeline", "to-pipeline (raw PCM in, WAV out) or to-telephony (any audio in, raw PCM out)")
	convertCmd.MarkFlagRequired("in")
	convertCmd.MarkFlagRequired("out")

	pluginCmd.AddCommand(pluginListCmd)
	rootCmd.AddCommand(versionCmd, serveCmd, pluginCmd, convertCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
