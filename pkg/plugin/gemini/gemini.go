// Package gemini provides a Google Gemini chat provider.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/chriscow/voicebridge-go/pkg/ai"
	"github.com/chriscow/voicebridge-go/pkg/ai/llm"
	"github.com/chriscow/voicebridge-go/pkg/plugin"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-2.0-flash"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds Gemini options.
type Config struct {
	APIKey string
	Model  string
}

// LLM implements llm.LLM with the Gemini API.
type LLM struct {
	models contentGenerator
	model  string
}

// New creates a Gemini chat provider.
func New(ctx context.Context, cfg Config) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newWithGenerator(cfg, client.Models), nil
}

func newWithGenerator(cfg Config, models contentGenerator) *LLM {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &LLM{models: models, model: model}
}

func newGeminiLLM(cfg map[string]any) (any, error) {
	key := plugin.StringOption(cfg, "api_key", os.Getenv("GEMINI_API_KEY"))
	if key == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY environment variable or provide api_key in config)")
	}
	return New(context.Background(), Config{
		APIKey: key,
		Model:  plugin.StringOption(cfg, "model", ""),
	})
}

// Chat implements llm.LLM. System messages become the system instruction and
// assistant turns are sent with the model role.
func (g *LLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	start := time.Now()

	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, msg.Content)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return llm.ChatResponse{}, ai.NewFatalError(providerName, nil, "no user or assistant messages")
	}

	config := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser)
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return llm.ChatResponse{}, ai.Classify(providerName, err, "generate content failed")
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return llm.ChatResponse{}, ai.NewFatalError(providerName, nil, "no candidates returned")
	}

	out := llm.ChatResponse{
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: resp.Text(),
		},
		FinishReason: string(resp.Candidates[0].FinishReason),
	}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}

	slog.Debug("Gemini completion",
		slog.String("model", g.model),
		slog.Int("messages", len(req.Messages)),
		slog.Duration("elapsed", time.Since(start)))

	return out, nil
}

// Capabilities implements llm.LLM.
func (g *LLM) Capabilities() llm.LLMCapabilities {
	return llm.LLMCapabilities{
		MaxTokens:          8192,
		SupportedModels:    []string{"gemini-2.0-flash", "gemini-2.5-flash", "gemini-2.5-pro"},
		SupportsSystemRole: true,
	}
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        providerName,
		Factory:     newGeminiLLM,
		Description: "Google Gemini chat generation",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key": "Gemini API key (or set GEMINI_API_KEY env var)",
			"model":   defaultModel,
		},
	})
}
