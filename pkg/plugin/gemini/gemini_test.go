package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
	"google.golang.org/genai"

	"github.com/chriscow/voicebridge-go/pkg/ai"
	"github.com/chriscow/voicebridge-go/pkg/ai/llm"
)

type fakeModels struct {
	reply    string
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(f.reply, genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 21},
	}, nil
}

func TestChat_MapsRoles(t *testing.T) {
	is := is.New(t)
	models := &fakeModels{reply: "Good morning."}
	provider := newWithGenerator(Config{}, models)

	resp, err := provider.Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "be brief"},
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "hello"},
			{Role: llm.RoleUser, Content: "greet me"},
		},
		MaxTokens:   50,
		Temperature: 0.3,
	})
	is.NoErr(err)
	is.Equal(resp.Message.Content, "Good morning.")
	is.Equal(resp.Message.Role, llm.RoleAssistant)
	is.Equal(resp.TokensUsed, 21)

	is.Equal(models.model, defaultModel)
	is.Equal(len(models.contents), 3)
	is.Equal(models.contents[1].Role, string(genai.RoleModel))
	is.Equal(models.contents[2].Parts[0].Text, "greet me")
	is.Equal(models.config.SystemInstruction.Parts[0].Text, "be brief")
	is.Equal(models.config.MaxOutputTokens, int32(50))
	is.Equal(*models.config.Temperature, float32(0.3))
}

func TestChat_OnlySystemMessage(t *testing.T) {
	is := is.New(t)
	provider := newWithGenerator(Config{}, &fakeModels{})
	_, err := provider.Chat(context.Background(), llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleSystem, Content: "x"}}})
	is.True(ai.IsFatal(err))
}

func TestChat_ErrorClassification(t *testing.T) {
	is := is.New(t)
	provider := newWithGenerator(Config{Model: "gemini-2.5-flash"}, &fakeModels{err: context.DeadlineExceeded})
	_, err := provider.Chat(context.Background(), llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}}})
	is.True(ai.IsRecoverable(err))

	boom := errors.New("permission denied")
	provider = newWithGenerator(Config{}, &fakeModels{err: boom})
	_, err = provider.Chat(context.Background(), llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}}})
	is.True(ai.IsFatal(err))
	is.True(errors.Is(err, boom))
}

func TestNew_RequiresKey(t *testing.T) {
	is := is.New(t)
	_, err := New(context.Background(), Config{})
	is.True(err != nil)
}
