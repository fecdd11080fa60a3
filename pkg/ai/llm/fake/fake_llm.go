package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/voicebridge-go/pkg/ai"
	"github.com/chriscow/voicebridge-go/pkg/ai/llm"
)

// FakeLLM is a fake LLM implementation for testing.
type FakeLLM struct {
	responses []string
	echo      bool

	mu        sync.Mutex
	callCount int
	err       error
	delay     time.Duration
	requests  []llm.ChatRequest
}

// NewFakeLLM creates a new fake LLM provider with predefined responses.
func NewFakeLLM(responses ...string) *FakeLLM {
	if len(responses) == 0 {
		responses = []string{
			"This is a fake response from the fake LLM provider.",
			"I'm a fake AI assistant. How can I help you?",
			"This is another fake response for testing purposes.",
		}
	}
	return &FakeLLM{responses: responses}
}

// NewEchoLLM returns a provider that repeats the last user message.
func NewEchoLLM() *FakeLLM {
	return &FakeLLM{echo: true}
}

// FailWith makes every following call return err.
func (f *FakeLLM) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// SetDelay makes every following call block for d or until ctx is done.
func (f *FakeLLM) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Requests returns copies of the requests seen so far.
func (f *FakeLLM) Requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.ChatRequest(nil), f.requests...)
}

// Chat processes a chat request and returns a fake response.
func (f *FakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	f.mu.Lock()
	req.Messages = append([]llm.Message(nil), req.Messages...)
	f.requests = append(f.requests, req)
	err, delay := f.err, f.delay
	var response string
	if !f.echo {
		response = f.responses[f.callCount%len(f.responses)]
	}
	f.callCount++
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return llm.ChatResponse{}, ai.NewRecoverableError("fake", ctx.Err(), "chat interrupted")
		}
	}
	if err != nil {
		return llm.ChatResponse{}, err
	}

	if len(req.Messages) == 0 {
		return llm.ChatResponse{}, ai.NewFatalError("fake", nil, "no messages")
	}

	if f.echo {
		lastMsg := req.Messages[len(req.Messages)-1]
		response = fmt.Sprintf("You said: %s", lastMsg.Content)
	}

	return llm.ChatResponse{
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: response,
		},
		TokensUsed:   len(strings.Fields(response)) + 10,
		FinishReason: "stop",
	}, nil
}

// Capabilities returns the fake LLM capabilities.
func (f *FakeLLM) Capabilities() llm.LLMCapabilities {
	return llm.LLMCapabilities{
		MaxTokens:          4096,
		SupportedModels:    []string{"fake-model-1", "fake-model-2"},
		SupportsSystemRole: true,
	}
}
