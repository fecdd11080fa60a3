package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/voicebridge-go/pkg/ai/llm"
)

func TestFakeLLM_CyclesResponses(t *testing.T) {
	is := is.New(t)
	provider := NewFakeLLM("one", "two")
	req := llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}}

	for _, want := range []string{"one", "two", "one"} {
		resp, err := provider.Chat(context.Background(), req)
		is.NoErr(err)
		is.Equal(resp.Message.Role, llm.RoleAssistant)
		is.Equal(resp.Message.Content, want)
		is.Equal(resp.FinishReason, "stop")
	}
	is.Equal(len(provider.Requests()), 3)
}

func TestFakeLLM_Echo(t *testing.T) {
	is := is.New(t)
	resp, err := NewEchoLLM().Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "be brief"},
			{Role: llm.RoleUser, Content: "what time is it"},
		},
	})
	is.NoErr(err)
	is.Equal(resp.Message.Content, "You said: what time is it")
}

func TestFakeLLM_NoMessages(t *testing.T) {
	is := is.New(t)
	_, err := NewFakeLLM().Chat(context.Background(), llm.ChatRequest{})
	is.True(err != nil)
}

func TestFakeLLM_FailWith(t *testing.T) {
	is := is.New(t)
	boom := errors.New("quota")
	provider := NewFakeLLM()
	provider.FailWith(boom)

	_, err := provider.Chat(context.Background(), llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}}})
	is.True(errors.Is(err, boom))
}

func TestFakeLLM_RequestsAreCopied(t *testing.T) {
	is := is.New(t)
	provider := NewFakeLLM("ok")
	msgs := []llm.Message{{Role: llm.RoleUser, Content: "first"}}

	_, err := provider.Chat(context.Background(), llm.ChatRequest{Messages: msgs})
	is.NoErr(err)

	msgs[0].Content = "changed"
	is.Equal(provider.Requests()[0].Messages[0].Content, "first")
}
