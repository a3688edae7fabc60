package anyllm

import (
	"testing"

	"github.com/quastler/openfloor/pkg/provider/reply"
)

func TestNewValidation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("expected error for empty provider name")
	}
	if _, err := New("openai", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("smoke-signals", "model"); err == nil {
		t.Error("expected error for unsupported provider name")
	}
}

// TestBuildParams_MessageOrder checks that the system prompt leads, history
// follows in order, and the prompt arrives last as a user message.
func TestBuildParams_MessageOrder(t *testing.T) {
	g := &Generator{model: "test-model"}
	params := g.buildParams(reply.Request{
		System: "You are a concise voice assistant.",
		History: []reply.Message{
			{Role: reply.RoleUser, Content: "hi"},
			{Role: reply.RoleAssistant, Content: "hello"},
		},
		Prompt: "what time is it?",
	})

	if params.Model != "test-model" {
		t.Errorf("expected model test-model, got %q", params.Model)
	}
	if len(params.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != "system" {
		t.Errorf("expected leading system message, got role %q", params.Messages[0].Role)
	}
	if params.Messages[2].Role != "assistant" {
		t.Errorf("expected assistant history message, got role %q", params.Messages[2].Role)
	}
	last := params.Messages[3]
	if last.Role != "user" || last.ContentString() != "what time is it?" {
		t.Errorf("unexpected final message: role %q content %q", last.Role, last.ContentString())
	}
}

// TestBuildParams_Optionals checks temperature and token cap handling.
func TestBuildParams_Optionals(t *testing.T) {
	g := &Generator{model: "m"}

	params := g.buildParams(reply.Request{Prompt: "hi"})
	if params.Temperature != nil {
		t.Error("expected nil Temperature for zero value")
	}
	if params.MaxTokens != nil {
		t.Error("expected nil MaxTokens for zero value")
	}

	params = g.buildParams(reply.Request{Prompt: "hi", Temperature: 0.7, MaxTokens: 128})
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("unexpected Temperature: %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 128 {
		t.Errorf("unexpected MaxTokens: %v", params.MaxTokens)
	}
}
