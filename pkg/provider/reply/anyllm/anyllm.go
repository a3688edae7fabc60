// Package anyllm provides a reply generator backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and
// local llama.cpp/llamafile servers.
//
// Usage:
//
//	g, err := anyllm.New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-..."))
//	g, err := anyllm.NewOllama("llama3.2")
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/quastler/openfloor/pkg/provider/reply"
)

// Generator implements reply.Generator by wrapping any-llm-go.
type Generator struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a Generator backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp", "llamafile".
//
// opts are any-llm-go configuration options (e.g. anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). Without an API key option the provider falls back
// to its environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(providerName, model string, opts ...anyllmlib.Option) (*Generator, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	return &Generator{backend: backend, model: model}, nil
}

// NewOpenAI creates a Generator backed by OpenAI.
func NewOpenAI(model string, opts ...anyllmlib.Option) (*Generator, error) {
	return New("openai", model, opts...)
}

// NewAnthropic creates a Generator backed by Anthropic.
func NewAnthropic(model string, opts ...anyllmlib.Option) (*Generator, error) {
	return New("anthropic", model, opts...)
}

// NewOllama creates a Generator backed by Ollama (local inference).
// Without options it connects to http://localhost:11434.
func NewOllama(model string, opts ...anyllmlib.Option) (*Generator, error) {
	return New("ollama", model, opts...)
}

// createBackend creates the underlying any-llm-go provider.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// Reply implements reply.Generator.
func (g *Generator) Reply(ctx context.Context, req reply.Request) (string, error) {
	resp, err := g.backend.Completion(ctx, g.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anyllm: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.ContentString()), nil
}

// buildParams converts a reply.Request into anyllm CompletionParams.
func (g *Generator) buildParams(req reply.Request) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message

	if req.System != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.History {
		messages = append(messages, anyllmlib.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	messages = append(messages, anyllmlib.Message{
		Role:    string(reply.RoleUser),
		Content: req.Prompt,
	})

	params := anyllmlib.CompletionParams{
		Model:    g.model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}

// Compile-time assertion that Generator implements reply.Generator.
var _ reply.Generator = (*Generator)(nil)
