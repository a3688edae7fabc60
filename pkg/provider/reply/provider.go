// Package reply defines the Generator interface for language-model reply
// backends.
//
// A generator takes the user's latest utterance plus recent conversation
// context and produces the assistant's reply text. Tool calling, streaming,
// and token accounting are out of scope for the conversation core; the
// contract is one prompt in, one reply out.
//
// Implementations must be safe for concurrent use.
package reply

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior conversation turn supplied as context.
type Message struct {
	Role    Role
	Content string
}

// Request carries everything the generator needs for one reply.
type Request struct {
	// System is an optional high-priority instruction injected before the
	// conversation history.
	System string

	// History is the ordered prior conversation, oldest first.
	History []Message

	// Prompt is the user's latest utterance.
	Prompt string

	// Temperature controls output randomness; zero means the backend
	// default.
	Temperature float64

	// MaxTokens caps the reply length; zero means the backend default.
	MaxTokens int
}

// Generator is the abstraction over any language-generation backend.
type Generator interface {
	// Reply produces the assistant's reply to the request. An empty reply is
	// a valid outcome.
	Reply(ctx context.Context, req Request) (string, error)
}
