// Package history stores conversation turns so the reply generator can be
// given recent context. A turn is one utterance (user) or one reply
// (assistant) within a named conversation.
package history

import (
	"context"
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one stored conversation turn.
type Turn struct {
	Role Role
	Text string
	At   time.Time
}

// Store persists conversation turns per conversation ID.
// Implementations must be safe for concurrent use.
type Store interface {
	// AppendTurn adds one turn to the conversation's transcript.
	AppendTurn(ctx context.Context, conversationID string, turn Turn) error

	// RecentTurns returns up to limit of the most recent turns, oldest
	// first. An unknown conversation yields an empty slice, not an error.
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error)
}
