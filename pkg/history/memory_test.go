package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/quastler/openfloor/pkg/history"
)

func TestMemoryStoreAppendAndRecent(t *testing.T) {
	t.Parallel()

	s := history.NewMemoryStore(0)
	ctx := context.Background()
	at := time.Unix(100, 0)

	turns := []history.Turn{
		{Role: history.RoleUser, Text: "hi", At: at},
		{Role: history.RoleAssistant, Text: "hello", At: at.Add(time.Second)},
		{Role: history.RoleUser, Text: "bye", At: at.Add(2 * time.Second)},
	}
	for _, turn := range turns {
		if err := s.AppendTurn(ctx, "conv-1", turn); err != nil {
			t.Fatalf("AppendTurn() error: %v", err)
		}
	}

	got, err := s.RecentTurns(ctx, "conv-1", 2)
	if err != nil {
		t.Fatalf("RecentTurns() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Text != "hello" || got[1].Text != "bye" {
		t.Fatalf("turns = %+v, want the two most recent oldest-first", got)
	}
}

func TestMemoryStoreUnknownConversation(t *testing.T) {
	t.Parallel()

	s := history.NewMemoryStore(0)
	got, err := s.RecentTurns(context.Background(), "nope", 10)
	if err != nil {
		t.Fatalf("RecentTurns() error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestMemoryStoreCapsTranscript(t *testing.T) {
	t.Parallel()

	s := history.NewMemoryStore(3)
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		s.AppendTurn(ctx, "conv", history.Turn{Role: history.RoleUser, Text: text})
	}

	got, err := s.RecentTurns(ctx, "conv", 0)
	if err != nil {
		t.Fatalf("RecentTurns() error: %v", err)
	}
	if len(got) != 3 || got[0].Text != "c" {
		t.Fatalf("turns = %+v, want the last three", got)
	}
}

func TestMemoryStoreIsolatesConversations(t *testing.T) {
	t.Parallel()

	s := history.NewMemoryStore(0)
	ctx := context.Background()
	s.AppendTurn(ctx, "a", history.Turn{Role: history.RoleUser, Text: "for a"})
	s.AppendTurn(ctx, "b", history.Turn{Role: history.RoleUser, Text: "for b"})

	got, _ := s.RecentTurns(ctx, "a", 0)
	if len(got) != 1 || got[0].Text != "for a" {
		t.Fatalf("conversation a turns = %+v", got)
	}
}
