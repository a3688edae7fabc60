package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quastler/openfloor/pkg/history"
)

// ---------------------------------------------------------------------------
// Test helpers — mock DB types
// ---------------------------------------------------------------------------

type execCall struct {
	sql  string
	args []any
}

// mockDB implements the DB interface for testing.
type mockDB struct {
	execCalls []execCall
	execErr   error

	queryRows *mockRows
	queryErr  error
	queryArgs []any
}

func (db *mockDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row { return nil }

func (db *mockDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	db.queryArgs = args
	if db.queryErr != nil {
		return nil, db.queryErr
	}
	return db.queryRows, nil
}

func (db *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execCalls = append(db.execCalls, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, db.execErr
}

// mockRows implements pgx.Rows over fixed row data.
type mockRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *mockRows) Close()                                       {}
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			d2, ok := v.(string)
			if !ok {
				return fmt.Errorf("scan: column %d is not a string", i)
			}
			*d = d2
		case *time.Time:
			d2, ok := v.(time.Time)
			if !ok {
				return fmt.Errorf("scan: column %d is not a time.Time", i)
			}
			*d = d2
		default:
			return fmt.Errorf("scan: unsupported destination type %T", d)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestMigrateExecutesSchema(t *testing.T) {
	db := &mockDB{}
	s := New(db)

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if len(db.execCalls) != 1 || !strings.Contains(db.execCalls[0].sql, "conversation_turns") {
		t.Fatalf("unexpected exec calls: %+v", db.execCalls)
	}
}

func TestAppendTurn(t *testing.T) {
	db := &mockDB{}
	s := New(db)
	at := time.Unix(42, 0)

	err := s.AppendTurn(context.Background(), "conv-1", history.Turn{
		Role: history.RoleUser,
		Text: "hello there",
		At:   at,
	})
	if err != nil {
		t.Fatalf("AppendTurn() error: %v", err)
	}
	if len(db.execCalls) != 1 {
		t.Fatalf("exec calls = %d, want 1", len(db.execCalls))
	}
	args := db.execCalls[0].args
	if args[0] != "conv-1" || args[1] != "user" || args[2] != "hello there" {
		t.Fatalf("unexpected insert args: %v", args)
	}
}

func TestAppendTurnError(t *testing.T) {
	db := &mockDB{execErr: errors.New("connection refused")}
	s := New(db)

	err := s.AppendTurn(context.Background(), "conv-1", history.Turn{Role: history.RoleUser})
	if err == nil || !strings.Contains(err.Error(), "append turn") {
		t.Fatalf("AppendTurn() error = %v, want wrapped append error", err)
	}
}

func TestRecentTurnsOrdering(t *testing.T) {
	at := time.Unix(100, 0)
	db := &mockDB{queryRows: &mockRows{data: [][]any{
		{"user", "hi", at},
		{"assistant", "hello", at.Add(time.Second)},
	}}}
	s := New(db)

	turns, err := s.RecentTurns(context.Background(), "conv-1", 10)
	if err != nil {
		t.Fatalf("RecentTurns() error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len = %d, want 2", len(turns))
	}
	if turns[0].Role != history.RoleUser || turns[1].Text != "hello" {
		t.Fatalf("turns = %+v", turns)
	}
	if db.queryArgs[1] != 10 {
		t.Fatalf("limit arg = %v, want 10", db.queryArgs[1])
	}
}

func TestRecentTurnsDefaultLimit(t *testing.T) {
	db := &mockDB{queryRows: &mockRows{}}
	s := New(db)

	if _, err := s.RecentTurns(context.Background(), "conv-1", 0); err != nil {
		t.Fatalf("RecentTurns() error: %v", err)
	}
	if db.queryArgs[1] != 200 {
		t.Fatalf("limit arg = %v, want the 200 default", db.queryArgs[1])
	}
}
