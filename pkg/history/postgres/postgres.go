// Package postgres provides a history.Store backed by PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quastler/openfloor/pkg/history"
)

// Schema is the SQL DDL for the conversation_turns table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS conversation_turns (
    id              BIGSERIAL PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    role            TEXT NOT NULL,
    text            TEXT NOT NULL,
    at              TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_conversation_turns_conv
    ON conversation_turns(conversation_id, id);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a history.Store backed by a PostgreSQL database.
type Store struct {
	db DB
}

// Compile-time interface check.
var _ history.Store = (*Store)(nil)

// New creates a Store over the given connection or pool. The caller is
// responsible for calling [Store.Migrate] before issuing queries.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL, creating the conversation_turns table
// and index if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// AppendTurn implements history.Store.
func (s *Store) AppendTurn(ctx context.Context, conversationID string, turn history.Turn) error {
	const query = `
		INSERT INTO conversation_turns (conversation_id, role, text, at)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.db.Exec(ctx, query, conversationID, string(turn.Role), turn.Text, turn.At); err != nil {
		return fmt.Errorf("history: append turn: %w", err)
	}
	return nil
}

// RecentTurns implements history.Store. Turns are returned oldest first.
// A non-positive limit returns up to defaultLimit turns.
func (s *Store) RecentTurns(ctx context.Context, conversationID string, limit int) ([]history.Turn, error) {
	const defaultLimit = 200
	if limit <= 0 {
		limit = defaultLimit
	}
	const query = `
		SELECT role, text, at FROM (
			SELECT id, role, text, at FROM conversation_turns
			WHERE conversation_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent ORDER BY id ASC`

	rows, err := s.db.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent turns: %w", err)
	}
	defer rows.Close()

	var turns []history.Turn
	for rows.Next() {
		var t history.Turn
		var role string
		if err := rows.Scan(&role, &t.Text, &t.At); err != nil {
			return nil, fmt.Errorf("history: scan turn: %w", err)
		}
		t.Role = history.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate turns: %w", err)
	}
	return turns, nil
}
