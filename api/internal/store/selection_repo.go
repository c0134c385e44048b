package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"sound-predict/api/internal/universe"
)

var ErrNotFound = sql.ErrNoRows

// Selections remembers which universe each chat picked in the selector.
type Selections interface {
	Get(ctx context.Context, chatID int64) (universe.Universe, error)
	Set(ctx context.Context, chatID int64, u universe.Universe) error
}

type SelectionRepo struct{ DB *sql.DB }

func NewSelectionRepo(db *sql.DB) *SelectionRepo { return &SelectionRepo{DB: db} }

const schema = `
create table if not exists chat_universe (
  chat_id    bigint primary key,
  model      text not null,
  updated_at timestamptz not null default now()
)`

// EnsureSchema creates the chat_universe table when missing.
func (r *SelectionRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// Get returns the chat's universe or ErrNotFound.
func (r *SelectionRepo) Get(ctx context.Context, chatID int64) (universe.Universe, error) {
	const q = `select model from chat_universe where chat_id = $1`
	var token string
	if err := r.DB.QueryRowContext(ctx, q, chatID).Scan(&token); err != nil {
		return 0, err
	}
	// Rows are only written by Set, so a bad token means the row was edited by hand.
	u, err := universe.Resolve(token, true)
	if err != nil {
		return 0, ErrNotFound
	}
	return u, nil
}

// Set upserts the chat's universe.
func (r *SelectionRepo) Set(ctx context.Context, chatID int64, u universe.Universe) error {
	const q = `
insert into chat_universe (chat_id, model) values ($1, $2)
on conflict (chat_id) do update
set model = excluded.model,
    updated_at = now()`
	_, err := r.DB.ExecContext(ctx, q, chatID, u.Token())
	return err
}

// PurgeOlderThan drops selections nobody touched for olderThan.
func (r *SelectionRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	const q = `delete from chat_universe where updated_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}

// MemorySelections is the Selections used when no database is configured.
type MemorySelections struct {
	m sync.Map // chatID -> universe.Universe
}

func (s *MemorySelections) Get(_ context.Context, chatID int64) (universe.Universe, error) {
	if v, ok := s.m.Load(chatID); ok {
		return v.(universe.Universe), nil
	}
	return 0, ErrNotFound
}

func (s *MemorySelections) Set(_ context.Context, chatID int64, u universe.Universe) error {
	s.m.Store(chatID, u)
	return nil
}
