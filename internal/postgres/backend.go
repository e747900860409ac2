// Package postgres implements a todos backend over a Postgres row store,
// opened through the pgx database/sql driver. Each todo is one row; every
// mutation touches exactly one row inside a transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/todos/pkg/types"
)

// Compile-time interface check.
var _ types.Backend = (*Backend)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/todos?sslmode=disable"

	todoColumns   = "id, title, description, priority, status, created_at, updated_at, completed_at"
	selectTodoSQL = "SELECT " + todoColumns + " FROM todos"
)

// ensureTodosTable mirrors the SQLite schema's constraints.
const ensureTodosTable = `CREATE TABLE IF NOT EXISTS todos (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL CHECK (length(trim(title)) > 0),
	description TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL CHECK (priority IN ('high', 'medium', 'low')),
	status TEXT NOT NULL CHECK (status IN ('pending', 'completed')),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	CHECK ((status = 'completed') = (completed_at IS NOT NULL))
)`

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

// Backend implements types.Backend over Postgres.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	db       *sql.DB
	log      zerolog.Logger

	now func() time.Time
}

// NewBackend creates a detached Postgres backend.
func NewBackend(log zerolog.Logger) *Backend {
	return &Backend{
		log: log.With().Str("component", "postgres").Logger(),
		now: types.Now,
	}
}

// Attach opens Config.PostgresDSN (falling back to a localhost default),
// pings the server and ensures the todos table exists.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	dsn := config.PostgresDSN
	if dsn == "" {
		dsn = defaultDSN
	}

	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: open postgres: %w", types.ErrStorageUnavailable, err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: ping postgres: %w", types.ErrStorageUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, ensureTodosTable); err != nil {
		db.Close()
		return fmt.Errorf("ensure todos table: %w", err)
	}

	b.db = db
	b.attached = true
	b.log.Debug().Msg("attached")
	return nil
}

// Detach closes the connection pool. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *Backend) checkAttached() error {
	if !b.attached {
		return fmt.Errorf("%w: %w", types.ErrStorageUnavailable, types.ErrDetached)
	}
	return nil
}

// List returns every todo, oldest first, with statistics over all of them.
// A row that cannot be decoded degrades the result to an empty collection.
func (b *Backend) List(ctx context.Context) ([]types.Todo, types.Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkAttached(); err != nil {
		return nil, types.Stats{}, err
	}
	rows, err := b.db.QueryContext(ctx, selectTodoSQL+" ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, types.Stats{}, fmt.Errorf("%w: select todos: %w", types.ErrStorageUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	todos := []types.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			b.log.Warn().Err(err).Msg("corrupt todo row, returning empty collection")
			return []types.Todo{}, types.Stats{}, nil
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Stats{}, fmt.Errorf("%w: iterate todos: %w", types.ErrStorageUnavailable, err)
	}
	return todos, types.ComputeStats(todos), nil
}

// Create validates d and inserts a new pending todo.
func (b *Backend) Create(ctx context.Context, d types.Draft) (types.Todo, error) {
	if err := types.ValidateDraft(d); err != nil {
		return types.Todo{}, types.Invalid(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkAttached(); err != nil {
		return types.Todo{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return types.Todo{}, fmt.Errorf("%w: generate id: %w", types.ErrUnknown, err)
	}
	todo := types.NewTodo(id.String(), d, b.now())
	_, err = b.db.ExecContext(ctx,
		"INSERT INTO todos ("+todoColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		todoArgs(todo)...)
	if err != nil {
		return types.Todo{}, fmt.Errorf("%w: insert todo: %w", types.ErrStorageUnavailable, err)
	}
	return todo, nil
}

// Update validates p and merges it into the stored row.
func (b *Backend) Update(ctx context.Context, p types.Patch) (types.Todo, error) {
	if err := types.ValidatePatch(p); err != nil {
		return types.Todo{}, types.Invalid(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkAttached(); err != nil {
		return types.Todo{}, err
	}
	return b.updateLocked(ctx, p.ID, func(types.Todo) types.Patch { return p })
}

// ToggleStatus flips the status of the todo with the given id.
func (b *Backend) ToggleStatus(ctx context.Context, id string) (types.Todo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkAttached(); err != nil {
		return types.Todo{}, err
	}
	return b.updateLocked(ctx, id, types.TogglePatch)
}

// Remove deletes the row with the given id.
func (b *Backend) Remove(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkAttached(); err != nil {
		return err
	}
	res, err := b.db.ExecContext(ctx, "DELETE FROM todos WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("%w: delete todo: %w", types.ErrStorageUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete todo: %w", types.ErrStorageUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("remove %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// updateLocked locks the row, merges the patch built from it and writes it
// back in one transaction. Must be called with b.mu held for writing.
func (b *Backend) updateLocked(ctx context.Context, id string, patchFor func(types.Todo) types.Patch) (types.Todo, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Todo{}, fmt.Errorf("%w: begin tx: %w", types.ErrStorageUnavailable, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	current, err := scanTodo(tx.QueryRowContext(ctx, selectTodoSQL+" WHERE id = $1 FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Todo{}, fmt.Errorf("update %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return types.Todo{}, fmt.Errorf("%w: select todo: %w", types.ErrStorageUnavailable, err)
	}

	updated := types.ApplyPatch(current, patchFor(current), b.now())
	_, err = tx.ExecContext(ctx,
		`UPDATE todos SET title = $2, description = $3, priority = $4, status = $5,
		 created_at = $6, updated_at = $7, completed_at = $8 WHERE id = $1`,
		todoArgs(updated)...)
	if err != nil {
		return types.Todo{}, fmt.Errorf("%w: update todo: %w", types.ErrStorageUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return types.Todo{}, fmt.Errorf("%w: commit: %w", types.ErrStorageUnavailable, err)
	}
	committed = true
	return updated, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(s rowScanner) (types.Todo, error) {
	var (
		t                    types.Todo
		priority, status     string
		createdAt, updatedAt time.Time
		completedAt          sql.NullTime
	)
	if err := s.Scan(&t.ID, &t.Title, &t.Description, &priority, &status, &createdAt, &updatedAt, &completedAt); err != nil {
		return types.Todo{}, err
	}
	t.Priority = types.Priority(priority)
	t.Status = types.Status(status)
	t.CreatedAt = types.Timestamp(createdAt)
	t.UpdatedAt = types.Timestamp(updatedAt)
	if completedAt.Valid {
		at := types.Timestamp(completedAt.Time)
		t.CompletedAt = &at
	}
	return t, nil
}

// todoArgs returns t's fields in todoColumns order.
func todoArgs(t types.Todo) []any {
	var completedAt any
	if t.CompletedAt != nil {
		completedAt = *t.CompletedAt
	}
	return []any{
		t.ID, t.Title, t.Description, string(t.Priority), string(t.Status),
		t.CreatedAt, t.UpdatedAt, completedAt,
	}
}
