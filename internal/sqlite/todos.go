package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mesh-intelligence/todos/pkg/types"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// List returns every todo, oldest first, with statistics over all of them.
// Rows that cannot be decoded are treated as corruption: the result degrades
// to an empty collection and a warning is logged.
func (b *Backend) List(ctx context.Context) ([]types.Todo, types.Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkAttached(); err != nil {
		return nil, types.Stats{}, err
	}

	rows, err := b.db.QueryContext(ctx, selectTodoSQL+" ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, types.Stats{}, fmt.Errorf("%w: querying todos: %w", types.ErrStorageUnavailable, err)
	}
	defer rows.Close()

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
		return nil, types.Stats{}, fmt.Errorf("%w: iterating todos: %w", types.ErrStorageUnavailable, err)
	}
	return todos, types.ComputeStats(todos), nil
}

// Create validates d, assigns a new id and persists a pending todo.
func (b *Backend) Create(ctx context.Context, d types.Draft) (types.Todo, error) {
	if err := types.ValidateDraft(d); err != nil {
		return types.Todo{}, types.Invalid(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkAttached(); err != nil {
		return types.Todo{}, err
	}

	todo := types.NewTodo(generateUUID(), d, b.now())
	err := b.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO todos ("+todoColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			todoArgs(todo)...)
		if err != nil {
			return fmt.Errorf("%w: inserting todo: %w", types.ErrStorageUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return types.Todo{}, err
	}
	b.log.Debug().Str("id", todo.ID).Msg("created todo")
	return todo, nil
}

// Update validates p and merges it into the stored todo.
// Returns ErrNotFound if no todo has p.ID.
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

// Remove deletes the todo with the given id permanently.
func (b *Backend) Remove(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkAttached(); err != nil {
		return err
	}

	err := b.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("%w: deleting todo: %w", types.ErrStorageUnavailable, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: deleting todo: %w", types.ErrStorageUnavailable, err)
		}
		if n == 0 {
			return fmt.Errorf("remove %s: %w", id, types.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.log.Debug().Str("id", id).Msg("removed todo")
	return nil
}

// updateLocked reads the todo with id, builds a patch from it and writes the
// merged result. Must be called with b.mu held for writing.
func (b *Backend) updateLocked(ctx context.Context, id string, patchFor func(types.Todo) types.Patch) (types.Todo, error) {
	var updated types.Todo
	err := b.inTx(ctx, func(tx *sql.Tx) error {
		current, err := scanTodo(tx.QueryRowContext(ctx, selectTodoSQL+" WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update %s: %w", id, types.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("%w: reading todo: %w", types.ErrStorageUnavailable, err)
		}

		updated = types.ApplyPatch(current, patchFor(current), b.now())
		args := todoArgs(updated)
		_, err = tx.ExecContext(ctx,
			`UPDATE todos SET title = ?, description = ?, priority = ?, status = ?,
			 created_at = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
			append(args[1:], updated.ID)...)
		if err != nil {
			return fmt.Errorf("%w: updating todo: %w", types.ErrStorageUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return types.Todo{}, err
	}
	b.log.Debug().Str("id", updated.ID).Str("status", string(updated.Status)).Msg("updated todo")
	return updated, nil
}

// inTx runs fn inside a transaction and rewrites todos.jsonl from the
// transaction's view before committing. If fn or the file write fails the
// transaction is rolled back, leaving both SQLite and the file unchanged.
func (b *Backend) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", types.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := b.persistJSONL(ctx, tx); err != nil {
		b.log.Error().Err(err).Msg("writing todos.jsonl failed, rolling back")
		return fmt.Errorf("%w: %w", types.ErrStorageUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", types.ErrStorageUnavailable, err)
	}
	return nil
}

// persistJSONL writes every row visible to tx to todos.jsonl.
func (b *Backend) persistJSONL(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, selectTodoSQL+" ORDER BY created_at ASC, id ASC")
	if err != nil {
		return fmt.Errorf("querying todos for persist: %w", err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return fmt.Errorf("scanning todo for persist: %w", err)
		}
		raw, err := json.Marshal(toJSON(t))
		if err != nil {
			return fmt.Errorf("marshaling todo %s: %w", t.ID, err)
		}
		records = append(records, raw)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating todos for persist: %w", err)
	}
	return writeJSONL(filepath.Join(b.config.DataDir, todosJSONL), records)
}

// scanTodo reads one row selected with todoColumns.
func scanTodo(s rowScanner) (types.Todo, error) {
	var (
		t                    types.Todo
		priority, status     string
		createdAt, updatedAt string
		completedAt          sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Title, &t.Description, &priority, &status, &createdAt, &updatedAt, &completedAt); err != nil {
		return types.Todo{}, err
	}
	t.Priority = types.Priority(priority)
	t.Status = types.Status(status)

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return types.Todo{}, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return types.Todo{}, err
	}
	if completedAt.Valid {
		at, err := parseTime(completedAt.String)
		if err != nil {
			return types.Todo{}, err
		}
		t.CompletedAt = &at
	}
	return t, nil
}

// todoArgs returns t's fields in todoColumns order.
func todoArgs(t types.Todo) []any {
	var completedAt any
	if t.CompletedAt != nil {
		completedAt = formatTime(*t.CompletedAt)
	}
	return []any{
		t.ID, t.Title, t.Description, string(t.Priority), string(t.Status),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt), completedAt,
	}
}

// toJSON converts a todo to its JSONL record.
func toJSON(t types.Todo) todoJSON {
	rec := todoJSON{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
	}
	if t.CompletedAt != nil {
		s := formatTime(*t.CompletedAt)
		rec.CompletedAt = &s
	}
	return rec
}
