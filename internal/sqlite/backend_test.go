package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/todos/pkg/types"
)

// newTestBackend creates a backend attached to a temp directory.
func newTestBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b := NewBackend(zerolog.Nop())
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	t.Cleanup(func() { b.Detach() })
	return b, dir
}

// fixedClock returns a clock that advances one second per call.
func fixedClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func strPtr(s string) *string { return &s }

func TestAttachDetachLifecycle(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "attach creates data directory and todos.jsonl",
			run: func(t *testing.T) {
				dir := filepath.Join(t.TempDir(), "new-data")
				b := NewBackend(zerolog.Nop())
				require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
				defer b.Detach()

				_, err := os.Stat(filepath.Join(dir, todosJSONL))
				assert.NoError(t, err)
			},
		},
		{
			name: "double attach returns ErrAlreadyAttached",
			run: func(t *testing.T) {
				b, _ := newTestBackend(t)
				err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
				assert.ErrorIs(t, err, types.ErrAlreadyAttached)
			},
		},
		{
			name: "attach rejects invalid config",
			run: func(t *testing.T) {
				b := NewBackend(zerolog.Nop())
				err := b.Attach(types.Config{DataDir: t.TempDir()})
				assert.ErrorIs(t, err, types.ErrBackendEmpty)
			},
		},
		{
			name: "detach is idempotent",
			run: func(t *testing.T) {
				b, _ := newTestBackend(t)
				require.NoError(t, b.Detach())
				require.NoError(t, b.Detach())
			},
		},
		{
			name: "operations after detach return ErrStorageUnavailable",
			run: func(t *testing.T) {
				b, _ := newTestBackend(t)
				require.NoError(t, b.Detach())
				ctx := context.Background()

				_, _, err := b.List(ctx)
				assert.ErrorIs(t, err, types.ErrStorageUnavailable)
				assert.ErrorIs(t, err, types.ErrDetached)
				_, err = b.Create(ctx, types.Draft{Title: "x", Priority: types.PriorityLow})
				assert.ErrorIs(t, err, types.ErrStorageUnavailable)
				_, err = b.Update(ctx, types.Patch{ID: "x", Title: strPtr("y")})
				assert.ErrorIs(t, err, types.ErrStorageUnavailable)
				_, err = b.ToggleStatus(ctx, "x")
				assert.ErrorIs(t, err, types.ErrStorageUnavailable)
				assert.ErrorIs(t, b.Remove(ctx, "x"), types.ErrStorageUnavailable)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.run)
	}
}

func TestCreate(t *testing.T) {
	b, _ := newTestBackend(t)
	b.now = fixedClock(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	todo, err := b.Create(ctx, types.Draft{Title: "  Buy milk ", Description: "2%", Priority: types.PriorityHigh})
	require.NoError(t, err)

	assert.NotEmpty(t, todo.ID)
	assert.Equal(t, "Buy milk", todo.Title)
	assert.Equal(t, "2%", todo.Description)
	assert.Equal(t, types.PriorityHigh, todo.Priority)
	assert.Equal(t, types.StatusPending, todo.Status)
	assert.Equal(t, todo.CreatedAt, todo.UpdatedAt)
	assert.Nil(t, todo.CompletedAt)

	todos, stats, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, todo, todos[0])
	assert.Equal(t, types.Stats{Total: 1, Pending: 1, ByPriority: types.PriorityCounts{High: 1}}, stats)
}

func TestCreateValidation(t *testing.T) {
	b, dir := newTestBackend(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		draft types.Draft
		field string
	}{
		{"empty title", types.Draft{Title: "   ", Priority: types.PriorityLow}, "title"},
		{"long title", types.Draft{Title: string(make([]rune, 256)), Priority: types.PriorityLow}, "title"},
		{"bad priority", types.Draft{Title: "ok", Priority: "urgent"}, "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Create(ctx, tt.draft)
			require.ErrorIs(t, err, types.ErrValidationFailed)
			fields := types.FieldErrorsOf(err)
			require.NotEmpty(t, fields)
			assert.Equal(t, tt.field, fields[0].Field)
		})
	}

	data, err := os.ReadFile(filepath.Join(dir, todosJSONL))
	require.NoError(t, err)
	assert.Empty(t, data, "rejected drafts must not be persisted")
}

func TestUpdate(t *testing.T) {
	b, _ := newTestBackend(t)
	b.now = fixedClock(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	created, err := b.Create(ctx, types.Draft{Title: "Write report", Description: "draft", Priority: types.PriorityMedium})
	require.NoError(t, err)

	t.Run("partial update leaves other fields", func(t *testing.T) {
		low := types.PriorityLow
		got, err := b.Update(ctx, types.Patch{ID: created.ID, Priority: &low})
		require.NoError(t, err)
		assert.Equal(t, types.PriorityLow, got.Priority)
		assert.Equal(t, "Write report", got.Title)
		assert.Equal(t, "draft", got.Description)
		assert.Equal(t, created.CreatedAt, got.CreatedAt)
		assert.True(t, got.UpdatedAt.After(created.UpdatedAt))
	})

	t.Run("empty description clears it", func(t *testing.T) {
		got, err := b.Update(ctx, types.Patch{ID: created.ID, Description: strPtr("")})
		require.NoError(t, err)
		assert.Empty(t, got.Description)
	})

	t.Run("completing sets completedAt and pending clears it", func(t *testing.T) {
		done := types.StatusCompleted
		got, err := b.Update(ctx, types.Patch{ID: created.ID, Status: &done})
		require.NoError(t, err)
		require.NotNil(t, got.CompletedAt)
		assert.Equal(t, got.UpdatedAt, *got.CompletedAt)

		pending := types.StatusPending
		got, err = b.Update(ctx, types.Patch{ID: created.ID, Status: &pending})
		require.NoError(t, err)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("unknown id returns ErrNotFound", func(t *testing.T) {
		_, err := b.Update(ctx, types.Patch{ID: "missing", Title: strPtr("x")})
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("invalid patch returns ErrValidationFailed", func(t *testing.T) {
		bad := types.Status("archived")
		_, err := b.Update(ctx, types.Patch{ID: created.ID, Status: &bad})
		assert.ErrorIs(t, err, types.ErrValidationFailed)
	})
}

func TestUpdatedAtStrictlyIncreasesOnSameTick(t *testing.T) {
	b, _ := newTestBackend(t)
	frozen := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return frozen }
	ctx := context.Background()

	created, err := b.Create(ctx, types.Draft{Title: "tick", Priority: types.PriorityLow})
	require.NoError(t, err)
	first, err := b.Update(ctx, types.Patch{ID: created.ID, Title: strPtr("tock")})
	require.NoError(t, err)
	second, err := b.Update(ctx, types.Patch{ID: created.ID, Title: strPtr("tick")})
	require.NoError(t, err)

	assert.True(t, first.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestToggleStatus(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	created, err := b.Create(ctx, types.Draft{Title: "Walk dog", Priority: types.PriorityLow})
	require.NoError(t, err)

	toggled, err := b.ToggleStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, toggled.Status)
	assert.NotNil(t, toggled.CompletedAt)

	back, err := b.ToggleStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, back.Status)
	assert.Nil(t, back.CompletedAt)

	_, err = b.ToggleStatus(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRemove(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	keep, err := b.Create(ctx, types.Draft{Title: "keep", Priority: types.PriorityHigh})
	require.NoError(t, err)
	drop, err := b.Create(ctx, types.Draft{Title: "drop", Priority: types.PriorityLow})
	require.NoError(t, err)

	require.NoError(t, b.Remove(ctx, drop.ID))
	assert.ErrorIs(t, b.Remove(ctx, drop.ID), types.ErrNotFound)

	todos, stats, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, keep.ID, todos[0].ID)
	assert.Equal(t, 1, stats.Total)
}

func TestListOrderAndStats(t *testing.T) {
	b, _ := newTestBackend(t)
	b.now = fixedClock(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var ids []string
	for _, d := range []types.Draft{
		{Title: "a", Priority: types.PriorityHigh},
		{Title: "b", Priority: types.PriorityMedium},
		{Title: "c", Priority: types.PriorityMedium},
	} {
		todo, err := b.Create(ctx, d)
		require.NoError(t, err)
		ids = append(ids, todo.ID)
	}
	_, err := b.ToggleStatus(ctx, ids[1])
	require.NoError(t, err)

	todos, stats, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 3)
	for i, todo := range todos {
		assert.Equal(t, ids[i], todo.ID, "oldest first")
	}
	assert.Equal(t, types.Stats{
		Total:      3,
		Completed:  1,
		Pending:    2,
		ByPriority: types.PriorityCounts{High: 1, Medium: 2},
	}, stats)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	b := NewBackend(zerolog.Nop())
	require.NoError(t, b.Attach(cfg))
	a, err := b.Create(ctx, types.Draft{Title: "persist me", Description: "across restarts", Priority: types.PriorityHigh})
	require.NoError(t, err)
	done, err := b.Create(ctx, types.Draft{Title: "finished", Priority: types.PriorityLow})
	require.NoError(t, err)
	done, err = b.ToggleStatus(ctx, done.ID)
	require.NoError(t, err)
	before, _, err := b.List(ctx)
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	reopened := NewBackend(zerolog.Nop())
	require.NoError(t, reopened.Attach(cfg))
	defer reopened.Detach()

	after, stats, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Contains(t, []string{after[0].ID, after[1].ID}, a.ID)
	assert.Contains(t, []string{after[0].ID, after[1].ID}, done.ID)
}

func TestFailedJSONLWriteRollsBack(t *testing.T) {
	b, dir := newTestBackend(t)
	ctx := context.Background()

	created, err := b.Create(ctx, types.Draft{Title: "stable", Priority: types.PriorityLow})
	require.NoError(t, err)

	// Pointing the data dir at a missing directory makes the temp-file
	// create fail during persist.
	b.config.DataDir = filepath.Join(dir, "gone")

	_, err = b.Create(ctx, types.Draft{Title: "lost", Priority: types.PriorityLow})
	require.ErrorIs(t, err, types.ErrStorageUnavailable)
	_, err = b.Update(ctx, types.Patch{ID: created.ID, Title: strPtr("changed")})
	require.ErrorIs(t, err, types.ErrStorageUnavailable)
	require.ErrorIs(t, b.Remove(ctx, created.ID), types.ErrStorageUnavailable)

	todos, _, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, created, todos[0])

	records, _, err := readJSONL(filepath.Join(dir, todosJSONL))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDefaultClockStoresMicroseconds(t *testing.T) {
	b, _ := newTestBackend(t)

	created, err := b.Create(context.Background(), types.Draft{Title: "clock", Priority: types.PriorityLow})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, created.CreatedAt.Location())
	assert.Zero(t, created.CreatedAt.Nanosecond()%1000)
}

func TestOversizedJSONLLineKeepsOtherRecords(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}
	path := filepath.Join(dir, todosJSONL)

	b := NewBackend(zerolog.Nop())
	require.NoError(t, b.Attach(cfg))
	for _, title := range []string{"one", "two", "three"} {
		_, err := b.Create(ctx, types.Draft{Title: title, Priority: types.PriorityLow})
		require.NoError(t, err)
	}
	require.NoError(t, b.Detach())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(strings.Repeat("j", 2*maxLineBytes) + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened := NewBackend(zerolog.Nop())
	require.NoError(t, reopened.Attach(cfg))
	defer reopened.Detach()

	todos, _, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Len(t, todos, 3)

	_, err = reopened.Create(ctx, types.Draft{Title: "four", Priority: types.PriorityLow})
	require.NoError(t, err)
	records, skipped, err := readJSONL(path)
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Zero(t, skipped, "the rewrite drops the oversized line")
}

func TestCorruptJSONLDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	// A directory in place of the file makes it unreadable as JSONL.
	require.NoError(t, os.Mkdir(filepath.Join(dir, todosJSONL), 0o755))

	b := NewBackend(zerolog.Nop())
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	defer b.Detach()

	todos, stats, err := b.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, todos)
	assert.Equal(t, types.Stats{}, stats)
}
