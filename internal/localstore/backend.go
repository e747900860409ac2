// Package localstore implements a todos backend over a single local
// key-value slot. The whole collection is one JSON array stored under the
// "todos" key, in the same record shape the REST API uses.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/todos/pkg/types"
)

// todosKey is the slot holding the collection.
const todosKey = "todos"

// Compile-time interface check.
var _ types.Backend = (*Backend)(nil)

// Backend implements types.Backend over a local key-value slot. Every
// mutation reads the slot, applies the change in memory and writes the
// whole collection back in one atomic replacement.
type Backend struct {
	mu       sync.Mutex
	attached bool
	slots    slots
	latency  time.Duration
	log      zerolog.Logger

	now func() time.Time
}

// NewBackend creates a detached local backend.
func NewBackend(log zerolog.Logger) *Backend {
	return &Backend{
		log: log.With().Str("component", "localstore").Logger(),
		now: types.Now,
	}
}

// Attach creates DataDir if needed and binds the backend to it. Config.Latency
// is slept before every operation to simulate a slow medium.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	dir := config.DataDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	b.slots = slots{dir: dir}
	b.latency = config.Latency
	b.attached = true
	b.log.Debug().Str("data_dir", dir).Dur("latency", b.latency).Msg("attached")
	return nil
}

// Detach releases the slot. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attached = false
	return nil
}

// List returns every todo, oldest first, with statistics over all of them.
func (b *Backend) List(ctx context.Context) ([]types.Todo, types.Stats, error) {
	if err := b.wait(ctx); err != nil {
		return nil, types.Stats{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	todos, err := b.load()
	if err != nil {
		return nil, types.Stats{}, err
	}
	return todos, types.ComputeStats(todos), nil
}

// Create validates d, assigns a new id and appends a pending todo.
func (b *Backend) Create(ctx context.Context, d types.Draft) (types.Todo, error) {
	if err := types.ValidateDraft(d); err != nil {
		return types.Todo{}, types.Invalid(err)
	}
	if err := b.wait(ctx); err != nil {
		return types.Todo{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	todos, err := b.load()
	if err != nil {
		return types.Todo{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return types.Todo{}, fmt.Errorf("%w: generating id: %w", types.ErrUnknown, err)
	}
	todo := types.NewTodo(id.String(), d, b.now())
	if err := b.save(append(todos, todo)); err != nil {
		return types.Todo{}, err
	}
	return todo, nil
}

// Update validates p and merges it into the stored todo.
func (b *Backend) Update(ctx context.Context, p types.Patch) (types.Todo, error) {
	if err := types.ValidatePatch(p); err != nil {
		return types.Todo{}, types.Invalid(err)
	}
	if err := b.wait(ctx); err != nil {
		return types.Todo{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updateLocked(p.ID, func(types.Todo) types.Patch { return p })
}

// ToggleStatus flips the status of the todo with the given id.
func (b *Backend) ToggleStatus(ctx context.Context, id string) (types.Todo, error) {
	if err := b.wait(ctx); err != nil {
		return types.Todo{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updateLocked(id, types.TogglePatch)
}

// Remove deletes the todo with the given id.
func (b *Backend) Remove(ctx context.Context, id string) error {
	if err := b.wait(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	todos, err := b.load()
	if err != nil {
		return err
	}
	i := slices.IndexFunc(todos, func(t types.Todo) bool { return t.ID == id })
	if i < 0 {
		return fmt.Errorf("remove %s: %w", id, types.ErrNotFound)
	}
	return b.save(slices.Delete(todos, i, i+1))
}

// updateLocked must be called with b.mu held.
func (b *Backend) updateLocked(id string, patchFor func(types.Todo) types.Patch) (types.Todo, error) {
	todos, err := b.load()
	if err != nil {
		return types.Todo{}, err
	}
	i := slices.IndexFunc(todos, func(t types.Todo) bool { return t.ID == id })
	if i < 0 {
		return types.Todo{}, fmt.Errorf("update %s: %w", id, types.ErrNotFound)
	}
	updated := types.ApplyPatch(todos[i], patchFor(todos[i]), b.now())
	todos[i] = updated
	if err := b.save(todos); err != nil {
		return types.Todo{}, err
	}
	return updated, nil
}

// load reads the collection. Content that does not parse is treated as
// corruption and yields an empty collection.
// Must be called with b.mu held.
func (b *Backend) load() ([]types.Todo, error) {
	if !b.attached {
		return nil, fmt.Errorf("%w: %w", types.ErrStorageUnavailable, types.ErrDetached)
	}
	data, found, err := b.slots.Get(todosKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStorageUnavailable, err)
	}
	todos := []types.Todo{}
	if !found {
		return todos, nil
	}
	if err := json.Unmarshal(data, &todos); err != nil {
		b.log.Warn().Err(err).Msg("todos slot is corrupt, returning empty collection")
		return []types.Todo{}, nil
	}
	todos = b.keepValid(todos)
	for i := range todos {
		todos[i].CreatedAt = types.Timestamp(todos[i].CreatedAt)
		todos[i].UpdatedAt = types.Timestamp(todos[i].UpdatedAt)
		if todos[i].CompletedAt != nil {
			at := types.Timestamp(*todos[i].CompletedAt)
			todos[i].CompletedAt = &at
		}
	}
	slices.SortStableFunc(todos, func(a, b types.Todo) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return todos, nil
}

// keepValid drops records that break the entity rules and every record after
// the first with a given id.
func (b *Backend) keepValid(todos []types.Todo) []types.Todo {
	seen := make(map[string]bool, len(todos))
	kept := todos[:0]
	for _, t := range todos {
		if err := types.ValidateTodo(t); err != nil || seen[t.ID] {
			b.log.Warn().Err(err).Str("id", t.ID).Msg("skipping invalid record in todos slot")
			continue
		}
		seen[t.ID] = true
		kept = append(kept, t)
	}
	return kept
}

// save writes the whole collection in one atomic replacement.
// Must be called with b.mu held.
func (b *Backend) save(todos []types.Todo) error {
	data, err := json.Marshal(todos)
	if err != nil {
		return fmt.Errorf("%w: encoding todos: %w", types.ErrUnknown, err)
	}
	if err := b.slots.Put(todosKey, data); err != nil {
		b.log.Error().Err(err).Msg("writing todos slot failed")
		return fmt.Errorf("%w: %w", types.ErrStorageUnavailable, err)
	}
	return nil
}

// wait sleeps for the configured latency, returning early if ctx is done.
func (b *Backend) wait(ctx context.Context) error {
	b.mu.Lock()
	d := b.latency
	b.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
