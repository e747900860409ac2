package store

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/mesh-intelligence/todos/pkg/types"
)

// fakeGateway is an in-memory Gateway with injectable failures.
type fakeGateway struct {
	mu    sync.Mutex
	todos []types.Todo
	seq   int
	clock time.Time
	calls int

	// err, when set, is returned by the next call and then cleared.
	err error
	// block, when set, is waited on at the start of every call.
	block chan struct{}
}

func newFakeGateway(seed ...types.Todo) *fakeGateway {
	return &fakeGateway{
		todos: slices.Clone(seed),
		clock: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func (g *fakeGateway) enter() error {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	g.calls++
	err := g.err
	g.err = nil
	g.mu.Unlock()
	return err
}

func (g *fakeGateway) tick() time.Time {
	g.clock = g.clock.Add(time.Second)
	return g.clock
}

func (g *fakeGateway) List(context.Context) ([]types.Todo, types.Stats, error) {
	if err := g.enter(); err != nil {
		return nil, types.Stats{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := slices.Clone(g.todos)
	return out, types.ComputeStats(out), nil
}

func (g *fakeGateway) Create(_ context.Context, d types.Draft) (types.Todo, error) {
	if err := g.enter(); err != nil {
		return types.Todo{}, err
	}
	if err := types.ValidateDraft(d); err != nil {
		return types.Todo{}, types.Invalid(err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	t := types.NewTodo("todo-"+strconv.Itoa(g.seq), d, g.tick())
	g.todos = append(g.todos, t)
	return t, nil
}

func (g *fakeGateway) Update(_ context.Context, p types.Patch) (types.Todo, error) {
	if err := g.enter(); err != nil {
		return types.Todo{}, err
	}
	if err := types.ValidatePatch(p); err != nil {
		return types.Todo{}, types.Invalid(err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	i := slices.IndexFunc(g.todos, func(t types.Todo) bool { return t.ID == p.ID })
	if i < 0 {
		return types.Todo{}, fmt.Errorf("update %s: %w", p.ID, types.ErrNotFound)
	}
	g.todos[i] = types.ApplyPatch(g.todos[i], p, g.tick())
	return g.todos[i], nil
}

func (g *fakeGateway) Remove(_ context.Context, id string) error {
	if err := g.enter(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	i := slices.IndexFunc(g.todos, func(t types.Todo) bool { return t.ID == id })
	if i < 0 {
		return fmt.Errorf("remove %s: %w", id, types.ErrNotFound)
	}
	g.todos = slices.Delete(g.todos, i, i+1)
	return nil
}

func (g *fakeGateway) ToggleStatus(ctx context.Context, id string) (types.Todo, error) {
	g.mu.Lock()
	i := slices.IndexFunc(g.todos, func(t types.Todo) bool { return t.ID == id })
	var p types.Patch
	if i >= 0 {
		p = types.TogglePatch(g.todos[i])
	}
	g.mu.Unlock()
	if i < 0 {
		return types.Todo{}, types.ErrNotFound
	}
	return g.Update(ctx, p)
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
