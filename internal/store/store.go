package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/todos/pkg/types"
)

// Store owns one session's State and runs actions against a Gateway.
//
// Gateway actions are serialized: a second action waits for the first to
// finish, so merges never interleave. Reads use a separate lock, so
// observers see Loading while a call is in flight. Every state change and
// its notification happen under notifyMu, so subscribers receive snapshots
// in the order they were produced.
type Store struct {
	gateway types.Gateway
	log     zerolog.Logger

	actionMu sync.Mutex
	notifyMu sync.Mutex

	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// New creates a Store over gw with the initial state.
func New(gw types.Gateway, log zerolog.Logger) *Store {
	return &Store{
		gateway: gw,
		log:     log.With().Str("component", "store").Logger(),
		state:   Initial(),
		subs:    make(map[int]func(State)),
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Todos = slices.Clone(st.Todos)
	st.View = slices.Clone(st.View)
	return st
}

// Subscribe registers fn to receive every new state, in the order the states
// were produced. fn runs synchronously on the dispatching goroutine. It may
// call State but must not call any other Store method. The returned function
// unregisters fn.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// dispatch applies a and notifies subscribers with the result.
func (s *Store) dispatch(a Action) State {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.state = Reduce(s.state, a)
	st := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
	return st
}

// fail records err as the state's error message and returns err.
func (s *Store) fail(action string, err error) error {
	msg := errorMessage(err)
	s.log.Warn().Err(err).Str("action", action).Msg("action failed")
	s.dispatch(Failed{Message: msg})
	return err
}

// errorMessage renders err for display. Errors outside the gateway taxonomy
// are reported as unexpected.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, types.ErrValidationFailed),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrStorageUnavailable),
		errors.Is(err, types.ErrUnknown):
		return err.Error()
	default:
		return types.ErrUnknown.Error() + ": " + err.Error()
	}
}

// Load replaces the canonical collection with the gateway's.
func (s *Store) Load(ctx context.Context) error {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	s.dispatch(Started{})
	todos, _, err := s.gateway.List(ctx)
	if err != nil {
		return s.fail("load", err)
	}
	s.dispatch(Loaded{Todos: todos})
	s.log.Debug().Int("count", len(todos)).Msg("loaded")
	return nil
}

// Create adds a todo built from d.
func (s *Store) Create(ctx context.Context, d types.Draft) (types.Todo, error) {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	s.dispatch(Started{})
	todo, err := s.gateway.Create(ctx, d)
	if err != nil {
		return types.Todo{}, s.fail("create", err)
	}
	s.dispatch(Created{Todo: todo})
	s.log.Debug().Str("id", todo.ID).Msg("created")
	return todo, nil
}

// Update applies p to the todo it names.
func (s *Store) Update(ctx context.Context, p types.Patch) (types.Todo, error) {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()
	return s.updateLocked(ctx, "update", p)
}

// ToggleStatus flips the status of the todo with id, as found in the
// canonical collection, through an update. An id missing from the collection
// fails with ErrNotFound without reaching the gateway.
func (s *Store) ToggleStatus(ctx context.Context, id string) (types.Todo, error) {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	s.mu.RLock()
	i := slices.IndexFunc(s.state.Todos, func(t types.Todo) bool { return t.ID == id })
	var current types.Todo
	if i >= 0 {
		current = s.state.Todos[i]
	}
	s.mu.RUnlock()

	if i < 0 {
		return types.Todo{}, s.fail("toggle", fmt.Errorf("toggle %s: %w", id, types.ErrNotFound))
	}
	return s.updateLocked(ctx, "toggle", types.TogglePatch(current))
}

// updateLocked must be called with actionMu held.
func (s *Store) updateLocked(ctx context.Context, action string, p types.Patch) (types.Todo, error) {
	s.dispatch(Started{})
	todo, err := s.gateway.Update(ctx, p)
	if err != nil {
		return types.Todo{}, s.fail(action, err)
	}
	s.dispatch(Updated{Todo: todo})
	s.log.Debug().Str("id", todo.ID).Str("action", action).Msg("updated")
	return todo, nil
}

// Remove deletes the todo with id.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	s.dispatch(Started{})
	if err := s.gateway.Remove(ctx, id); err != nil {
		return s.fail("remove", err)
	}
	s.dispatch(Removed{ID: id})
	s.log.Debug().Str("id", id).Msg("removed")
	return nil
}

// SetFilters replaces the filters and refreshes the view.
func (s *Store) SetFilters(f types.Filters) {
	s.dispatch(FiltersChanged{Filters: f})
}

// SetSort replaces the sort and refreshes the view.
func (s *Store) SetSort(o types.Sort) {
	s.dispatch(SortChanged{Sort: o})
}

// ClearError clears the last error message.
func (s *Store) ClearError() {
	s.dispatch(ErrorCleared{})
}
