// Package store holds the application state: the canonical todo collection,
// the filter and sort configuration, the derived view and statistics. State
// changes only through Reduce; Store runs gateway calls and feeds their
// outcomes to it.
package store

import (
	"slices"

	"github.com/mesh-intelligence/todos/internal/query"
	"github.com/mesh-intelligence/todos/pkg/types"
)

// State is an immutable snapshot. Reduce never modifies a State it is given;
// callers must not modify the slices of a State they receive.
type State struct {
	// Todos is the canonical collection, in backend order.
	Todos []types.Todo
	// Filters and Sort configure View.
	Filters types.Filters
	Sort    types.Sort
	// View is Todos filtered by Filters and ordered by Sort.
	View []types.Todo
	// Stats aggregates Todos, never View.
	Stats   types.Stats
	Loading bool
	// Error is the message of the last failed action, or empty.
	Error string
}

// Initial returns the empty state with the default sort.
func Initial() State {
	return State{
		Todos: []types.Todo{},
		Sort:  types.DefaultSort,
		View:  []types.Todo{},
	}
}

// Action is one state transition. The set of actions is closed: only the
// types in this package implement it.
type Action interface {
	isAction()
}

// Started marks a gateway call in flight.
type Started struct{}

// Loaded replaces the canonical collection.
type Loaded struct {
	Todos []types.Todo
}

// Created appends a new todo.
type Created struct {
	Todo types.Todo
}

// Updated replaces the todo with the same id.
type Updated struct {
	Todo types.Todo
}

// Removed drops the todo with ID.
type Removed struct {
	ID string
}

// Failed records a failed gateway call.
type Failed struct {
	Message string
}

// FiltersChanged replaces the filter configuration.
type FiltersChanged struct {
	Filters types.Filters
}

// SortChanged replaces the sort configuration.
type SortChanged struct {
	Sort types.Sort
}

// ErrorCleared clears the last error.
type ErrorCleared struct{}

func (Started) isAction()        {}
func (Loaded) isAction()         {}
func (Created) isAction()        {}
func (Updated) isAction()        {}
func (Removed) isAction()        {}
func (Failed) isAction()         {}
func (FiltersChanged) isAction() {}
func (SortChanged) isAction()    {}
func (ErrorCleared) isAction()   {}

// Reduce returns the state that follows s after a. It is pure: s is left
// untouched and the result shares no slices with it.
//
// Statistics are recomputed from the canonical collection after every
// change to it, so they always match Todos regardless of which fields a
// mutation touched.
func Reduce(s State, a Action) State {
	next := s
	switch a := a.(type) {
	case Started:
		next.Loading = true

	case Loaded:
		next = withTodos(next, cloneTodos(a.Todos))
		next.Loading = false
		next.Error = ""

	case Created:
		todos := make([]types.Todo, 0, len(s.Todos)+1)
		todos = append(todos, cloneTodos(s.Todos)...)
		todos = append(todos, a.Todo.Clone())
		next = withTodos(next, todos)
		next.Loading = false

	case Updated:
		todos := cloneTodos(s.Todos)
		if i := slices.IndexFunc(todos, func(t types.Todo) bool { return t.ID == a.Todo.ID }); i >= 0 {
			todos[i] = a.Todo.Clone()
		}
		next = withTodos(next, todos)
		next.Loading = false

	case Removed:
		todos := make([]types.Todo, 0, len(s.Todos))
		for _, t := range s.Todos {
			if t.ID != a.ID {
				todos = append(todos, t.Clone())
			}
		}
		next = withTodos(next, todos)
		next.Loading = false

	case Failed:
		next.Loading = false
		next.Error = a.Message

	case FiltersChanged:
		next.Filters = a.Filters
		next.View = query.Apply(s.Todos, next.Filters, next.Sort)

	case SortChanged:
		next.Sort = a.Sort
		next.View = query.Apply(s.Todos, next.Filters, next.Sort)

	case ErrorCleared:
		next.Error = ""
	}
	return next
}

// withTodos installs todos as the canonical collection and refreshes the
// derived view and statistics.
func withTodos(s State, todos []types.Todo) State {
	s.Todos = todos
	s.View = query.Apply(todos, s.Filters, s.Sort)
	s.Stats = types.ComputeStats(todos)
	return s
}

func cloneTodos(todos []types.Todo) []types.Todo {
	out := make([]types.Todo, len(todos))
	for i, t := range todos {
		out[i] = t.Clone()
	}
	return out
}
