// Package query filters and orders todo collections. Every function is pure:
// inputs are never modified and results are freshly allocated.
package query

import (
	"cmp"
	"slices"
	"strings"

	"github.com/mesh-intelligence/todos/pkg/types"
)

// Apply returns the todos matching filters, ordered by sort.
func Apply(todos []types.Todo, filters types.Filters, sort types.Sort) []types.Todo {
	return Sort(Filter(todos, filters), sort)
}

// Filter returns the todos matching every constraint set in filters, in
// their original order.
func Filter(todos []types.Todo, filters types.Filters) []types.Todo {
	search := strings.ToLower(strings.TrimSpace(filters.Search))
	out := make([]types.Todo, 0, len(todos))
	for _, t := range todos {
		if filters.Status != "" && t.Status != filters.Status {
			continue
		}
		if filters.Priority != "" && t.Priority != filters.Priority {
			continue
		}
		if search != "" && !matchesSearch(t, search) {
			continue
		}
		out = append(out, t.Clone())
	}
	return out
}

// matchesSearch reports whether the lower-cased needle occurs in the title
// or the description.
func matchesSearch(t types.Todo, needle string) bool {
	if strings.Contains(strings.ToLower(t.Title), needle) {
		return true
	}
	return t.Description != "" && strings.Contains(strings.ToLower(t.Description), needle)
}

// Sort returns a stably sorted copy of todos. Ties keep their relative order
// in both directions. An unknown field leaves the order unchanged.
func Sort(todos []types.Todo, sort types.Sort) []types.Todo {
	out := make([]types.Todo, len(todos))
	for i, t := range todos {
		out[i] = t.Clone()
	}

	compare := comparator(sort.Field)
	if compare == nil {
		return out
	}
	if sort.Direction == types.SortDesc {
		asc := compare
		compare = func(a, b types.Todo) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, compare)
	return out
}

// comparator returns the ascending comparison for field, or nil.
func comparator(field types.SortField) func(a, b types.Todo) int {
	switch field {
	case types.SortByTitle:
		return func(a, b types.Todo) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	case types.SortByPriority:
		return func(a, b types.Todo) int {
			return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
		}
	case types.SortByCreatedAt:
		return func(a, b types.Todo) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case types.SortByUpdatedAt:
		return func(a, b types.Todo) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	default:
		return nil
	}
}
