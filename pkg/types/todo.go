package types

import (
	"strings"
	"time"
)

// Priority is the importance level of a todo.
type Priority string

// Priority values. Rank orders them high (1) to low (3).
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// validPriorities is the set of recognized priority values.
var validPriorities = map[Priority]bool{
	PriorityHigh:   true,
	PriorityMedium: true,
	PriorityLow:    true,
}

// Valid reports whether p is one of the Priority constants.
func (p Priority) Valid() bool { return validPriorities[p] }

// Rank returns 1 for high, 2 for medium and 3 for low. Unknown priorities
// rank after low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Status is the completion state of a todo.
type Status string

// Status values.
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the Status constants.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Toggle returns the opposite status.
func (s Status) Toggle() Status {
	if s == StatusCompleted {
		return StatusPending
	}
	return StatusCompleted
}

// Todo is a single task record. The JSON shape is the wire and storage
// format shared by every backend.
type Todo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Clone returns a copy of t that shares no pointers with it.
func (t Todo) Clone() Todo {
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}
	return t
}

// Draft is the input to a create operation.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority"`
}

// Patch is the input to an update operation. Nil fields are left unchanged;
// a non-nil empty Description clears the description.
type Patch struct {
	ID          string    `json:"id"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Status      *Status   `json:"status,omitempty"`
}

// Now returns the current time in the precision every backend stores
// losslessly (UTC, microseconds).
func Now() time.Time {
	return Timestamp(time.Now())
}

// Timestamp normalizes t to UTC with microsecond precision and strips the
// monotonic clock reading.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// NewTodo builds a pending todo from a draft. createdAt and updatedAt are
// both set to now. The draft must already have passed ValidateDraft.
func NewTodo(id string, d Draft, now time.Time) Todo {
	now = Timestamp(now)
	return Todo{
		ID:          id,
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Priority:    d.Priority,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ApplyPatch merges p over current and returns the result; current is not
// modified. updatedAt always advances past the previous value. completedAt is
// set when the status moves to completed, cleared when it becomes pending, and
// otherwise left as it was.
func ApplyPatch(current Todo, p Patch, now time.Time) Todo {
	next := current.Clone()
	now = Timestamp(now)
	if !now.After(current.UpdatedAt) {
		now = current.UpdatedAt.Add(time.Microsecond)
	}

	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	next.UpdatedAt = now

	switch {
	case next.Status == StatusCompleted && current.Status != StatusCompleted:
		at := now
		next.CompletedAt = &at
	case next.Status == StatusPending:
		next.CompletedAt = nil
	}
	return next
}

// TogglePatch returns the patch that flips the status of t.
func TogglePatch(t Todo) Patch {
	s := t.Status.Toggle()
	return Patch{ID: t.ID, Status: &s}
}
