package types

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldsOf(err error) []string {
	var fields []string
	for _, fe := range FieldErrorsOf(err) {
		fields = append(fields, fe.Field)
	}
	return fields
}

func TestValidateDraft(t *testing.T) {
	tests := []struct {
		name   string
		draft  Draft
		fields []string
	}{
		{
			name:  "valid draft",
			draft: Draft{Title: "Write report", Priority: PriorityHigh},
		},
		{
			name:   "missing priority",
			draft:  Draft{Title: "Write report"},
			fields: []string{"priority"},
		},
		{
			name:   "empty title",
			draft:  Draft{Title: "", Priority: PriorityLow},
			fields: []string{"title"},
		},
		{
			name:   "whitespace title",
			draft:  Draft{Title: "   ", Priority: PriorityLow},
			fields: []string{"title"},
		},
		{
			name:  "title at limit after trimming",
			draft: Draft{Title: "  " + strings.Repeat("a", MaxTitleLength) + "  ", Priority: PriorityLow},
		},
		{
			name:   "title over limit",
			draft:  Draft{Title: strings.Repeat("a", MaxTitleLength+1), Priority: PriorityLow},
			fields: []string{"title"},
		},
		{
			name:   "description over limit",
			draft:  Draft{Title: "t", Description: strings.Repeat("d", MaxDescriptionLength+1), Priority: PriorityLow},
			fields: []string{"description"},
		},
		{
			name:   "unknown priority",
			draft:  Draft{Title: "t", Priority: "urgent"},
			fields: []string{"priority"},
		},
		{
			name:   "every field invalid",
			draft:  Draft{Title: "", Description: strings.Repeat("d", MaxDescriptionLength+1), Priority: "urgent"},
			fields: []string{"title", "description", "priority"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDraft(tt.draft)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ElementsMatch(t, tt.fields, fieldsOf(err))
		})
	}
}

func TestValidatePatch(t *testing.T) {
	tests := []struct {
		name   string
		patch  Patch
		fields []string
	}{
		{
			name:  "id only",
			patch: Patch{ID: "x"},
		},
		{
			name:   "missing id",
			patch:  Patch{Title: strPtr("t")},
			fields: []string{"id"},
		},
		{
			name:   "empty title present",
			patch:  Patch{ID: "x", Title: strPtr(" ")},
			fields: []string{"title"},
		},
		{
			name:  "empty description clears",
			patch: Patch{ID: "x", Description: strPtr("")},
		},
		{
			name:   "bad status",
			patch:  Patch{ID: "x", Status: statusPtr("archived")},
			fields: []string{"status"},
		},
		{
			name:   "bad priority",
			patch:  Patch{ID: "x", Priority: priorityPtr("none")},
			fields: []string{"priority"},
		},
		{
			name:  "valid status",
			patch: Patch{ID: "x", Status: statusPtr(StatusCompleted)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePatch(tt.patch)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ElementsMatch(t, tt.fields, fieldsOf(err))
		})
	}
}

func TestValidateTodo(t *testing.T) {
	now := Timestamp(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))
	valid := NewTodo("id-1", Draft{Title: "t", Priority: PriorityHigh}, now)
	completed := ApplyPatch(valid, Patch{ID: "id-1", Status: statusPtr(StatusCompleted)}, now)

	tests := []struct {
		name   string
		mutate func(*Todo)
		base   Todo
		fields []string
	}{
		{name: "pending record", base: valid},
		{name: "completed record", base: completed},
		{name: "missing id", base: valid, mutate: func(t *Todo) { t.ID = "" }, fields: []string{"id"}},
		{name: "unknown priority", base: valid, mutate: func(t *Todo) { t.Priority = "urgent" }, fields: []string{"priority"}},
		{name: "unknown status", base: valid, mutate: func(t *Todo) { t.Status = "done" }, fields: []string{"status"}},
		{name: "zero timestamps", base: valid, mutate: func(t *Todo) { t.CreatedAt, t.UpdatedAt = time.Time{}, time.Time{} }, fields: []string{"createdAt", "updatedAt"}},
		{name: "completed without completedAt", base: completed, mutate: func(t *Todo) { t.CompletedAt = nil }, fields: []string{"completedAt"}},
		{name: "pending with completedAt", base: valid, mutate: func(t *Todo) { t.CompletedAt = &now }, fields: []string{"completedAt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			td := tt.base.Clone()
			if tt.mutate != nil {
				tt.mutate(&td)
			}
			err := ValidateTodo(td)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ElementsMatch(t, tt.fields, fieldsOf(err))
		})
	}
}

func TestInvalidWrapsFieldErrors(t *testing.T) {
	err := Invalid(ValidateDraft(Draft{}))

	assert.ErrorIs(t, err, ErrValidationFailed)
	fe := FieldErrorsOf(err)
	require.Len(t, fe, 2)
	assert.Equal(t, "title", fe[0].Field)
	assert.Equal(t, "priority", fe[1].Field)
}
