package sqlite

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/todos/pkg/types"
)

// todoJSON is the record format of todos.jsonl. Timestamps are RFC 3339
// strings; completed_at is null while the todo is pending.
type todoJSON struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	CompletedAt *string `json:"completed_at"`
}

// formatTime renders t in the fixed-width layout used for storage, so that
// lexical and chronological order agree.
func formatTime(t time.Time) string {
	return types.Timestamp(t).Format(timeLayout)
}

// parseTime accepts any RFC 3339 timestamp.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return types.Timestamp(t), nil
}

// normalizeTime re-renders an RFC 3339 string in the storage layout.
func normalizeTime(s string) (string, error) {
	t, err := parseTime(s)
	if err != nil {
		return "", err
	}
	return formatTime(t), nil
}
