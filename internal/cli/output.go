package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/mesh-intelligence/todos/pkg/types"
)

const maxTitleWidth = 40

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}

// printTodoTable prints todos in a human-readable table.
func printTodoTable(w io.Writer, todos []types.Todo) {
	if len(todos) == 0 {
		fmt.Fprintln(w, "No todos found.")
		return
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tTITLE\tCREATED")
	for _, t := range todos {
		title := t.Title
		if utf8.RuneCountInString(title) > maxTitleWidth {
			title = string([]rune(title)[:maxTitleWidth-3]) + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			statusMark(t.Status),
			t.Priority,
			title,
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	tw.Flush()

	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	fmt.Fprintf(w, "Total: %d todo(s)\n", len(todos))
}

// printTodo prints one todo as a block of fields.
func printTodo(w io.Writer, t types.Todo) {
	fmt.Fprintf(w, "ID:          %s\n", t.ID)
	fmt.Fprintf(w, "Title:       %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", t.Description)
	}
	fmt.Fprintf(w, "Priority:    %s\n", t.Priority)
	fmt.Fprintf(w, "Status:      %s\n", t.Status)
	fmt.Fprintf(w, "Created:     %s\n", t.CreatedAt.Format(timeFormat))
	fmt.Fprintf(w, "Updated:     %s\n", t.UpdatedAt.Format(timeFormat))
	if t.CompletedAt != nil {
		fmt.Fprintf(w, "Completed:   %s\n", t.CompletedAt.Format(timeFormat))
	}
}

// printStats prints aggregate counts.
func printStats(w io.Writer, s types.Stats) {
	fmt.Fprintf(w, "Total:     %d\n", s.Total)
	fmt.Fprintf(w, "Pending:   %d\n", s.Pending)
	fmt.Fprintf(w, "Completed: %d\n", s.Completed)
	fmt.Fprintf(w, "High:      %d\n", s.ByPriority.High)
	fmt.Fprintf(w, "Medium:    %d\n", s.ByPriority.Medium)
	fmt.Fprintf(w, "Low:       %d\n", s.ByPriority.Low)
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func statusMark(s types.Status) string {
	if s == types.StatusCompleted {
		return "[x]"
	}
	return "[ ]"
}
