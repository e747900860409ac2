package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
)

// loadResult reports what loadJSONL did with the records it read.
type loadResult struct {
	loaded  int
	skipped int
}

// loadJSONL reads todos.jsonl from dataDir and inserts every valid record into
// SQLite in one transaction: either all valid records load or none do.
// Malformed or over-long lines, records missing required fields, records with bad
// timestamps and records that violate a constraint are skipped. Unknown
// fields are ignored.
func loadJSONL(db *sql.DB, dataDir string) (loadResult, error) {
	var res loadResult

	records, skipped, err := readJSONL(filepath.Join(dataDir, todosJSONL))
	if err != nil {
		return res, fmt.Errorf("reading %s: %w", todosJSONL, err)
	}
	res.skipped = skipped
	if len(records) == 0 {
		return res, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return res, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO todos (" + todoColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return res, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, raw := range records {
		args, ok := recordArgs(raw)
		if !ok {
			res.skipped++
			continue
		}
		if _, err := stmt.Exec(args...); err != nil {
			res.skipped++
			continue
		}
		res.loaded++
	}

	if err := tx.Commit(); err != nil {
		return loadResult{}, fmt.Errorf("committing load transaction: %w", err)
	}
	return res, nil
}

// recordArgs converts one JSONL record into insert arguments, normalizing
// timestamps to the storage layout. It reports false for records that cannot
// be loaded.
func recordArgs(raw json.RawMessage) ([]any, bool) {
	var rec todoJSON
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	if rec.ID == "" || rec.Title == "" || rec.CreatedAt == "" || rec.UpdatedAt == "" {
		return nil, false
	}
	createdAt, err := normalizeTime(rec.CreatedAt)
	if err != nil {
		return nil, false
	}
	updatedAt, err := normalizeTime(rec.UpdatedAt)
	if err != nil {
		return nil, false
	}
	var completedAt any
	if rec.CompletedAt != nil {
		s, err := normalizeTime(*rec.CompletedAt)
		if err != nil {
			return nil, false
		}
		completedAt = s
	}
	return []any{rec.ID, rec.Title, rec.Description, rec.Priority, rec.Status, createdAt, updatedAt, completedAt}, true
}
