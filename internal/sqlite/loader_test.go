package sqlite

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB opens a fresh SQLite database with the todos schema applied.
func openTestDB(t *testing.T, dir string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(dir, dbFileName))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range schemaDDL {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

func TestLoadJSONL(t *testing.T) {
	tests := []struct {
		name        string
		jsonl       string
		wantLoaded  int
		wantSkipped int
	}{
		{
			name:  "empty file",
			jsonl: "",
		},
		{
			name: "valid records load",
			jsonl: `{"id":"a","title":"one","description":"","priority":"high","status":"pending","created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z","completed_at":null}
{"id":"b","title":"two","priority":"low","status":"completed","created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T11:00:00Z","completed_at":"2025-01-15T11:00:00Z"}
`,
			wantLoaded: 2,
		},
		{
			name: "unknown fields are ignored",
			jsonl: `{"id":"a","title":"one","priority":"high","status":"pending","created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z","tags":["x"]}
`,
			wantLoaded: 1,
		},
		{
			name: "malformed lines are skipped",
			jsonl: `not json at all
{"id":"a","title":"one","priority":"high","status":"pending","created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z"}
{"id":"b","title":
`,
			wantLoaded:  1,
			wantSkipped: 2,
		},
		{
			name: "records missing fields or with bad timestamps are skipped",
			jsonl: `{"id":"","title":"no id","priority":"high","status":"pending","created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z"}
{"id":"b","title":"bad time","priority":"high","status":"pending","created_at":"yesterday","updated_at":"2025-01-15T10:30:00Z"}
`,
			wantSkipped: 2,
		},
		{
			name: "constraint violations are skipped",
			jsonl: `{"id":"a","title":"bad priority","priority":"urgent","status":"pending","created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z"}
{"id":"b","title":"completed without timestamp","priority":"low","status":"completed","created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z"}
{"id":"c","title":"ok","priority":"low","status":"pending","created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z"}
{"id":"c","title":"duplicate","priority":"low","status":"pending","created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z"}
`,
			wantLoaded:  1,
			wantSkipped: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			db := openTestDB(t, dir)
			require.NoError(t, os.WriteFile(filepath.Join(dir, todosJSONL), []byte(tt.jsonl), 0o644))

			res, err := loadJSONL(db, dir)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLoaded, res.loaded)
			assert.Equal(t, tt.wantSkipped, res.skipped)

			var n int
			require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM todos").Scan(&n))
			assert.Equal(t, tt.wantLoaded, n)
		})
	}
}

func TestLoadJSONLNormalizesTimestamps(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir)
	jsonl := `{"id":"a","title":"offset","priority":"high","status":"pending","created_at":"2025-01-15T12:30:00.5+02:00","updated_at":"2025-01-15T12:30:00.5+02:00"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, todosJSONL), []byte(jsonl), 0o644))

	_, err := loadJSONL(db, dir)
	require.NoError(t, err)

	var createdAt string
	require.NoError(t, db.QueryRow("SELECT created_at FROM todos WHERE id = 'a'").Scan(&createdAt))
	assert.Equal(t, "2025-01-15T10:30:00.500000Z", createdAt)
}

func TestLoadJSONLSkipsOversizedLine(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir)
	valid := func(id string) string {
		return `{"id":"` + id + `","title":"t","priority":"low","status":"pending","created_at":"2025-01-15T10:30:00Z","updated_at":"2025-01-15T10:30:00Z"}` + "\n"
	}
	jsonl := valid("a") + valid("b") + strings.Repeat("z", 2*maxLineBytes) + "\n" + valid("c")
	require.NoError(t, os.WriteFile(filepath.Join(dir, todosJSONL), []byte(jsonl), 0o644))

	res, err := loadJSONL(db, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, res.loaded)
	assert.Equal(t, 1, res.skipped)
}

func TestLoadJSONLMissingFile(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir)

	_, err := loadJSONL(db, dir)
	assert.Error(t, err)
}
