// Package sqlite implements the SQLite backend for todos. SQLite serves as the
// query cache; todos.jsonl in the data directory is the source of truth.
package sqlite

// File names inside the data directory.
const (
	dbFileName    = "todos.db"
	todosJSONL    = "todos.jsonl"
	timeLayout    = "2006-01-02T15:04:05.000000Z07:00"
	todoColumns   = "id, title, description, priority, status, created_at, updated_at, completed_at"
	selectTodoSQL = "SELECT " + todoColumns + " FROM todos"
)

// Schema DDL.
const (
	createTodos = `CREATE TABLE todos (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL CHECK (length(trim(title)) > 0),
    description TEXT NOT NULL DEFAULT '',
    priority TEXT NOT NULL CHECK (priority IN ('high', 'medium', 'low')),
    status TEXT NOT NULL CHECK (status IN ('pending', 'completed')),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    completed_at TEXT,
    CHECK ((status = 'completed') = (completed_at IS NOT NULL))
);`

	idxTodosStatus   = `CREATE INDEX idx_todos_status ON todos(status);`
	idxTodosPriority = `CREATE INDEX idx_todos_priority ON todos(priority);`
	idxTodosCreated  = `CREATE INDEX idx_todos_created ON todos(created_at);`
)

// schemaDDL lists every statement executed on Attach, in order.
var schemaDDL = []string{
	createTodos,
	idxTodosStatus,
	idxTodosPriority,
	idxTodosCreated,
}
