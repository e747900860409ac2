package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/todos/pkg/types"
)

// Compile-time interface check.
var _ types.Backend = (*Backend)(nil)

// Backend implements types.Backend using SQLite as the query engine and
// todos.jsonl as the source of truth. Every mutation commits to SQLite only
// after the JSONL file has been rewritten, so the two never diverge.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	log      zerolog.Logger

	// now is the clock used for timestamps; tests replace it.
	now func() time.Time
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(log zerolog.Logger) *Backend {
	return &Backend{
		log: log.With().Str("component", "sqlite").Logger(),
		now: types.Now,
	}
}

// Attach creates DataDir if needed, builds a fresh SQLite cache and loads
// todos.jsonl into it. A todos.jsonl that cannot be read is treated as
// corrupt: the backend starts empty and logs a warning.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	if config.DataDir == "" {
		config.DataDir = "."
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// The cache is rebuilt from JSONL on every attach.
	dbPath := filepath.Join(config.DataDir, dbFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	if err := initJSONLFile(config.DataDir); err != nil {
		db.Close()
		return fmt.Errorf("initializing %s: %w", todosJSONL, err)
	}

	res, err := loadJSONL(db, config.DataDir)
	if err != nil {
		b.log.Warn().Err(err).Str("data_dir", config.DataDir).Msg("todos.jsonl unreadable, starting empty")
		if _, err := db.Exec("DELETE FROM todos"); err != nil {
			db.Close()
			return fmt.Errorf("resetting cache: %w", err)
		}
	}
	if res.skipped > 0 {
		b.log.Warn().Int("skipped", res.skipped).Msg("skipped invalid records in todos.jsonl")
	}
	b.log.Debug().Int("loaded", res.loaded).Str("data_dir", config.DataDir).Msg("attached")

	b.db = db
	b.config = config
	b.attached = true
	return nil
}

// Detach closes the SQLite connection. Detach is idempotent; afterwards every
// Gateway call fails with ErrStorageUnavailable.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	return nil
}

// checkAttached must be called with b.mu held.
func (b *Backend) checkAttached() error {
	if !b.attached {
		return fmt.Errorf("%w: %w", types.ErrStorageUnavailable, types.ErrDetached)
	}
	return nil
}

// generateUUID generates a new UUID v7 for todo IDs.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
