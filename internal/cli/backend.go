package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/todos/internal/httpclient"
	"github.com/mesh-intelligence/todos/internal/localstore"
	"github.com/mesh-intelligence/todos/internal/postgres"
	"github.com/mesh-intelligence/todos/internal/sqlite"
	"github.com/mesh-intelligence/todos/internal/store"
	"github.com/mesh-intelligence/todos/pkg/types"
)

// newBackend returns a detached backend for the named storage.
func newBackend(name string, log zerolog.Logger) (types.Backend, error) {
	switch name {
	case types.BackendSQLite:
		return sqlite.NewBackend(log), nil
	case types.BackendLocal:
		return localstore.NewBackend(log), nil
	case types.BackendPostgres:
		return postgres.NewBackend(log), nil
	case types.BackendHTTP:
		return httpclient.NewClient(nil, log), nil
	default:
		return nil, usageError("%s: %q", types.ErrBackendUnknown, name)
	}
}

// attachBackend builds and attaches the configured backend. The caller must
// call Detach.
func (a *app) attachBackend() (types.Backend, types.Config, error) {
	cfg, err := a.backendConfig()
	if err != nil {
		return nil, types.Config{}, err
	}
	backend, err := newBackend(cfg.Backend, a.log)
	if err != nil {
		return nil, types.Config{}, err
	}
	if err := backend.Attach(cfg); err != nil {
		return nil, types.Config{}, fmt.Errorf("attach %s backend: %w", cfg.Backend, err)
	}
	return backend, cfg, nil
}

// withStore attaches the backend, loads the collection into a fresh store
// and runs fn with it.
func (a *app) withStore(ctx context.Context, fn func(*store.Store) error) error {
	backend, _, err := a.attachBackend()
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Detach(); err != nil {
			a.log.Warn().Err(err).Msg("detach backend")
		}
	}()

	s := store.New(backend, a.log)
	if err := s.Load(ctx); err != nil {
		return fmt.Errorf("load todos: %w", err)
	}
	return fn(s)
}
