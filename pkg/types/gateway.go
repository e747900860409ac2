package types

import "context"

// Gateway performs CRUD against a single collection of todos. Every method
// may block on I/O and fails independently; a failed write leaves the
// backing store unchanged.
type Gateway interface {
	// List returns every stored todo and the statistics over all of them.
	// Unreadable stored data degrades to an empty collection.
	List(ctx context.Context) ([]Todo, Stats, error)

	// Create validates the draft, assigns a fresh ID, stores a pending todo
	// and returns it. Fails with ErrValidationFailed.
	Create(ctx context.Context, d Draft) (Todo, error)

	// Update merges the patch over the stored record using ApplyPatch.
	// Fails with ErrValidationFailed or ErrNotFound.
	Update(ctx context.Context, p Patch) (Todo, error)

	// Remove deletes the todo permanently. Fails with ErrNotFound.
	Remove(ctx context.Context, id string) error

	// ToggleStatus flips pending and completed by delegating to Update.
	ToggleStatus(ctx context.Context, id string) (Todo, error)
}

// Backend is a Gateway with an attach/detach lifecycle.
type Backend interface {
	Gateway

	// Attach connects to the storage described by config.
	// Returns ErrAlreadyAttached if called twice.
	Attach(config Config) error

	// Detach releases resources. Idempotent. Afterwards every Gateway call
	// fails with ErrStorageUnavailable.
	Detach() error
}
