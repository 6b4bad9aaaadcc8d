package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jwebster45206/narrative-engine/pkg/world"
)

// Storage is the persistence adapter for world state. Implementations
// are a plain key-value blob store; the engine treats writes as
// best-effort and keeps its in-memory copy authoritative.
type Storage interface {
	// Ping tests the adapter connection
	Ping(ctx context.Context) error

	// Close releases the adapter connection
	Close() error

	// SaveState persists a world state under its session ID
	SaveState(ctx context.Context, id uuid.UUID, st *world.State) error

	// LoadState retrieves a world state by session ID.
	// Returns nil, nil if no state is stored under the ID.
	LoadState(ctx context.Context, id uuid.UUID) (*world.State, error)

	// DeleteState removes a world state by session ID
	DeleteState(ctx context.Context, id uuid.UUID) error
}
