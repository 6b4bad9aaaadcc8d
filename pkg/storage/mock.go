package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/narrative-engine/pkg/world"
)

// MockStorage is an in-memory Storage implementation for testing.
// States are stored as serialized blobs so callers get copies back,
// the same way a real adapter behaves.
type MockStorage struct {
	mu     sync.Mutex
	states map[uuid.UUID][]byte

	// Optional failure injection
	SaveErr   error
	LoadErr   error
	DeleteErr error
	PingErr   error

	// Call tracking
	SaveCalls   int
	LoadCalls   int
	DeleteCalls int
}

func NewMockStorage() *MockStorage {
	return &MockStorage{
		states: make(map[uuid.UUID][]byte),
	}
}

func (m *MockStorage) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveState(ctx context.Context, id uuid.UUID, st *world.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	m.states[id] = data
	return nil
}

func (m *MockStorage) LoadState(ctx context.Context, id uuid.UUID) (*world.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LoadCalls++
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}

	data, ok := m.states[id]
	if !ok {
		return nil, nil
	}

	var st world.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &st, nil
}

func (m *MockStorage) DeleteState(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.states, id)
	return nil
}
