package store

import (
	"context"
	"sync"
)

// MemoryStore keeps state in memory. It backs tests and runs
// where persistence across restarts is not wanted.
type MemoryStore struct {
	mu        sync.Mutex
	profiles  []ProfileRecord
	rotations []RotationRecord
	closed    bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) SaveProfiles(
	_ context.Context, profiles []ProfileRecord,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.profiles = append([]ProfileRecord(nil), profiles...)
	return nil
}

func (m *MemoryStore) LoadProfiles(
	_ context.Context,
) ([]ProfileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return append([]ProfileRecord(nil), m.profiles...), nil
}

func (m *MemoryStore) SaveRotations(
	_ context.Context, rotations []RotationRecord,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.rotations = append([]RotationRecord(nil), rotations...)
	return nil
}

func (m *MemoryStore) LoadRotations(
	_ context.Context,
) ([]RotationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return append([]RotationRecord(nil), m.rotations...), nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
