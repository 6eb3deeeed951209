package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

// Memory keeps scan records in process memory. Records are deep-copied
// on both write and read, so callers never share state with the store.
type Memory struct {
	mu    sync.RWMutex
	scans map[uuid.UUID]*scan.Result
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{scans: make(map[uuid.UUID]*scan.Result)}
}

// Create inserts a new record.
func (m *Memory) Create(_ context.Context, result *scan.Result) error {
	if result == nil {
		return &PersistenceError{Op: "create", Err: fmt.Errorf("nil scan")}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.scans[result.ID]; exists {
		return &PersistenceError{Op: "create", Err: fmt.Errorf("scan %s already exists", result.ID)}
	}
	m.scans[result.ID] = result.Clone()
	return nil
}

// Get returns a copy of the record for id.
func (m *Memory) Get(_ context.Context, id uuid.UUID) (*scan.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.scans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return result.Clone(), nil
}

// Update overwrites an existing record.
func (m *Memory) Update(_ context.Context, result *scan.Result) error {
	if result == nil {
		return &PersistenceError{Op: "update", Err: fmt.Errorf("nil scan")}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scans[result.ID]; !ok {
		return ErrNotFound
	}
	m.scans[result.ID] = result.Clone()
	return nil
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.scans)
}
