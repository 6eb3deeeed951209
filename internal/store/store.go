// Package store persists scan records. The pipeline talks to the Store
// interface only; deployments choose between the in-process memory
// store and the Postgres store.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("scan not found")

// PersistenceError wraps a storage failure with the operation that hit
// it. It is surfaced to the caller and never retried here.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store persists scan records keyed by their id.
type Store interface {
	// Create inserts a new record; the id must not exist yet.
	Create(ctx context.Context, result *scan.Result) error
	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*scan.Result, error)
	// Update overwrites an existing record, or returns ErrNotFound.
	Update(ctx context.Context, result *scan.Result) error
}
