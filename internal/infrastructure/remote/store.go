// Package remote defines the authoritative remote store contract the sync
// engine propagates to, plus its Supabase implementation.
package remote

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound distinguishes "no matching row" from other remote failures.
var ErrNotFound = errors.New("remote: no matching row")

// Record is the remote store's row for a lineage's current version.
type Record struct {
	ID              string    `json:"id,omitempty"`
	UserID          string    `json:"user_id"`
	FieldIdentifier string    `json:"field_identifier"`
	Category        string    `json:"category"`
	Content         string    `json:"content"`
	Version         int       `json:"version"`
	IsCurrent       bool      `json:"is_current"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store is the remote contract assumed by the sync engine's
// lookup-then-write pass: a point lookup filtered by
// (userID, fieldIdentifier, current=true), a row update by row id, and a row
// insert. Two processes syncing the same field can race between the lookup
// and the write; the engine documents rather than corrects this.
type Store interface {
	// FindCurrent returns the current row for the lineage, or ErrNotFound.
	FindCurrent(ctx context.Context, userID, fieldIdentifier string) (*Record, error)
	// Insert creates a new row.
	Insert(ctx context.Context, record Record) error
	// Update replaces the row with the given id.
	Update(ctx context.Context, id string, record Record) error
}
