// Package repository contains the knowledge repository, the sole authority
// for current-version transitions, and the port it requires from the
// on-device entry store.
package repository

import (
	"context"

	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/domain/knowledge"
)

// EntryStore is the durable on-device storage the repository runs on.
// Implementations must wrap every failure into a typed store error and must
// reject any data operation issued before Initialize with
// STORE_NOT_INITIALIZED. Missing rows are not failures: point lookups return
// (nil, nil) and list lookups return an empty slice.
type EntryStore interface {
	// Connection lifecycle.
	Initialize(ctx context.Context) error
	Close() error
	IsConnected() bool

	// Keyed access.
	Put(ctx context.Context, entry *knowledge.Entry) error
	Get(ctx context.Context, id string) (*knowledge.Entry, error)
	Delete(ctx context.Context, id string) error

	// Full scan with caller-side filtering.
	Query(ctx context.Context, predicate func(*knowledge.Entry) bool) ([]knowledge.Entry, error)

	// BatchUpdate upserts all entries within one transaction, all-or-nothing.
	BatchUpdate(ctx context.Context, entries []knowledge.Entry) error

	// SaveVersionTx demotes the previous current entry (when non-nil) and
	// inserts the next version in a single transaction, so a crash can never
	// leave a lineage with zero current entries.
	SaveVersionTx(ctx context.Context, demoted *knowledge.Entry, next *knowledge.Entry) error

	// Indexed lookups.
	ByUser(ctx context.Context, userID string) ([]knowledge.Entry, error)
	ByField(ctx context.Context, fieldIdentifier string) ([]knowledge.Entry, error)
	ByUserField(ctx context.Context, userID, fieldIdentifier string) ([]knowledge.Entry, error)
	ByCategory(ctx context.Context, category knowledge.Category) ([]knowledge.Entry, error)
	ByUserCategory(ctx context.Context, userID string, category knowledge.Category) ([]knowledge.Entry, error)
	CurrentByUserField(ctx context.Context, userID, fieldIdentifier string) (*knowledge.Entry, error)
	CurrentByUser(ctx context.Context, userID string) ([]knowledge.Entry, error)
	CurrentByUserCategory(ctx context.Context, userID string, category knowledge.Category) ([]knowledge.Entry, error)
	Unsynced(ctx context.Context, userID string) ([]knowledge.Entry, error)

	// Bulk removal.
	DeleteByUser(ctx context.Context, userID string) error
	Clear(ctx context.Context) error
}
