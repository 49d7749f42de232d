// Package sqlite implements the durable on-device entry store over a single
// SQLite database file (modernc.org/sqlite, pure Go driver).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/domain/knowledge"
	appErrors "github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/errors"
	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/infrastructure/observability"
)

// Config controls where and how the store opens its database.
type Config struct {
	// Path is the database file location, or ":memory:" for tests.
	Path string
	// Namespace prefixes the table name so multiple engines can share a file.
	Namespace string
	// SchemaVersion gates index creation on first open. Zero means the
	// bundled schema version.
	SchemaVersion int
}

var namespaceRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Store is the SQLite-backed entry store. The connection is a single
// long-lived handle; the owning repository calls Initialize once at startup
// and Close at shutdown.
type Store struct {
	cfg     Config
	table   string
	logger  *zap.Logger
	metrics *observability.Collector

	mu          sync.RWMutex
	db          *sql.DB
	initialized bool
}

// New creates an uninitialized store. Every data operation fails with
// STORE_NOT_INITIALIZED until Initialize succeeds.
func New(cfg Config, logger *zap.Logger, metrics *observability.Collector) (*Store, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = "brandcoach"
	}
	if !namespaceRe.MatchString(cfg.Namespace) {
		return nil, appErrors.Store(appErrors.CodeStoreInit, "invalid storage namespace").
			WithDetails(cfg.Namespace).Build()
	}
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = schemaVersion
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cfg:     cfg,
		table:   cfg.Namespace + "_entries",
		logger:  logger.Named("entrystore"),
		metrics: metrics,
	}, nil
}

// Initialize opens the database and creates the schema when the stored
// user_version is older than the configured schema version.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	db, err := sql.Open("sqlite", s.cfg.Path)
	if err != nil {
		return appErrors.Store(appErrors.CodeStoreOpen, "failed to open database").
			WithCause(err).Build()
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// between the repository and the drain loop.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return appErrors.Store(appErrors.CodeStoreOpen, "database unreachable").
			WithCause(err).Build()
	}

	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		db.Close()
		return appErrors.Store(appErrors.CodeStoreInit, "failed to read schema version").
			WithCause(err).Build()
	}

	if current < s.cfg.SchemaVersion {
		if _, err := db.ExecContext(ctx, schemaFor(s.table)); err != nil {
			db.Close()
			return appErrors.Store(appErrors.CodeStoreInit, "failed to create schema").
				WithCause(err).Build()
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", s.cfg.SchemaVersion)); err != nil {
			db.Close()
			return appErrors.Store(appErrors.CodeStoreInit, "failed to stamp schema version").
				WithCause(err).Build()
		}
		s.logger.Info("schema created",
			zap.String("table", s.table),
			zap.Int("from", current),
			zap.Int("to", s.cfg.SchemaVersion))
	}

	s.db = db
	s.initialized = true
	return nil
}

// Close releases the database handle. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}
	s.initialized = false
	if err := s.db.Close(); err != nil {
		return appErrors.Store(appErrors.CodeStoreOpen, "failed to close database").
			WithCause(err).Build()
	}
	return nil
}

// IsConnected reports whether the store is initialized and reachable.
func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized && s.db.Ping() == nil
}

// conn returns the live handle or the NOT_INITIALIZED guard error.
func (s *Store) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, appErrors.Store(appErrors.CodeStoreNotInitialized,
			"store used before Initialize").Build()
	}
	return s.db, nil
}

// ============================================================================
// KEYED ACCESS
// ============================================================================

// Put upserts an entry by id.
func (s *Store) Put(ctx context.Context, entry *knowledge.Entry) error {
	start := time.Now()
	err := s.put(ctx, entry)
	s.metrics.ObserveStore("put", time.Since(start), err)
	return err
}

func (s *Store) put(ctx context.Context, entry *knowledge.Entry) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	args, err := writeArgs(entry)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, s.upsertSQL(), args...); err != nil {
		return appErrors.Store(appErrors.CodeStoreWrite, "failed to write entry").
			WithOperation("Put").WithUser(entry.UserID).WithField(entry.FieldIdentifier).
			WithCause(err).Build()
	}
	return nil
}

// Get returns the entry with the given id, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id string) (*knowledge.Entry, error) {
	start := time.Now()
	entry, err := s.get(ctx, id)
	s.metrics.ObserveStore("get", time.Since(start), err)
	return entry, err
}

func (s *Store) get(ctx context.Context, id string) (*knowledge.Entry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", entryColumns, s.table), id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, appErrors.Store(appErrors.CodeStoreRead, "failed to read entry").
			WithOperation("Get").WithCause(err).Build()
	}
	return entry, nil
}

// Delete removes an entry by id. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table), id); err != nil {
		return appErrors.Store(appErrors.CodeStoreDelete, "failed to delete entry").
			WithOperation("Delete").WithCause(err).Build()
	}
	return nil
}

// ============================================================================
// SCANS AND BATCHES
// ============================================================================

// Query performs a full scan and returns the entries matching the predicate.
func (s *Store) Query(ctx context.Context, predicate func(*knowledge.Entry) bool) ([]knowledge.Entry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s", entryColumns, s.table))
	if err != nil {
		return nil, appErrors.Store(appErrors.CodeStoreQuery, "full scan failed").
			WithOperation("Query").WithCause(err).Build()
	}
	defer rows.Close()

	var out []knowledge.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, appErrors.Store(appErrors.CodeStoreQuery, "failed to scan row").
				WithOperation("Query").WithCause(err).Build()
		}
		if predicate == nil || predicate(entry) {
			out = append(out, *entry)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Store(appErrors.CodeStoreQuery, "scan aborted").
			WithOperation("Query").WithCause(err).Build()
	}
	return out, nil
}

// BatchUpdate upserts all entries within one transaction, all-or-nothing.
func (s *Store) BatchUpdate(ctx context.Context, entries []knowledge.Entry) error {
	start := time.Now()
	err := s.batchUpdate(ctx, entries)
	s.metrics.ObserveStore("batch_update", time.Since(start), err)
	return err
}

func (s *Store) batchUpdate(ctx context.Context, entries []knowledge.Entry) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return appErrors.Store(appErrors.CodeStoreBatch, "failed to begin transaction").
			WithCause(err).Build()
	}
	defer tx.Rollback()

	for i := range entries {
		entry := &entries[i]
		if err := entry.Validate(); err != nil {
			return appErrors.Store(appErrors.CodeStoreBatch, "batch rejected").
				WithDetails("invalid entry in batch").WithCause(err).Build()
		}
		args, err := writeArgs(entry)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.upsertSQL(), args...); err != nil {
			return appErrors.Store(appErrors.CodeStoreBatch, "batch write failed").
				WithUser(entry.UserID).WithField(entry.FieldIdentifier).
				WithCause(err).Build()
		}
	}

	if err := tx.Commit(); err != nil {
		return appErrors.Store(appErrors.CodeStoreBatch, "failed to commit batch").
			WithCause(err).Build()
	}
	return nil
}

// SaveVersionTx demotes the previous current entry (when present) and inserts
// the next version in one transaction. A crash between the two writes can
// therefore never leave a lineage with zero current entries.
func (s *Store) SaveVersionTx(ctx context.Context, demoted *knowledge.Entry, next *knowledge.Entry) error {
	start := time.Now()
	err := s.saveVersionTx(ctx, demoted, next)
	s.metrics.ObserveStore("save_version", time.Since(start), err)
	return err
}

func (s *Store) saveVersionTx(ctx context.Context, demoted *knowledge.Entry, next *knowledge.Entry) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return appErrors.Store(appErrors.CodeStoreWrite, "failed to begin transaction").
			WithCause(err).Build()
	}
	defer tx.Rollback()

	if demoted != nil {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET is_current = 0, updated_at = ? WHERE id = ?", s.table),
			demoted.UpdatedAt.UnixMilli(), demoted.ID)
		if err != nil {
			return appErrors.Store(appErrors.CodeStoreWrite, "failed to demote current entry").
				WithUser(demoted.UserID).WithField(demoted.FieldIdentifier).
				WithCause(err).Build()
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return appErrors.Store(appErrors.CodeStoreWrite, "current entry vanished during save").
				WithUser(demoted.UserID).WithField(demoted.FieldIdentifier).Build()
		}
	}

	args, err := writeArgs(next)
	if err != nil {
		return err
	}
	insert := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.table, entryColumns)
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return appErrors.Store(appErrors.CodeStoreWrite, "failed to insert new version").
			WithUser(next.UserID).WithField(next.FieldIdentifier).
			WithCause(err).Build()
	}

	if err := tx.Commit(); err != nil {
		return appErrors.Store(appErrors.CodeStoreWrite, "failed to commit version save").
			WithCause(err).Build()
	}
	return nil
}

// ============================================================================
// INDEXED LOOKUPS
// ============================================================================

func (s *Store) ByUser(ctx context.Context, userID string) ([]knowledge.Entry, error) {
	return s.list(ctx, "ByUser", "user_id = ?", "version DESC", userID)
}

func (s *Store) ByField(ctx context.Context, fieldIdentifier string) ([]knowledge.Entry, error) {
	return s.list(ctx, "ByField", "field_identifier = ?", "version DESC", fieldIdentifier)
}

// ByUserField returns the full lineage ordered by version descending.
func (s *Store) ByUserField(ctx context.Context, userID, fieldIdentifier string) ([]knowledge.Entry, error) {
	return s.list(ctx, "ByUserField", "user_id = ? AND field_identifier = ?",
		"version DESC", userID, fieldIdentifier)
}

func (s *Store) ByCategory(ctx context.Context, category knowledge.Category) ([]knowledge.Entry, error) {
	return s.list(ctx, "ByCategory", "category = ?", "version DESC", string(category))
}

func (s *Store) ByUserCategory(ctx context.Context, userID string, category knowledge.Category) ([]knowledge.Entry, error) {
	return s.list(ctx, "ByUserCategory", "user_id = ? AND category = ?",
		"version DESC", userID, string(category))
}

// CurrentByUserField returns the lineage's single current entry, or nil.
func (s *Store) CurrentByUserField(ctx context.Context, userID, fieldIdentifier string) (*knowledge.Entry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE user_id = ? AND field_identifier = ? AND is_current = 1",
		entryColumns, s.table), userID, fieldIdentifier)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, appErrors.Store(appErrors.CodeStoreRead, "failed to read current entry").
			WithOperation("CurrentByUserField").WithUser(userID).WithField(fieldIdentifier).
			WithCause(err).Build()
	}
	return entry, nil
}

func (s *Store) CurrentByUser(ctx context.Context, userID string) ([]knowledge.Entry, error) {
	return s.list(ctx, "CurrentByUser", "user_id = ? AND is_current = 1",
		"field_identifier ASC", userID)
}

func (s *Store) CurrentByUserCategory(ctx context.Context, userID string, category knowledge.Category) ([]knowledge.Entry, error) {
	return s.list(ctx, "CurrentByUserCategory",
		"user_id = ? AND category = ? AND is_current = 1",
		"field_identifier ASC", userID, string(category))
}

// Unsynced returns every entry still awaiting remote confirmation. This is
// the recovery path after a crash or restart, backed by the local_changes
// partial index.
func (s *Store) Unsynced(ctx context.Context, userID string) ([]knowledge.Entry, error) {
	return s.list(ctx, "Unsynced", "user_id = ? AND local_changes = 1",
		"updated_at ASC", userID)
}

func (s *Store) list(ctx context.Context, op, where, order string, args ...any) ([]knowledge.Entry, error) {
	start := time.Now()
	out, err := s.doList(ctx, op, where, order, args...)
	s.metrics.ObserveStore("list", time.Since(start), err)
	return out, err
}

func (s *Store) doList(ctx context.Context, op, where, order string, args ...any) ([]knowledge.Entry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		entryColumns, s.table, where, order)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, appErrors.Store(appErrors.CodeStoreQuery, "indexed lookup failed").
			WithOperation(op).WithCause(err).Build()
	}
	defer rows.Close()

	var out []knowledge.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, appErrors.Store(appErrors.CodeStoreQuery, "failed to scan row").
				WithOperation(op).WithCause(err).Build()
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Store(appErrors.CodeStoreQuery, "scan aborted").
			WithOperation(op).WithCause(err).Build()
	}
	return out, nil
}

// ============================================================================
// BULK REMOVAL
// ============================================================================

// DeleteByUser removes every version of every field belonging to a user.
func (s *Store) DeleteByUser(ctx context.Context, userID string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", s.table), userID); err != nil {
		return appErrors.Store(appErrors.CodeStoreDelete, "failed to purge user data").
			WithOperation("DeleteByUser").WithUser(userID).WithCause(err).Build()
	}
	return nil
}

// Clear removes all entries in the namespace.
func (s *Store) Clear(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return appErrors.Store(appErrors.CodeStoreDelete, "failed to clear store").
			WithOperation("Clear").WithCause(err).Build()
	}
	return nil
}

// ============================================================================
// ROW MAPPING
// ============================================================================

func (s *Store) upsertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    user_id = excluded.user_id,
    field_identifier = excluded.field_identifier,
    category = excluded.category,
    subcategory = excluded.subcategory,
    content = excluded.content,
    structured_data = excluded.structured_data,
    metadata = excluded.metadata,
    version = excluded.version,
    is_current = excluded.is_current,
    local_changes = excluded.local_changes,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at,
    last_synced_at = excluded.last_synced_at`, s.table, entryColumns)
}

func writeArgs(e *knowledge.Entry) ([]any, error) {
	var structured any
	if len(e.StructuredData) > 0 {
		structured = string(e.StructuredData)
	}
	var metadata any
	if !e.Metadata.IsZero() {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, appErrors.Store(appErrors.CodeStoreWrite, "failed to encode metadata").
				WithCause(err).Build()
		}
		metadata = string(raw)
	}
	var lastSynced any
	if e.LastSyncedAt != nil {
		lastSynced = e.LastSyncedAt.UnixMilli()
	}
	return []any{
		e.ID, e.UserID, e.FieldIdentifier, string(e.Category), nullable(e.Subcategory),
		e.Content, structured, metadata, e.Version, boolInt(e.IsCurrentVersion),
		boolInt(e.LocalChanges), e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli(),
		lastSynced,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*knowledge.Entry, error) {
	var (
		e           knowledge.Entry
		category    string
		subcategory sql.NullString
		structured  sql.NullString
		metadata    sql.NullString
		isCurrent   int
		localChg    int
		createdAt   int64
		updatedAt   int64
		lastSynced  sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.UserID, &e.FieldIdentifier, &category, &subcategory,
		&e.Content, &structured, &metadata, &e.Version, &isCurrent, &localChg,
		&createdAt, &updatedAt, &lastSynced)
	if err != nil {
		return nil, err
	}
	e.Category = knowledge.Category(category)
	e.Subcategory = subcategory.String
	if structured.Valid {
		e.StructuredData = json.RawMessage(structured.String)
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			return nil, err
		}
	}
	e.IsCurrentVersion = isCurrent == 1
	e.LocalChanges = localChg == 1
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	e.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if lastSynced.Valid {
		t := time.UnixMilli(lastSynced.Int64).UTC()
		e.LastSyncedAt = &t
	}
	return &e, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
