package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/domain/knowledge"
	appErrors "github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/errors"
)

// KnowledgeRepository enforces the versioning invariants over the entry
// store. It is the only component that flips version and IsCurrentVersion;
// the sync engine flips LocalChanges and LastSyncedAt exclusively through
// MarkAsSynced.
//
// Propagation policy: read failures degrade to "no data yet" so the UI stays
// responsive; write failures always surface as wrapped errors.
type KnowledgeRepository struct {
	store  EntryStore
	logger *zap.Logger
	now    func() time.Time
}

// NewKnowledgeRepository creates a repository over an initialized store.
func NewKnowledgeRepository(store EntryStore, logger *zap.Logger) *KnowledgeRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnowledgeRepository{
		store:  store,
		logger: logger.Named("repository"),
		now:    time.Now,
	}
}

// ============================================================================
// READS
// ============================================================================

// GetField returns the current content for a user field. Store failures are
// swallowed: the second return is false both when the lineage does not exist
// and when the store is unavailable.
func (r *KnowledgeRepository) GetField(ctx context.Context, userID, fieldIdentifier string) (string, bool) {
	entry := r.GetFieldEntry(ctx, userID, fieldIdentifier)
	if entry == nil {
		return "", false
	}
	return entry.Content, true
}

// GetFieldEntry returns the current-version entry for a user field, or nil
// when none exists or the store fails.
func (r *KnowledgeRepository) GetFieldEntry(ctx context.Context, userID, fieldIdentifier string) *knowledge.Entry {
	entry, err := r.store.CurrentByUserField(ctx, userID, fieldIdentifier)
	if err != nil {
		r.logger.Warn("field read degraded to empty",
			zap.String("userId", userID),
			zap.String("field", fieldIdentifier),
			zap.Error(err))
		return nil
	}
	return entry
}

// GetCategoryData returns the current-version entries for one category.
// Store failures degrade to an empty result.
func (r *KnowledgeRepository) GetCategoryData(ctx context.Context, userID string, category knowledge.Category) []knowledge.Entry {
	entries, err := r.store.CurrentByUserCategory(ctx, userID, category)
	if err != nil {
		r.logger.Warn("category read degraded to empty",
			zap.String("userId", userID),
			zap.String("category", string(category)),
			zap.Error(err))
		return nil
	}
	return entries
}

// GetAllUserData returns every current-version entry for the user, keyed by
// field identifier. Store failures degrade to an empty result.
func (r *KnowledgeRepository) GetAllUserData(ctx context.Context, userID string) map[string]knowledge.Entry {
	entries, err := r.store.CurrentByUser(ctx, userID)
	if err != nil {
		r.logger.Warn("user read degraded to empty",
			zap.String("userId", userID),
			zap.Error(err))
		return nil
	}
	out := make(map[string]knowledge.Entry, len(entries))
	for _, e := range entries {
		out[e.FieldIdentifier] = e
	}
	return out
}

// GetFieldHistory returns the full lineage ordered by version descending.
func (r *KnowledgeRepository) GetFieldHistory(ctx context.Context, userID, fieldIdentifier string) ([]knowledge.Entry, error) {
	entries, err := r.store.ByUserField(ctx, userID, fieldIdentifier)
	if err != nil {
		return nil, appErrors.Repository(appErrors.CodeLineageInvariant, "failed to load field history").
			WithUser(userID).WithField(fieldIdentifier).WithCause(err).Build()
	}
	return entries, nil
}

// GetUnsyncedEntries returns every entry awaiting remote confirmation. This
// is the sole recovery path after a crash or restart.
func (r *KnowledgeRepository) GetUnsyncedEntries(ctx context.Context, userID string) ([]knowledge.Entry, error) {
	entries, err := r.store.Unsynced(ctx, userID)
	if err != nil {
		return nil, appErrors.Repository(appErrors.CodeLineageInvariant, "failed to enumerate unsynced entries").
			WithUser(userID).WithCause(err).Build()
	}
	return entries, nil
}

// ============================================================================
// WRITES
// ============================================================================

// SaveField appends a new version to the lineage: the existing current entry
// is demoted and the new entry inserted at version+1, in one transaction.
// The new version carries a fresh CreatedAt; use SaveFieldWithMetadata to
// preserve the lineage's original creation time.
func (r *KnowledgeRepository) SaveField(ctx context.Context, userID, fieldIdentifier, content string, category knowledge.Category) (*knowledge.Entry, error) {
	return r.save(ctx, userID, fieldIdentifier, content, category, nil)
}

// SaveFieldWithMetadata performs the same version transition while attaching
// caller-supplied provenance. The lineage's original CreatedAt is preserved
// on the new version.
func (r *KnowledgeRepository) SaveFieldWithMetadata(ctx context.Context, userID, fieldIdentifier, content string, category knowledge.Category, draft knowledge.Draft) (*knowledge.Entry, error) {
	return r.save(ctx, userID, fieldIdentifier, content, category, &draft)
}

func (r *KnowledgeRepository) save(ctx context.Context, userID, fieldIdentifier, content string, category knowledge.Category, draft *knowledge.Draft) (*knowledge.Entry, error) {
	if !category.Valid() {
		return nil, appErrors.Validation(appErrors.CodeInvalidEntry, "unknown category").
			WithDetails(string(category)).Build()
	}

	current, err := r.store.CurrentByUserField(ctx, userID, fieldIdentifier)
	if err != nil {
		return nil, appErrors.Repository(appErrors.CodeSaveFailed, "failed to load current version").
			WithUser(userID).WithField(fieldIdentifier).WithCause(err).Build()
	}

	now := r.now().UTC()
	next := &knowledge.Entry{
		ID:               uuid.NewString(),
		UserID:           userID,
		FieldIdentifier:  fieldIdentifier,
		Category:         category,
		Content:          content,
		Version:          1,
		IsCurrentVersion: true,
		CreatedAt:        now,
		UpdatedAt:        now,
		LocalChanges:     true,
	}

	var demoted *knowledge.Entry
	if current != nil {
		next.Version = current.Version + 1
		d := *current
		d.IsCurrentVersion = false
		d.UpdatedAt = now
		demoted = &d
	}

	if draft != nil {
		next.Subcategory = draft.Subcategory
		next.StructuredData = draft.StructuredData
		next.Metadata = draft.Metadata
		if current != nil {
			// The metadata-carrying path keeps the lineage's original
			// creation time across versions.
			next.CreatedAt = current.CreatedAt
		}
	}

	if err := r.store.SaveVersionTx(ctx, demoted, next); err != nil {
		return nil, appErrors.Repository(appErrors.CodeSaveFailed, "failed to save field").
			WithUser(userID).WithField(fieldIdentifier).WithCause(err).Build()
	}

	r.logger.Debug("field saved",
		zap.String("userId", userID),
		zap.String("field", fieldIdentifier),
		zap.Int("version", next.Version))
	return next, nil
}

// MarkAsCurrentVersion promotes the given entry to current and demotes every
// sibling in its lineage, in one batch. Fails with ENTRY_NOT_FOUND when the
// id does not resolve.
func (r *KnowledgeRepository) MarkAsCurrentVersion(ctx context.Context, entryID string) error {
	target, err := r.store.Get(ctx, entryID)
	if err != nil {
		return appErrors.Repository(appErrors.CodeSaveFailed, "failed to load entry").
			WithCause(err).Build()
	}
	if target == nil {
		return appErrors.NotFound("entry not found").WithDetails(entryID).Build()
	}

	lineage, err := r.store.ByUserField(ctx, target.UserID, target.FieldIdentifier)
	if err != nil {
		return appErrors.Repository(appErrors.CodeSaveFailed, "failed to load lineage").
			WithUser(target.UserID).WithField(target.FieldIdentifier).WithCause(err).Build()
	}

	now := r.now().UTC()
	for i := range lineage {
		lineage[i].IsCurrentVersion = lineage[i].ID == entryID
		lineage[i].UpdatedAt = now
	}
	if err := r.store.BatchUpdate(ctx, lineage); err != nil {
		return appErrors.Repository(appErrors.CodeSaveFailed, "failed to switch current version").
			WithUser(target.UserID).WithField(target.FieldIdentifier).WithCause(err).Build()
	}
	return nil
}

// MarkAsSynced clears LocalChanges and stamps LastSyncedAt. Idempotent: a
// second call simply re-stamps the timestamp.
func (r *KnowledgeRepository) MarkAsSynced(ctx context.Context, entryID string, syncedAt time.Time) error {
	entry, err := r.store.Get(ctx, entryID)
	if err != nil {
		return appErrors.Repository(appErrors.CodeSaveFailed, "failed to load entry").
			WithCause(err).Build()
	}
	if entry == nil {
		return appErrors.NotFound("entry not found").WithDetails(entryID).Build()
	}

	syncedAt = syncedAt.UTC()
	entry.LocalChanges = false
	entry.LastSyncedAt = &syncedAt
	if err := r.store.Put(ctx, entry); err != nil {
		return appErrors.Repository(appErrors.CodeSaveFailed, "failed to mark entry synced").
			WithUser(entry.UserID).WithField(entry.FieldIdentifier).WithCause(err).Build()
	}
	return nil
}

// ResolveConflict resolves a detected conflict by layering the resolution
// content as a new version. History is never rewritten.
func (r *KnowledgeRepository) ResolveConflict(ctx context.Context, conflict knowledge.Conflict, resolution string) (*knowledge.Entry, error) {
	return r.SaveField(ctx, conflict.UserID, conflict.FieldIdentifier, resolution, conflict.Category)
}

// ClearUserData deletes every version of every field belonging to the user.
// This is the only physical deletion path.
func (r *KnowledgeRepository) ClearUserData(ctx context.Context, userID string) error {
	if err := r.store.DeleteByUser(ctx, userID); err != nil {
		return appErrors.Repository(appErrors.CodeSaveFailed, "failed to purge user data").
			WithUser(userID).WithCause(err).Build()
	}
	r.logger.Info("user data purged", zap.String("userId", userID))
	return nil
}
