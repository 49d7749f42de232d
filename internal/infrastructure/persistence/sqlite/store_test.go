package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/domain/knowledge"
	appErrors "github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{Path: ":memory:", Namespace: "test"}, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func newEntry(userID, field, content string, version int, current bool) knowledge.Entry {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return knowledge.Entry{
		ID:               uuid.NewString(),
		UserID:           userID,
		FieldIdentifier:  field,
		Category:         knowledge.CategoryAvatar,
		Content:          content,
		Version:          version,
		IsCurrentVersion: current,
		CreatedAt:        now,
		UpdatedAt:        now,
		LocalChanges:     true,
	}
}

func TestStore_NotInitializedGuard(t *testing.T) {
	store, err := New(Config{Path: ":memory:", Namespace: "test"}, zaptest.NewLogger(t), nil)
	require.NoError(t, err)

	ctx := context.Background()
	entry := newEntry("u1", "f1", "x", 1, true)

	err = store.Put(ctx, &entry)
	assert.Equal(t, appErrors.CodeStoreNotInitialized, appErrors.CodeOf(err))

	_, err = store.Get(ctx, "any")
	assert.Equal(t, appErrors.CodeStoreNotInitialized, appErrors.CodeOf(err))

	_, err = store.Unsynced(ctx, "u1")
	assert.Equal(t, appErrors.CodeStoreNotInitialized, appErrors.CodeOf(err))

	assert.False(t, store.IsConnected())
}

func TestStore_InvalidNamespace(t *testing.T) {
	_, err := New(Config{Path: ":memory:", Namespace: "bad; DROP TABLE"}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeStoreInit, appErrors.CodeOf(err))
}

func TestStore_PutGetRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := newEntry("u1", "brand_promise", "We deliver", 1, true)
	entry.Subcategory = "positioning"
	entry.StructuredData = []byte(`{"tone":"bold"}`)
	entry.Metadata = knowledge.Metadata{Source: "chat", Confidence: 0.8, DeviceID: "dev-1"}

	require.NoError(t, store.Put(ctx, &entry))

	got, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Content, got.Content)
	assert.Equal(t, entry.Subcategory, got.Subcategory)
	assert.JSONEq(t, string(entry.StructuredData), string(got.StructuredData))
	assert.Equal(t, entry.Metadata, got.Metadata)
	assert.True(t, got.IsCurrentVersion)
	assert.True(t, got.LocalChanges)
	assert.Nil(t, got.LastSyncedAt)
	assert.Equal(t, entry.CreatedAt, got.CreatedAt)
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_PutRejectsInvalidEntry(t *testing.T) {
	store := newTestStore(t)

	entry := newEntry("u1", "f1", "x", 1, true)
	entry.Category = "nonsense"
	err := store.Put(context.Background(), &entry)
	assert.Equal(t, appErrors.CodeInvalidEntry, appErrors.CodeOf(err))
}

func TestStore_IndexedLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e1 := newEntry("u1", "avatar_name", "John", 1, false)
	e2 := newEntry("u1", "avatar_name", "Jane", 2, true)
	e3 := newEntry("u1", "brand_promise", "Bold", 1, true)
	e3.Category = knowledge.CategoryCopy
	e4 := newEntry("u2", "avatar_name", "Ann", 1, true)
	for _, e := range []*knowledge.Entry{&e1, &e2, &e3, &e4} {
		require.NoError(t, store.Put(ctx, e))
	}

	byUser, err := store.ByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, byUser, 3)

	byField, err := store.ByField(ctx, "avatar_name")
	require.NoError(t, err)
	assert.Len(t, byField, 3)

	lineage, err := store.ByUserField(ctx, "u1", "avatar_name")
	require.NoError(t, err)
	require.Len(t, lineage, 2)
	assert.Equal(t, 2, lineage[0].Version)
	assert.Equal(t, 1, lineage[1].Version)

	byCat, err := store.ByCategory(ctx, knowledge.CategoryCopy)
	require.NoError(t, err)
	require.Len(t, byCat, 1)
	assert.Equal(t, "brand_promise", byCat[0].FieldIdentifier)

	byUserCat, err := store.ByUserCategory(ctx, "u1", knowledge.CategoryAvatar)
	require.NoError(t, err)
	assert.Len(t, byUserCat, 2)

	current, err := store.CurrentByUserField(ctx, "u1", "avatar_name")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "Jane", current.Content)

	currentAll, err := store.CurrentByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, currentAll, 2)

	currentCat, err := store.CurrentByUserCategory(ctx, "u1", knowledge.CategoryAvatar)
	require.NoError(t, err)
	require.Len(t, currentCat, 1)
	assert.Equal(t, "Jane", currentCat[0].Content)
}

func TestStore_Unsynced(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pending := newEntry("u1", "f1", "x", 1, true)
	synced := newEntry("u1", "f2", "y", 1, true)
	synced.LocalChanges = false
	ts := time.Now().UTC().Truncate(time.Millisecond)
	synced.LastSyncedAt = &ts
	require.NoError(t, store.Put(ctx, &pending))
	require.NoError(t, store.Put(ctx, &synced))

	unsynced, err := store.Unsynced(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, pending.ID, unsynced[0].ID)
}

func TestStore_Query(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newEntry("u1", "f1", "short", 1, true)
	b := newEntry("u1", "f2", "much longer content", 1, true)
	require.NoError(t, store.Put(ctx, &a))
	require.NoError(t, store.Put(ctx, &b))

	long, err := store.Query(ctx, func(e *knowledge.Entry) bool {
		return len(e.Content) > 10
	})
	require.NoError(t, err)
	require.Len(t, long, 1)
	assert.Equal(t, "f2", long[0].FieldIdentifier)

	all, err := store.Query(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_BatchUpdateAllOrNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	good := newEntry("u1", "f1", "x", 1, true)
	bad := newEntry("u1", "f2", "y", 0, true) // invalid version

	err := store.BatchUpdate(ctx, []knowledge.Entry{good, bad})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeStoreBatch, appErrors.CodeOf(err))

	// Nothing from the failed batch may be visible.
	got, err := store.Get(ctx, good.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SaveVersionTx(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v1 := newEntry("u1", "f1", "first", 1, true)
	require.NoError(t, store.SaveVersionTx(ctx, nil, &v1))

	demoted := v1
	demoted.IsCurrentVersion = false
	v2 := newEntry("u1", "f1", "second", 2, true)
	require.NoError(t, store.SaveVersionTx(ctx, &demoted, &v2))

	current, err := store.CurrentByUserField(ctx, "u1", "f1")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 2, current.Version)

	lineage, err := store.ByUserField(ctx, "u1", "f1")
	require.NoError(t, err)
	assert.Len(t, lineage, 2)
}

func TestStore_SaveVersionTxRollsBackOnInsertFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v1 := newEntry("u1", "f1", "first", 1, true)
	require.NoError(t, store.SaveVersionTx(ctx, nil, &v1))

	// Reusing the v1 primary key forces the insert half to fail; the
	// demotion must roll back with it.
	demoted := v1
	demoted.IsCurrentVersion = false
	dup := newEntry("u1", "f1", "second", 2, true)
	dup.ID = v1.ID
	err := store.SaveVersionTx(ctx, &demoted, &dup)
	require.Error(t, err)

	current, err := store.CurrentByUserField(ctx, "u1", "f1")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 1, current.Version)
}

func TestStore_DeleteAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e1 := newEntry("u1", "f1", "x", 1, true)
	e2 := newEntry("u2", "f1", "y", 1, true)
	require.NoError(t, store.Put(ctx, &e1))
	require.NoError(t, store.Put(ctx, &e2))

	require.NoError(t, store.Delete(ctx, e1.ID))
	got, err := store.Get(ctx, e1.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.DeleteByUser(ctx, "u2"))
	left, err := store.ByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, left)

	require.NoError(t, store.Put(ctx, &e1))
	require.NoError(t, store.Clear(ctx))
	all, err := store.Query(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_SchemaVersionStamped(t *testing.T) {
	dir := t.TempDir()
	store, err := New(Config{Path: dir + "/engine.db", Namespace: "test", SchemaVersion: 3},
		zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	require.NoError(t, store.Close())

	// Re-open: schema already at version 3, initialize must be a no-op.
	store2, err := New(Config{Path: dir + "/engine.db", Namespace: "test", SchemaVersion: 3},
		zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	require.NoError(t, store2.Initialize(context.Background()))
	assert.True(t, store2.IsConnected())
	require.NoError(t, store2.Close())
	assert.False(t, store2.IsConnected())
}
