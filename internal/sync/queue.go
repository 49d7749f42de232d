package sync

import (
	"sort"
	"sync"
	"time"

	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/domain/knowledge"
)

// queueItem is one pending propagation. Items live only in memory; after a
// crash they are rebuilt from entries with LocalChanges still set.
type queueItem struct {
	UserID          string
	FieldIdentifier string
	Content         string
	RetryCount      int
	EnqueuedAt      time.Time
}

func (it queueItem) key() string {
	return knowledge.LineageKey(it.UserID, it.FieldIdentifier)
}

// syncQueue is the associative pending queue keyed by lineage. Re-enqueuing
// a key replaces its pending content and resets the retry count, so within
// one process the last write wins.
type syncQueue struct {
	mu    sync.Mutex
	items map[string]*queueItem
}

func newSyncQueue() *syncQueue {
	return &syncQueue{items: make(map[string]*queueItem)}
}

// Upsert adds or replaces the pending item for the lineage.
func (q *syncQueue) Upsert(userID, fieldIdentifier, content string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := knowledge.LineageKey(userID, fieldIdentifier)
	if existing, ok := q.items[key]; ok {
		existing.Content = content
		existing.RetryCount = 0
		return
	}
	q.items[key] = &queueItem{
		UserID:          userID,
		FieldIdentifier: fieldIdentifier,
		Content:         content,
		EnqueuedAt:      time.Now(),
	}
}

// Oldest returns a copy of the earliest-enqueued item.
func (q *syncQueue) Oldest() (queueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return queueItem{}, false
	}
	keys := make([]string, 0, len(q.items))
	for k := range q.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := q.items[keys[i]], q.items[keys[j]]
		if a.EnqueuedAt.Equal(b.EnqueuedAt) {
			return keys[i] < keys[j]
		}
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	})
	return *q.items[keys[0]], true
}

// RemoveIfUnchanged drops the item only when its content still matches the
// synced snapshot; a replacement that raced the sync stays queued.
func (q *syncQueue) RemoveIfUnchanged(it queueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if existing, ok := q.items[it.key()]; ok && existing.Content == it.Content {
		delete(q.items, it.key())
	}
}

// Remove unconditionally drops the lineage's item.
func (q *syncQueue) Remove(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, key)
}

// Fail increments the retry counter and returns the new count. Failing an
// item that was replaced mid-flight restarts its count from the replacement.
func (q *syncQueue) Fail(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if existing, ok := q.items[key]; ok {
		existing.RetryCount++
		return existing.RetryCount
	}
	return 0
}

// Len returns the number of pending items.
func (q *syncQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
