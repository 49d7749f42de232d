// Package sync implements the background propagation engine: a queue-driven
// drain loop that pushes locally changed entries to the authoritative remote
// store, with bounded retries, conflict detection and connectivity tracking.
package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/domain/knowledge"
	appErrors "github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/errors"
	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/infrastructure/observability"
	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/infrastructure/remote"
)

// Status is the point-in-time result of a sync attempt for one field. It is
// a snapshot returned to the caller, not a pushed subscription.
type Status string

const (
	StatusSynced  Status = "synced"
	StatusSyncing Status = "syncing"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// Repository is the slice of the knowledge repository the engine reads
// through. The engine never serves reads itself and only flips sync state
// via MarkAsSynced.
type Repository interface {
	GetFieldEntry(ctx context.Context, userID, fieldIdentifier string) *knowledge.Entry
	GetAllUserData(ctx context.Context, userID string) map[string]knowledge.Entry
	GetUnsyncedEntries(ctx context.Context, userID string) ([]knowledge.Entry, error)
	MarkAsSynced(ctx context.Context, entryID string, syncedAt time.Time) error
}

// Config tunes the engine's cadence and retry behavior.
type Config struct {
	// DrainInterval is the background safety-net cadence.
	DrainInterval time.Duration
	// MaxRetries bounds consecutive failures before an item is abandoned.
	MaxRetries int
	// BaseDelay seeds the exponential backoff (BaseDelay × 2^retryCount).
	BaseDelay time.Duration
	// ForceSyncTimeout bounds how long ForceSyncAll blocks.
	ForceSyncTimeout time.Duration
	// PollInterval is ForceSyncAll's progress-check cadence.
	PollInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DrainInterval:    5 * time.Second,
		MaxRetries:       3,
		BaseDelay:        time.Second,
		ForceSyncTimeout: 30 * time.Second,
		PollInterval:     500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DrainInterval <= 0 {
		c.DrainInterval = def.DrainInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.ForceSyncTimeout <= 0 {
		c.ForceSyncTimeout = def.ForceSyncTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	return c
}

// Engine owns the pending queue exclusively. One engine instance is built
// per process (or per session in a multi-session server) and injected
// through the application container; there is no package-level singleton.
type Engine struct {
	repo    Repository
	remote  remote.Store
	monitor Monitor
	policy  ConflictPolicy
	cfg     Config
	logger  *zap.Logger
	metrics *observability.Collector

	queue *syncQueue

	// drainMu guards the single-drain-at-a-time invariant. The original
	// design used a cooperative flag on one logical thread; goroutines need
	// the real lock.
	drainMu  sync.Mutex
	draining bool

	runMu       sync.Mutex
	running     bool
	stopCh      chan struct{}
	done        chan struct{}
	intervalCh  chan time.Duration
	unsubscribe func()
}

// NewEngine wires the engine. Policy defaults to local-first when nil.
func NewEngine(repo Repository, remoteStore remote.Store, monitor Monitor, policy ConflictPolicy, cfg Config, logger *zap.Logger, metrics *observability.Collector) *Engine {
	if policy == nil {
		policy = LocalFirstPolicy{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		repo:       repo,
		remote:     remoteStore,
		monitor:    monitor,
		policy:     policy,
		cfg:        cfg.withDefaults(),
		logger:     logger.Named("syncengine"),
		metrics:    metrics,
		queue:      newSyncQueue(),
		intervalCh: make(chan time.Duration, 1),
	}
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start launches the background drain ticker and wires connectivity
// transitions into the drain trigger, so an offline→online edge resumes
// syncing immediately instead of waiting out the ticker.
func (e *Engine) Start() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})

	e.unsubscribe = e.monitor.OnConnectionChange(func(online bool) {
		if online {
			go e.ProcessQueue(context.Background())
		}
	})

	go e.run()
}

// Stop halts the ticker and the connectivity subscription. In-flight remote
// calls are not cancelled; an entry may still be marked synced after Stop.
func (e *Engine) Stop() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	close(e.stopCh)
	<-e.done
}

// SetDrainInterval adjusts the background cadence of a running engine.
func (e *Engine) SetDrainInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	e.runMu.Lock()
	e.cfg.DrainInterval = d
	running := e.running
	e.runMu.Unlock()
	if !running {
		return
	}
	select {
	case e.intervalCh <- d:
	default:
	}
}

func (e *Engine) run() {
	defer close(e.done)
	ticker := time.NewTicker(e.cfg.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case d := <-e.intervalCh:
			ticker.Reset(d)
		case <-ticker.C:
			e.ProcessQueue(context.Background())
		}
	}
}

// ============================================================================
// QUEUEING AND DRAINING
// ============================================================================

// IsOnline reflects platform reachability.
func (e *Engine) IsOnline() bool {
	return e.monitor.IsOnline()
}

// OnConnectionChange exposes the monitor's edge-triggered transitions.
func (e *Engine) OnConnectionChange(fn func(online bool)) func() {
	return e.monitor.OnConnectionChange(fn)
}

// QueueSync upserts a pending item and, when online, kicks a non-blocking
// drain attempt.
func (e *Engine) QueueSync(userID, fieldIdentifier, content string) {
	e.queue.Upsert(userID, fieldIdentifier, content)
	e.metrics.SetQueueDepth(e.queue.Len())

	if e.monitor.IsOnline() {
		go e.ProcessQueue(context.Background())
	}
}

// QueueLen reports the number of pending items.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// ProcessQueue runs one drain pass. Only one pass runs at a time; a second
// caller returns immediately. Backoff between failed attempts pauses only
// this pass, never the rest of the system.
func (e *Engine) ProcessQueue(ctx context.Context) {
	e.drainMu.Lock()
	if e.draining {
		e.drainMu.Unlock()
		return
	}
	e.draining = true
	e.drainMu.Unlock()
	defer func() {
		e.drainMu.Lock()
		e.draining = false
		e.drainMu.Unlock()
		e.metrics.SetQueueDepth(e.queue.Len())
	}()

	for {
		if ctx.Err() != nil || !e.monitor.IsOnline() {
			return
		}
		item, ok := e.queue.Oldest()
		if !ok {
			return
		}

		err := e.performSync(ctx, item)
		if err == nil {
			e.queue.RemoveIfUnchanged(item)
			e.metrics.ObserveSync("success")
			e.metrics.SetQueueDepth(e.queue.Len())
			continue
		}

		e.metrics.ObserveSync("failure")
		retries := e.queue.Fail(item.key())
		if retries >= e.cfg.MaxRetries {
			// Abandon: the entry keeps LocalChanges set, so it stays
			// discoverable by the next SyncAllFields scan or restart.
			e.queue.Remove(item.key())
			e.metrics.IncAbandoned()
			e.metrics.SetQueueDepth(e.queue.Len())
			e.logger.Error("sync item abandoned after max retries",
				zap.String("userId", item.UserID),
				zap.String("field", item.FieldIdentifier),
				zap.Int("retries", retries),
				zap.Error(err))
			continue
		}

		delay := e.cfg.BaseDelay * (1 << retries)
		e.logger.Warn("sync attempt failed, backing off",
			zap.String("userId", item.UserID),
			zap.String("field", item.FieldIdentifier),
			zap.Int("retry", retries),
			zap.Duration("backoff", delay),
			zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// performSync pushes one item: look up the remote current row, update it if
// present, insert otherwise, then clear the local dirty flag. The
// lookup-then-write is not a conditional upsert; two processes can race on
// the same field.
func (e *Engine) performSync(ctx context.Context, item queueItem) error {
	entry := e.repo.GetFieldEntry(ctx, item.UserID, item.FieldIdentifier)
	if entry == nil {
		// Lineage purged since enqueue; nothing left to propagate.
		return nil
	}

	record := remote.Record{
		UserID:          item.UserID,
		FieldIdentifier: item.FieldIdentifier,
		Category:        string(entry.Category),
		Content:         item.Content,
		Version:         entry.Version,
		IsCurrent:       true,
		UpdatedAt:       entry.UpdatedAt,
	}

	existing, err := e.remote.FindCurrent(ctx, item.UserID, item.FieldIdentifier)
	switch {
	case err == remote.ErrNotFound:
		err = e.remote.Insert(ctx, record)
	case err != nil:
		return err
	default:
		err = e.remote.Update(ctx, existing.ID, record)
	}
	if err != nil {
		return err
	}

	return e.repo.MarkAsSynced(ctx, entry.ID, time.Now().UTC())
}

// ============================================================================
// FOREGROUND PATHS
// ============================================================================

// SyncField is the synchronous single-field path. Offline enqueues and
// reports offline without touching the network; a remote failure enqueues
// for background retry and reports error; success reports synced.
func (e *Engine) SyncField(ctx context.Context, userID, fieldIdentifier, content string) (Status, error) {
	if !e.monitor.IsOnline() {
		e.queue.Upsert(userID, fieldIdentifier, content)
		e.metrics.SetQueueDepth(e.queue.Len())
		return StatusOffline, nil
	}

	item := queueItem{UserID: userID, FieldIdentifier: fieldIdentifier, Content: content}
	if err := e.performSync(ctx, item); err != nil {
		e.QueueSync(userID, fieldIdentifier, content)
		e.metrics.ObserveSync("failure")
		return StatusError, appErrors.Sync(appErrors.CodeRemoteFailed, "foreground sync failed").
			WithUser(userID).WithField(fieldIdentifier).WithCause(err).Build()
	}
	e.metrics.ObserveSync("success")
	return StatusSynced, nil
}

// SyncAllFields enumerates unsynced entries, enqueues them and fires one
// non-blocking drain.
func (e *Engine) SyncAllFields(ctx context.Context, userID string) error {
	entries, err := e.repo.GetUnsyncedEntries(ctx, userID)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		e.queue.Upsert(entry.UserID, entry.FieldIdentifier, entry.Content)
	}
	e.metrics.SetQueueDepth(e.queue.Len())
	go e.ProcessQueue(context.Background())
	return nil
}

// ForceSyncAll is the synchronization barrier: it blocks, polling at a fixed
// interval, until the user has no unsynced entries or the timeout elapses.
// The timeout only stops this caller from waiting; an in-flight remote call
// may still complete afterwards.
func (e *Engine) ForceSyncAll(ctx context.Context, userID string) error {
	if err := e.SyncAllFields(ctx, userID); err != nil {
		return err
	}

	deadline := time.NewTimer(e.cfg.ForceSyncTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return appErrors.Sync(appErrors.CodeSyncTimeout, "force sync cancelled").
				WithUser(userID).WithCause(ctx.Err()).Build()
		case <-deadline.C:
			return appErrors.Sync(appErrors.CodeSyncTimeout, "force sync timed out").
				WithUser(userID).
				WithDetails("remote store did not confirm all writes in time").Build()
		case <-ticker.C:
			pending, err := e.repo.GetUnsyncedEntries(ctx, userID)
			if err != nil {
				continue
			}
			if len(pending) == 0 {
				return nil
			}
			// Abandoned items are re-enqueued by re-scanning; anything
			// already queued keeps its pending content.
			if e.queue.Len() == 0 {
				for _, entry := range pending {
					e.queue.Upsert(entry.UserID, entry.FieldIdentifier, entry.Content)
				}
			}
			go e.ProcessQueue(context.Background())
		}
	}
}

// ============================================================================
// CONFLICTS
// ============================================================================

// CheckForConflicts compares every local current entry against the remote
// current row for the same lineage. A conflict is reported when both the
// version and the content diverge. Detection is advisory; nothing is
// resolved here.
func (e *Engine) CheckForConflicts(ctx context.Context, userID string) ([]knowledge.Conflict, error) {
	locals := e.repo.GetAllUserData(ctx, userID)

	var conflicts []knowledge.Conflict
	for _, local := range locals {
		rem, err := e.remote.FindCurrent(ctx, local.UserID, local.FieldIdentifier)
		if err == remote.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, appErrors.Sync(appErrors.CodeRemoteFailed, "conflict check failed").
				WithUser(userID).WithField(local.FieldIdentifier).WithCause(err).Build()
		}
		if rem.Version == local.Version || rem.Content == local.Content {
			continue
		}

		conflict := knowledge.Conflict{
			UserID:              local.UserID,
			FieldIdentifier:     local.FieldIdentifier,
			Category:            local.Category,
			LocalVersion:        local.Version,
			RemoteVersion:       rem.Version,
			LocalContent:        local.Content,
			RemoteContent:       rem.Content,
			LocalUpdatedAt:      local.UpdatedAt,
			RemoteUpdatedAt:     rem.UpdatedAt,
			DetectedAt:          time.Now().UTC(),
			SuggestedResolution: e.policy.Resolve(local, *rem),
		}
		conflicts = append(conflicts, conflict)
		e.metrics.IncConflicts()
		e.logger.Info("conflict detected",
			zap.String("userId", local.UserID),
			zap.String("field", local.FieldIdentifier),
			zap.Int("localVersion", local.Version),
			zap.Int("remoteVersion", rem.Version))
	}
	return conflicts, nil
}
