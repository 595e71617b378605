package engine

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/xiaoyuanzhu-com/sessiond/engine/models"
	"github.com/xiaoyuanzhu-com/sessiond/log"
)

// Options configures an Engine. All state is owned by the instance, so tests
// can run several independent engines side by side.
type Options struct {
	RootDir      string
	SnapshotPath string

	DebounceWindow time.Duration
	ReadRetries    int
	ReadBackoff    time.Duration

	ToolBinary      string
	InvokeTimeout   time.Duration
	KillGracePeriod time.Duration

	// WatchService overrides the fsnotify default (tests inject a fake).
	WatchService WatchService
}

// Engine is the session replication and lifecycle-control core. It keeps the
// authoritative index of transcripts in sync with disk, decides when clients
// hear about sessions, and guards concurrent access to the external tool.
type Engine struct {
	opts Options

	store       *Store
	debouncer   *Debouncer
	coordinator *Coordinator
	locks       *LockRegistry
	supervisor  *Supervisor
	watcher     *Watcher

	// Per-file byte offset last consumed, independent of debounce decisions.
	cursorMu sync.Mutex
	cursors  map[string]int64
}

// New creates an engine delivering through callbacks. Call Initialize and
// then Start.
func New(opts Options, callbacks Callbacks) *Engine {
	if opts.DebounceWindow == 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}
	if opts.ReadRetries == 0 {
		opts.ReadRetries = 3
	}
	if opts.KillGracePeriod == 0 {
		opts.KillGracePeriod = 5 * time.Second
	}

	return &Engine{
		opts:        opts,
		store:       NewStore(opts.SnapshotPath, opts.RootDir),
		debouncer:   NewDebouncer(opts.DebounceWindow),
		coordinator: NewCoordinator(callbacks),
		locks:       NewLockRegistry(),
		supervisor:  NewSupervisor(opts.ToolBinary, opts.KillGracePeriod),
		cursors:     make(map[string]int64),
	}
}

// Initialize loads the persisted snapshot and reconciles it against disk:
// a valid snapshot is adopted (stale entries refreshed), anything else
// triggers a full rebuild. Afterwards the in-memory index exactly reflects
// one of {valid snapshot, fresh rebuild}, persisted either way.
func (e *Engine) Initialize() error {
	idx, err := e.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("snapshot unreadable, rebuilding index from disk")
		idx = nil
	}

	if idx != nil && e.store.Validate(idx) {
		e.refreshStale(idx)
		if err := e.store.Adopt(idx); err != nil {
			return fmt.Errorf("failed to persist adopted snapshot: %w", err)
		}
		log.Info().Int("sessionCount", len(idx)).Msg("session index loaded from snapshot")
	} else {
		rebuilt := e.scanAll()
		if err := e.store.Adopt(rebuilt); err != nil {
			return fmt.Errorf("failed to persist rebuilt index: %w", err)
		}
		log.Info().Int("sessionCount", len(rebuilt)).Msg("session index rebuilt from disk")
	}

	// Seed cursors so the first modification event parses only new bytes.
	for _, meta := range e.store.All() {
		if info, err := os.Stat(meta.FullPath); err == nil {
			e.setCursor(meta.ID, info.Size())
		}
	}
	return nil
}

// Start launches the filesystem watcher. Initialize must have run.
func (e *Engine) Start() error {
	svc := e.opts.WatchService
	if svc == nil {
		var err error
		svc, err = NewFSNotifyService()
		if err != nil {
			return fmt.Errorf("failed to create watch service: %w", err)
		}
	}

	e.watcher = NewWatcher(svc, e.opts.RootDir, e)
	return e.watcher.Start()
}

// Shutdown stops the watcher and kills in-flight invocations.
func (e *Engine) Shutdown() {
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close watch service")
		}
		e.watcher.Wait()
	}
	e.supervisor.Shutdown()
	log.Info().Msg("engine shut down")
}

// =============================================================================
// Queries and control surface
// =============================================================================

// Sessions returns copies of every indexed session.
func (e *Engine) Sessions() []*SessionMetadata {
	return e.store.All()
}

// Session returns the indexed metadata for id.
func (e *Engine) Session(id string) (*SessionMetadata, error) {
	canonical, ok := CanonicalSessionID(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	meta, ok := e.store.Get(canonical)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return meta, nil
}

// Messages reads the session's full transcript. visibleOnly drops internal
// bookkeeping records.
func (e *Engine) Messages(id string, visibleOnly bool) ([]models.SessionMessageI, error) {
	meta, err := e.Session(id)
	if err != nil {
		return nil, err
	}

	msgs, err := readTranscript(meta.FullPath, meta.ID)
	if err != nil {
		return nil, err
	}
	if visibleOnly {
		return FilterVisible(msgs), nil
	}
	return msgs, nil
}

// Subscribe permits update notifications for the session.
func (e *Engine) Subscribe(id string) { e.coordinator.Subscribe(e.canonicalOrRaw(id)) }

// Unsubscribe stops update notifications for the session.
func (e *Engine) Unsubscribe(id string) { e.coordinator.Unsubscribe(e.canonicalOrRaw(id)) }

// TryAcquireLock attempts to take the session's invocation lock.
func (e *Engine) TryAcquireLock(id string) bool { return e.locks.TryAcquire(e.canonicalOrRaw(id)) }

// ReleaseLock releases the session's invocation lock. Idempotent.
func (e *Engine) ReleaseLock(id string) { e.locks.Release(e.canonicalOrRaw(id)) }

// IsLocked reports whether the session's invocation lock is held.
func (e *Engine) IsLocked(id string) bool { return e.locks.IsLocked(e.canonicalOrRaw(id)) }

// Kill terminates the session's live external process, if any.
func (e *Engine) Kill(id string) error { return e.supervisor.Kill(e.canonicalOrRaw(id)) }

// Invoke runs the external tool for a session under its lock, releasing it
// when the invocation concludes. Returns ErrLockHeld without invoking when
// another caller holds the lock.
func (e *Engine) Invoke(req InvokeRequest, onDone OnDone, timeout time.Duration) error {
	id := e.canonicalOrRaw(req.SessionID)
	req.SessionID = id

	if !e.locks.TryAcquire(id) {
		return ErrLockHeld
	}
	if timeout == 0 {
		timeout = e.opts.InvokeTimeout
	}

	e.supervisor.InvokeAsync(req, func(result InvokeResult) {
		e.locks.Release(id)
		onDone(result)
	}, timeout)
	return nil
}

func (e *Engine) canonicalOrRaw(id string) string {
	if canonical, ok := CanonicalSessionID(id); ok {
		return canonical
	}
	return id
}

// =============================================================================
// Watcher handlers (FileHandler)
// =============================================================================

// OnCreated builds full metadata for a new transcript, upserts and persists
// it, seeds the read cursor to the current file size, and decides whether the
// creation notification fires now or is deferred.
func (e *Engine) OnCreated(path string) {
	id, ok := sessionIDFromPath(path)
	if !ok {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("created transcript vanished before processing")
		return
	}

	// Parse from offset zero through the incremental reader so the cursor
	// lands exactly on the bytes consumed. Lines the tool appends while
	// this handler runs are left for the following modify event instead of
	// being counted twice.
	msgs, cursor, err := readNewLines(path, id, 0)
	if err != nil && !errors.Is(err, errPartialLine) {
		log.Warn().Err(err).Str("sessionId", id).Msg("failed to read new transcript, indexing empty")
		msgs, cursor = nil, 0
	}

	meta := buildMetadata(id, path, msgs, info.ModTime())
	if err := e.store.Upsert(meta); err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("failed to persist index after creation")
	}

	// Later modifications parse only bytes past this point.
	e.setCursor(id, cursor)

	if e.coordinator.SessionCreated(meta) {
		if err := e.store.Upsert(meta); err != nil {
			log.Error().Err(err).Str("sessionId", id).Msg("failed to persist notified flag")
		}
	}

	log.Debug().Str("sessionId", id).Int("messageCount", meta.MessageCount).Bool("notified", meta.Notified).Msg("transcript indexed")
}

// OnModified incrementally parses newly appended bytes for a tracked
// transcript, updating counters and firing the deferred creation
// notification on the 0→N transition.
func (e *Engine) OnModified(path string) {
	id, ok := sessionIDFromPath(path)
	if !ok {
		return
	}

	meta, exists := e.store.Get(id)
	if !exists {
		// Only modifications to tracked sessions are processed.
		return
	}

	if !e.debouncer.Accept(id) {
		return
	}

	cursor := e.getCursor(id)

	var msgs []models.SessionMessageI
	var newCursor int64

	// The external tool writes non-atomically; a read landing mid-line is
	// retried a few times before being treated as "no new data this pass".
	r := newRetrier(e.opts.ReadRetries, e.opts.ReadBackoff)
	err := r.Do(func() error {
		var readErr error
		msgs, newCursor, readErr = readNewLines(path, id, cursor)
		return readErr
	})
	if err != nil {
		if errors.Is(err, errCursorPastEOF) {
			// Truncation is outside the append-only contract; resync the
			// cursor and wait for the next event.
			if info, statErr := os.Stat(path); statErr == nil {
				e.setCursor(id, info.Size())
			}
			log.Warn().Str("sessionId", id).Msg("transcript shrank, cursor resynced")
			return
		}
		log.Debug().Err(err).Str("sessionId", id).Msg("no complete new lines this pass")
		return
	}

	e.setCursor(id, newCursor)
	if len(msgs) == 0 {
		return
	}

	visible := FilterVisible(msgs)

	// Summaries arrive as control records but still improve the display name.
	for _, msg := range msgs {
		if summaryMsg, ok := msg.(*models.SummarySessionMessage); ok && summaryMsg.Summary != "" {
			meta.DisplayName = summaryMsg.Summary
		}
	}

	if len(visible) == 0 {
		if err := e.store.Upsert(meta); err != nil {
			log.Error().Err(err).Str("sessionId", id).Msg("failed to persist index after update")
		}
		return
	}

	oldCount := meta.MessageCount

	if info, err := os.Stat(path); err == nil {
		meta.Modified = info.ModTime()
	}
	applyVisible(meta, visible)
	if meta.DisplayName == "" || meta.DisplayName == untitledDisplayName {
		meta.DisplayName = displayName("", meta.FirstMessage)
	}

	if err := e.store.Upsert(meta); err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("failed to persist index after update")
	}

	if e.coordinator.SessionUpdated(meta, oldCount, visible) {
		// Deferred creation fired; persist the notified flag.
		if err := e.store.Upsert(meta); err != nil {
			log.Error().Err(err).Str("sessionId", id).Msg("failed to persist notified flag")
		}
	}
}

// OnDeleted removes the session from the index and notifies unconditionally.
func (e *Engine) OnDeleted(path string) {
	id, ok := sessionIDFromPath(path)
	if !ok {
		return
	}

	if err := e.store.Remove(id); err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("failed to persist index after deletion")
	}
	e.clearCursor(id)
	e.debouncer.Forget(id)

	e.coordinator.SessionDeleted(id)
	log.Debug().Str("sessionId", id).Msg("transcript removed from index")
}

// =============================================================================
// Rebuild and reconciliation
// =============================================================================

// scanAll walks every project subdirectory and builds a fresh index.
// Sessions found during a cold scan predate this process, so entries with
// visible messages are marked notified without firing callbacks.
func (e *Engine) scanAll() Index {
	idx := make(Index)

	for id, path := range listTranscripts(e.opts.RootDir) {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		msgs, err := readTranscript(path, id)
		if err != nil {
			log.Warn().Err(err).Str("sessionId", id).Msg("failed to read transcript during scan")
			continue
		}
		meta := buildMetadata(id, path, msgs, info.ModTime())
		meta.Notified = meta.MessageCount > 0
		idx[id] = meta
	}
	return idx
}

// refreshStale re-parses snapshot entries whose transcript changed after the
// snapshot was written, preserving the monotonic notified flag and count.
func (e *Engine) refreshStale(idx Index) {
	for id, meta := range idx {
		info, err := os.Stat(meta.FullPath)
		if err != nil || !info.ModTime().After(meta.Modified) {
			continue
		}

		msgs, err := readTranscript(meta.FullPath, id)
		if err != nil {
			continue
		}

		fresh := buildMetadata(id, meta.FullPath, msgs, info.ModTime())
		fresh.Notified = meta.Notified || fresh.MessageCount > 0
		fresh.FirstNotifiedAt = meta.FirstNotifiedAt
		if fresh.MessageCount < meta.MessageCount {
			fresh.MessageCount = meta.MessageCount
		}
		idx[id] = fresh
		log.Debug().Str("sessionId", id).Msg("refreshed stale snapshot entry")
	}
}

// =============================================================================
// Cursor bookkeeping
// =============================================================================

func (e *Engine) getCursor(id string) int64 {
	e.cursorMu.Lock()
	defer e.cursorMu.Unlock()
	return e.cursors[id]
}

func (e *Engine) setCursor(id string, offset int64) {
	e.cursorMu.Lock()
	e.cursors[id] = offset
	e.cursorMu.Unlock()
}

func (e *Engine) clearCursor(id string) {
	e.cursorMu.Lock()
	delete(e.cursors, id)
	e.cursorMu.Unlock()
}
