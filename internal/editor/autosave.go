package editor

import (
	"context"
	"log"
	"sync"
	"time"

	"slidehub/internal/models"
)

// DefaultAutoSaveInterval is how often the scheduler checks for unsaved work
const DefaultAutoSaveInterval = 15 * time.Second

// Persister writes a document snapshot to durable storage
type Persister interface {
	SaveSnapshot(ctx context.Context, documentID, userID string, doc models.Document) error
}

// AutoSaver periodically persists the engine's current document, decoupled
// from the undo/redo stacks — saving never touches history state.
//
// A tick only writes when the engine's revision moved since the last
// successful save. A failed write is logged and retried on the next tick;
// there is no backoff and no user-facing error, since one lost cycle is
// recovered by the next.
type AutoSaver struct {
	engine    *Engine
	persister Persister
	userID    string
	interval  time.Duration

	mu        sync.Mutex
	lastSaved time.Time
	savedRev  uint64
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewAutoSaver creates a scheduler for one engine. Interval <= 0 takes the
// default.
func NewAutoSaver(engine *Engine, persister Persister, userID string, interval time.Duration) *AutoSaver {
	if interval <= 0 {
		interval = DefaultAutoSaveInterval
	}
	return &AutoSaver{
		engine:    engine,
		persister: persister,
		userID:    userID,
		interval:  interval,
	}
}

// Start launches the save loop. Calling Start twice is a no-op.
func (a *AutoSaver) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})

	go a.run(ctx)
}

// Stop halts the loop after attempting one final save of any unsaved work.
// Idempotent.
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	done := a.done
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	// Final flush so an unmounting editor doesn't lose its last edits.
	// Best effort: failure here is logged like any other missed cycle.
	a.tick(context.Background())
}

// SaveNow persists any unsaved work immediately, outside the tick schedule.
// Used by explicit client save requests. A clean document is a no-op.
func (a *AutoSaver) SaveNow(ctx context.Context) error {
	return a.save(ctx)
}

// LastSaved returns the time of the most recent successful save, readable
// at any time for "saved N minutes ago" display. Zero when nothing has
// been saved yet.
func (a *AutoSaver) LastSaved() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSaved
}

func (a *AutoSaver) run(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// tick persists the current document if the revision moved since the last
// successful save
func (a *AutoSaver) tick(ctx context.Context) {
	if err := a.save(ctx); err != nil {
		log.Printf("⚠️ [AUTOSAVE] Failed to save document: %v (will retry next tick)", err)
	}
}

// save writes the current document when the revision moved since the last
// successful save
func (a *AutoSaver) save(ctx context.Context) error {
	doc, rev := a.engine.Snapshot()

	a.mu.Lock()
	dirty := rev != a.savedRev
	a.mu.Unlock()
	if !dirty {
		return nil
	}

	if err := a.persister.SaveSnapshot(ctx, doc.ID, a.userID, doc); err != nil {
		return err
	}

	a.mu.Lock()
	a.savedRev = rev
	a.lastSaved = time.Now()
	a.mu.Unlock()
	return nil
}
