package presence

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"slidehub/internal/models"
)

// DefaultCursorInterval is the minimum spacing between cursor writes to the
// session store. Pointer movement produces far more events than the store
// should see.
const DefaultCursorInterval = 150 * time.Millisecond

// Broadcaster throttles cursor-position writes on top of a session handle.
//
// Leading-edge updates pass through immediately; updates arriving faster
// than the interval are conflated into a single pending position flushed by
// a trailing timer, so the final resting position always lands. Focused-
// slide changes bypass the conflation — they are rare and must never be
// dropped in favor of a newer cursor move.
type Broadcaster struct {
	handle  *SessionHandle
	limiter *rate.Limiter

	mu      sync.Mutex
	pending *models.CursorPosition
	timer   *time.Timer
	stopped bool
}

// NewBroadcaster wraps a handle with cursor throttling. Interval <= 0 takes
// the default. A nil handle (presence unavailable) yields a broadcaster
// whose methods are no-ops, so callers need no nil checks.
func NewBroadcaster(handle *SessionHandle, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = DefaultCursorInterval
	}
	return &Broadcaster{
		handle:  handle,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Cursor records a pointer position. Within the rate limit it writes
// through immediately; above it the position is conflated and flushed when
// the interval elapses.
func (b *Broadcaster) Cursor(ctx context.Context, pos models.CursorPosition) {
	if b.handle == nil {
		return
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	if b.limiter.Allow() {
		b.pending = nil
		b.mu.Unlock()
		b.handle.UpdateCursor(ctx, pos)
		return
	}

	b.pending = &pos
	if b.timer == nil {
		interval := time.Duration(float64(time.Second) / float64(b.limiter.Limit()))
		b.timer = time.AfterFunc(interval, b.flush)
	}
	b.mu.Unlock()
}

// FocusedSlide forwards a focused-slide change immediately
func (b *Broadcaster) FocusedSlide(ctx context.Context, index int) {
	if b.handle == nil {
		return
	}
	b.handle.UpdateFocusedSlide(ctx, index)
}

// Stop drops any pending flush. Safe to call more than once.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// flush sends the most recent conflated position
func (b *Broadcaster) flush() {
	b.mu.Lock()
	pos := b.pending
	b.pending = nil
	b.timer = nil
	stopped := b.stopped
	b.mu.Unlock()

	if pos == nil || stopped {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	b.handle.UpdateCursor(ctx, *pos)
}
