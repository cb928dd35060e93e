package presence

import (
	"context"
	"testing"
	"time"

	"slidehub/internal/models"
)

func newTestHandle(t *testing.T, store *fakeStore) *SessionHandle {
	t.Helper()
	m := NewManager(store, &fakeChannel{})
	h, err := m.Join(context.Background(), "doc-1", testIdentity(), "tab-1", nil)
	if err != nil || h == nil {
		t.Fatalf("join failed: %v", err)
	}
	t.Cleanup(func() { h.Leave(context.Background()) })
	return h
}

func storedCursor(store *fakeStore) *models.CursorPosition {
	rows, _ := store.ListByDocument(context.Background(), "doc-1")
	for _, row := range rows {
		if row.TabID == "tab-1" {
			return row.CursorPosition
		}
	}
	return nil
}

func TestBroadcasterLeadingEdgePassesThrough(t *testing.T) {
	store := newFakeStore()
	h := newTestHandle(t, store)
	b := NewBroadcaster(h, 50*time.Millisecond)
	defer b.Stop()

	b.Cursor(context.Background(), models.CursorPosition{X: 1, Y: 1})

	pos := storedCursor(store)
	if pos == nil || pos.X != 1 {
		t.Fatalf("first cursor update should write through immediately, got %+v", pos)
	}
}

func TestBroadcasterConflatesBurstAndFlushesLast(t *testing.T) {
	store := newFakeStore()
	h := newTestHandle(t, store)
	b := NewBroadcaster(h, 50*time.Millisecond)
	defer b.Stop()

	// Burst well above the rate: only the first passes, the rest conflate
	for i := 1; i <= 10; i++ {
		b.Cursor(context.Background(), models.CursorPosition{X: float64(i), Y: float64(i)})
	}

	pos := storedCursor(store)
	if pos == nil || pos.X != 1 {
		t.Fatalf("only the leading update should land immediately, got %+v", pos)
	}

	// The trailing flush delivers the final resting position
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p := storedCursor(store); p != nil && p.X == 10 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("final position never flushed, got %+v", storedCursor(store))
}

func TestBroadcasterStopDropsPendingFlush(t *testing.T) {
	store := newFakeStore()
	h := newTestHandle(t, store)
	b := NewBroadcaster(h, 50*time.Millisecond)

	b.Cursor(context.Background(), models.CursorPosition{X: 1})
	b.Cursor(context.Background(), models.CursorPosition{X: 2})
	b.Stop()

	time.Sleep(100 * time.Millisecond)
	if pos := storedCursor(store); pos == nil || pos.X != 1 {
		t.Errorf("stopped broadcaster must not flush, got %+v", pos)
	}

	// Cursor after Stop is a no-op
	b.Cursor(context.Background(), models.CursorPosition{X: 3})
	if pos := storedCursor(store); pos != nil && pos.X == 3 {
		t.Error("cursor after Stop must be dropped")
	}

	b.Stop() // second Stop is safe
}

func TestBroadcasterFocusBypassesThrottle(t *testing.T) {
	store := newFakeStore()
	h := newTestHandle(t, store)
	b := NewBroadcaster(h, time.Hour)
	defer b.Stop()

	// Exhaust the cursor rate limit
	b.Cursor(context.Background(), models.CursorPosition{X: 1})
	b.Cursor(context.Background(), models.CursorPosition{X: 2})

	// Focus changes go straight through regardless
	b.FocusedSlide(context.Background(), 4)

	rows, _ := store.ListByDocument(context.Background(), "doc-1")
	if len(rows) != 1 || rows[0].CurrentSlideIndex != 4 {
		t.Fatalf("focus change should bypass the cursor throttle, got %+v", rows)
	}
}

func TestBroadcasterNilHandleIsNoOp(t *testing.T) {
	b := NewBroadcaster(nil, 0)
	b.Cursor(context.Background(), models.CursorPosition{X: 1})
	b.FocusedSlide(context.Background(), 2)
	b.Stop()
}
