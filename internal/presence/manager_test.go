package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"slidehub/internal/models"
)

type sessionKey struct {
	doc, user, tab string
}

// fakeStore is an in-memory Store; tests seed rows directly to simulate
// other clients, including stale ones.
type fakeStore struct {
	mu       sync.Mutex
	rows     map[sessionKey]*models.CollaborationSession
	deletes  int
	failList bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[sessionKey]*models.CollaborationSession)}
}

func (s *fakeStore) seed(session models.CollaborationSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}
	s.rows[sessionKey{session.DocumentID, session.UserID, session.TabID}] = &session
}

func (s *fakeStore) Upsert(ctx context.Context, session *models.CollaborationSession) (*models.CollaborationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{session.DocumentID, session.UserID, session.TabID}
	if existing, ok := s.rows[key]; ok {
		existing.UserEmail = session.UserEmail
		existing.UserName = session.UserName
		existing.LastActive = time.Now()
		out := *existing
		return &out, nil
	}
	stored := *session
	stored.ID = primitive.NewObjectID()
	stored.LastActive = time.Now()
	s.rows[key] = &stored
	out := stored
	return &out, nil
}

func (s *fakeStore) UpdateCursor(ctx context.Context, documentID, userID, tabID string, pos models.CursorPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[sessionKey{documentID, userID, tabID}]
	if !ok {
		return errors.New("no session")
	}
	row.CursorPosition = &pos
	row.LastActive = time.Now()
	return nil
}

func (s *fakeStore) UpdateFocusedSlide(ctx context.Context, documentID, userID, tabID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[sessionKey{documentID, userID, tabID}]
	if !ok {
		return errors.New("no session")
	}
	row.CurrentSlideIndex = index
	row.LastActive = time.Now()
	return nil
}

func (s *fakeStore) Heartbeat(ctx context.Context, documentID, userID, tabID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[sessionKey{documentID, userID, tabID}]; ok {
		row.LastActive = time.Now()
	}
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, documentID, userID, tabID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, sessionKey{documentID, userID, tabID})
	s.deletes++
	return nil
}

func (s *fakeStore) ListByDocument(ctx context.Context, documentID string) ([]models.CollaborationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList {
		return nil, errors.New("list unavailable")
	}
	var out []models.CollaborationSession
	for _, row := range s.rows {
		if row.DocumentID == documentID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *fakeStore) deleteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

// fakeChannel hands the test direct control over event delivery and
// connection state.
type fakeChannel struct {
	mu      sync.Mutex
	onEvent func(ChangeEvent)
	onState func(bool)
	closed  int
}

func (c *fakeChannel) Subscribe(ctx context.Context, documentID string, onEvent func(ChangeEvent), onState func(connected bool)) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = onEvent
	c.onState = onState
	return &fakeSub{channel: c}, nil
}

func (c *fakeChannel) emit(ev ChangeEvent) {
	c.mu.Lock()
	onEvent := c.onEvent
	c.mu.Unlock()
	if onEvent != nil {
		onEvent(ev)
	}
}

func (c *fakeChannel) setState(connected bool) {
	c.mu.Lock()
	onState := c.onState
	c.mu.Unlock()
	if onState != nil {
		onState(connected)
	}
}

func (c *fakeChannel) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeSub struct {
	channel *fakeChannel
}

func (s *fakeSub) Close() error {
	s.channel.mu.Lock()
	defer s.channel.mu.Unlock()
	s.channel.closed++
	return nil
}

func testIdentity() models.Identity {
	return models.Identity{UserID: "user-1", Email: "ada@example.com", Name: "Ada"}
}

func TestJoinCreatesSession(t *testing.T) {
	store := newFakeStore()
	channel := &fakeChannel{}
	m := NewManager(store, channel)

	h, err := m.Join(context.Background(), "doc-1", testIdentity(), "tab-1", nil)
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if h == nil {
		t.Fatal("expected a session handle")
	}
	defer h.Leave(context.Background())

	if h.TabID() != "tab-1" {
		t.Errorf("unexpected tab id %q", h.TabID())
	}
	if h.Color() == "" {
		t.Error("a color must be assigned at creation")
	}
	if !h.IsConnected() {
		t.Error("handle should be connected after a successful subscribe")
	}

	rows, _ := store.ListByDocument(context.Background(), "doc-1")
	if len(rows) != 1 {
		t.Fatalf("expected 1 stored session, got %d", len(rows))
	}
	if rows[0].UserName != "Ada" {
		t.Errorf("unexpected stored name %q", rows[0].UserName)
	}
}

func TestJoinWithoutUserIsUnavailable(t *testing.T) {
	m := NewManager(newFakeStore(), &fakeChannel{})

	h, err := m.Join(context.Background(), "doc-1", models.Identity{}, "tab-1", nil)
	if err != nil {
		t.Fatalf("anonymous join must not error, got %v", err)
	}
	if h != nil {
		t.Fatal("anonymous join must yield no handle")
	}
}

func TestCollaboratorsExcludeSelfAndStale(t *testing.T) {
	store := newFakeStore()
	channel := &fakeChannel{}
	m := NewManager(store, channel)

	// Another user, fresh
	store.seed(models.CollaborationSession{
		DocumentID: "doc-1", UserID: "user-2", TabID: "tab-x",
		UserName: "Grace", LastActive: time.Now(),
	})
	// Same user, second tab: counts as a collaborator
	store.seed(models.CollaborationSession{
		DocumentID: "doc-1", UserID: "user-1", TabID: "tab-other",
		UserName: "Ada", LastActive: time.Now(),
	})
	// Crashed tab, past the staleness window
	store.seed(models.CollaborationSession{
		DocumentID: "doc-1", UserID: "user-3", TabID: "tab-z",
		UserName: "Ghost", LastActive: time.Now().Add(-StaleAfter - time.Minute),
	})
	// Different document
	store.seed(models.CollaborationSession{
		DocumentID: "doc-2", UserID: "user-4", TabID: "tab-q",
		UserName: "Elsewhere", LastActive: time.Now(),
	})

	h, err := m.Join(context.Background(), "doc-1", testIdentity(), "tab-1", nil)
	if err != nil || h == nil {
		t.Fatalf("join failed: %v", err)
	}
	defer h.Leave(context.Background())

	collabs := h.Collaborators()
	if len(collabs) != 2 {
		t.Fatalf("expected 2 collaborators, got %d: %+v", len(collabs), collabs)
	}
	names := map[string]bool{}
	for _, c := range collabs {
		names[c.UserName] = true
	}
	if !names["Grace"] || !names["Ada"] {
		t.Errorf("expected Grace and the second Ada tab, got %v", names)
	}
}

func TestChangeEventTriggersReload(t *testing.T) {
	store := newFakeStore()
	channel := &fakeChannel{}
	m := NewManager(store, channel)

	var mu sync.Mutex
	updates := 0
	h, err := m.Join(context.Background(), "doc-1", testIdentity(), "tab-1", func() {
		mu.Lock()
		updates++
		mu.Unlock()
	})
	if err != nil || h == nil {
		t.Fatalf("join failed: %v", err)
	}
	defer h.Leave(context.Background())

	if len(h.Collaborators()) != 0 {
		t.Fatal("expected no collaborators yet")
	}

	// A second client joins elsewhere; its change event lands here
	store.seed(models.CollaborationSession{
		DocumentID: "doc-1", UserID: "user-2", TabID: "tab-x",
		UserName: "Grace", LastActive: time.Now(),
	})
	channel.emit(ChangeEvent{Kind: "insert", DocumentID: "doc-1", InstanceID: "other-instance"})

	if got := h.Collaborators(); len(got) != 1 || got[0].UserName != "Grace" {
		t.Fatalf("expected Grace after reload, got %+v", got)
	}
	mu.Lock()
	if updates == 0 {
		t.Error("onUpdate callback should fire after a reload")
	}
	mu.Unlock()
}

func TestOwnInstanceEventsStillReload(t *testing.T) {
	store := newFakeStore()
	channel := &fakeChannel{}
	m := NewManager(store, channel)

	h, _ := m.Join(context.Background(), "doc-1", testIdentity(), "tab-1", nil)
	defer h.Leave(context.Background())

	// Events published by this process (another tab on the same server)
	// must not be filtered out.
	store.seed(models.CollaborationSession{
		DocumentID: "doc-1", UserID: "user-2", TabID: "tab-x",
		UserName: "Grace", LastActive: time.Now(),
	})
	channel.emit(ChangeEvent{Kind: "insert", DocumentID: "doc-1", InstanceID: ""})

	if got := h.Collaborators(); len(got) != 1 {
		t.Fatalf("own-instance event should still reload, got %+v", got)
	}
}

func TestEventForOtherDocumentIgnored(t *testing.T) {
	store := newFakeStore()
	channel := &fakeChannel{}
	m := NewManager(store, channel)

	h, _ := m.Join(context.Background(), "doc-1", testIdentity(), "tab-1", nil)
	defer h.Leave(context.Background())

	store.seed(models.CollaborationSession{
		DocumentID: "doc-1", UserID: "user-2", TabID: "tab-x",
		UserName: "Grace", LastActive: time.Now(),
	})
	channel.emit(ChangeEvent{Kind: "insert", DocumentID: "doc-9"})

	if got := h.Collaborators(); len(got) != 0 {
		t.Fatalf("event for another document must not reload, got %+v", got)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	store := newFakeStore()
	channel := &fakeChannel{}
	m := NewManager(store, channel)

	h, _ := m.Join(context.Background(), "doc-1", testIdentity(), "tab-1", nil)

	h.Leave(context.Background())
	if rows, _ := store.ListByDocument(context.Background(), "doc-1"); len(rows) != 0 {
		t.Error("session row should be deleted on leave")
	}
	if channel.closeCount() != 1 {
		t.Errorf("subscription should be closed once, got %d", channel.closeCount())
	}
	if h.IsConnected() {
		t.Error("closed handle must report disconnected")
	}

	h.Leave(context.Background())
	if store.deleteCount() != 1 {
		t.Errorf("second leave must be a no-op, got %d deletes", store.deleteCount())
	}
	if channel.closeCount() != 1 {
		t.Error("second leave must not close the subscription again")
	}

	// Updates after leave are silently dropped
	h.UpdateCursor(context.Background(), models.CursorPosition{X: 1, Y: 2})
	channel.emit(ChangeEvent{Kind: "insert", DocumentID: "doc-1"})
}

func TestReconnectResyncsList(t *testing.T) {
	store := newFakeStore()
	channel := &fakeChannel{}
	m := NewManager(store, channel)

	var mu sync.Mutex
	updates := 0
	h, _ := m.Join(context.Background(), "doc-1", testIdentity(), "tab-1", func() {
		mu.Lock()
		updates++
		mu.Unlock()
	})
	defer h.Leave(context.Background())

	channel.setState(false)
	if h.IsConnected() {
		t.Fatal("handle should report offline after channel loss")
	}

	// A join happened while offline; the resync on reconnect picks it up
	store.seed(models.CollaborationSession{
		DocumentID: "doc-1", UserID: "user-2", TabID: "tab-x",
		UserName: "Grace", LastActive: time.Now(),
	})

	channel.setState(true)
	if !h.IsConnected() {
		t.Fatal("handle should report connected after recovery")
	}
	if got := h.Collaborators(); len(got) != 1 {
		t.Fatalf("reconnect should resync the list, got %+v", got)
	}
	mu.Lock()
	if updates < 2 {
		t.Errorf("expected notifications for both state changes, got %d", updates)
	}
	mu.Unlock()
}

func TestCursorAndFocusWrites(t *testing.T) {
	store := newFakeStore()
	channel := &fakeChannel{}
	m := NewManager(store, channel)

	h, _ := m.Join(context.Background(), "doc-1", testIdentity(), "tab-1", nil)
	defer h.Leave(context.Background())

	idx := 2
	h.UpdateCursor(context.Background(), models.CursorPosition{X: 10, Y: 20, SlideIndex: &idx})
	h.UpdateFocusedSlide(context.Background(), 3)

	rows, _ := store.ListByDocument(context.Background(), "doc-1")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.CursorPosition == nil || row.CursorPosition.X != 10 || row.CursorPosition.Y != 20 {
		t.Errorf("cursor not stored: %+v", row.CursorPosition)
	}
	if row.CursorPosition != nil && (row.CursorPosition.SlideIndex == nil || *row.CursorPosition.SlideIndex != 2) {
		t.Error("cursor slide index not stored")
	}
	if row.CurrentSlideIndex != 3 {
		t.Errorf("focused slide not stored, got %d", row.CurrentSlideIndex)
	}
}

func TestRejoinUpsertsInsteadOfDuplicating(t *testing.T) {
	store := newFakeStore()
	channel := &fakeChannel{}
	m := NewManager(store, channel)

	h1, _ := m.Join(context.Background(), "doc-1", testIdentity(), "tab-1", nil)
	h1.Leave(context.Background())

	store.seed(models.CollaborationSession{
		DocumentID: "doc-1", UserID: "user-1", TabID: "tab-1",
		UserName: "Ada", LastActive: time.Now(),
	})

	// Same document, same user, same tab: still one row
	h2, err := m.Join(context.Background(), "doc-1", testIdentity(), "tab-1", nil)
	if err != nil || h2 == nil {
		t.Fatalf("rejoin failed: %v", err)
	}
	defer h2.Leave(context.Background())

	rows, _ := store.ListByDocument(context.Background(), "doc-1")
	if len(rows) != 1 {
		t.Fatalf("rejoin must not duplicate the session row, got %d rows", len(rows))
	}
}
