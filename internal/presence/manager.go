package presence

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"slidehub/internal/models"
)

const (
	// HeartbeatInterval is how often a joined session refreshes lastActive
	HeartbeatInterval = 30 * time.Second

	// StaleAfter is the staleness window: sessions silent for longer stop
	// appearing in active lists. Read-time filtering is the only eviction
	// mechanism — no background job deletes rows.
	StaleAfter = 5 * time.Minute
)

// sessionColors is the fixed palette display colors are drawn from, one
// random pick per session, held for the session's lifetime.
var sessionColors = []string{
	"#EF4444", "#F97316", "#F59E0B", "#10B981",
	"#06B6D4", "#3B82F6", "#8B5CF6", "#EC4899",
}

// Store is the durable session table the manager writes through. The
// MongoDB implementation lives in internal/services.
type Store interface {
	Upsert(ctx context.Context, session *models.CollaborationSession) (*models.CollaborationSession, error)
	UpdateCursor(ctx context.Context, documentID, userID, tabID string, pos models.CursorPosition) error
	UpdateFocusedSlide(ctx context.Context, documentID, userID, tabID string, index int) error
	Heartbeat(ctx context.Context, documentID, userID, tabID string) error
	Delete(ctx context.Context, documentID, userID, tabID string) error
	ListByDocument(ctx context.Context, documentID string) ([]models.CollaborationSession, error)
}

// ChangeEvent notifies subscribers that a session row for a document changed
type ChangeEvent struct {
	Kind       string `json:"kind"` // "insert", "update", "delete"
	DocumentID string `json:"documentId"`
	SessionID  string `json:"sessionId,omitempty"`
	InstanceID string `json:"instanceId,omitempty"`
}

// Subscription is an active change-channel subscription
type Subscription interface {
	Close() error
}

// Channel delivers session-table change events per document. The Redis
// implementation lives in internal/services. onState reports subscription
// health so the manager can distinguish "offline" from "zero collaborators".
type Channel interface {
	Subscribe(ctx context.Context, documentID string, onEvent func(ChangeEvent), onState func(connected bool)) (Subscription, error)
}

// Manager owns the lifecycle of local collaboration sessions and derives
// the "who else is here" list with staleness filtering.
type Manager struct {
	store   Store
	channel Channel
}

// NewManager creates a presence manager over a session store and change
// channel.
func NewManager(store Store, channel Channel) *Manager {
	return &Manager{store: store, channel: channel}
}

// Join upserts a CollaborationSession for (documentID, identity, tabID),
// subscribes to change events for the document, triggers an immediate list
// reload, and starts the heartbeat loop.
//
// A missing identity (no current user) is not an error: Join logs and
// returns a nil handle, and callers treat that as "presence unavailable" —
// editing stays fully functional with zero collaborators.
//
// onUpdate fires after every collaborator-list or connection-state change;
// nil is allowed.
func (m *Manager) Join(ctx context.Context, documentID string, identity models.Identity, tabID string, onUpdate func()) (*SessionHandle, error) {
	if identity.UserID == "" {
		log.Printf("⚠️ [PRESENCE] No current user - presence unavailable for document %s", documentID)
		return nil, nil
	}

	session := &models.CollaborationSession{
		DocumentID: documentID,
		UserID:     identity.UserID,
		TabID:      tabID,
		UserEmail:  identity.Email,
		UserName:   identity.DisplayName(),
		Color:      sessionColors[rand.Intn(len(sessionColors))],
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}

	stored, err := m.store.Upsert(ctx, session)
	if err != nil {
		return nil, err
	}

	h := &SessionHandle{
		manager:    m,
		documentID: documentID,
		userID:     identity.UserID,
		tabID:      tabID,
		sessionID:  stored.ID.Hex(),
		color:      stored.Color,
		onUpdate:   onUpdate,
		stop:       make(chan struct{}),
	}

	if m.channel == nil {
		// No change channel configured: presence runs in offline mode.
		// The session row still exists and the heartbeat keeps it fresh
		// for other clients' lists.
		log.Printf("⚠️ [PRESENCE] No change channel - offline presence for document %s", documentID)
	} else if sub, err := m.channel.Subscribe(ctx, documentID, h.onChangeEvent, h.onChannelState); err != nil {
		// Presence degrades to offline; the session row still exists and
		// the heartbeat keeps it fresh for other clients' lists.
		log.Printf("⚠️ [PRESENCE] Change channel subscribe failed for document %s: %v", documentID, err)
	} else {
		h.mu.Lock()
		h.sub = sub
		h.connected = true
		h.mu.Unlock()
	}

	h.reload(ctx)
	go h.heartbeatLoop()

	log.Printf("👥 [PRESENCE] %s joined document %s (tab %s)", identity.DisplayName(), documentID, tabID)
	return h, nil
}

// SessionHandle is the explicit handle for one joined session. Every
// subsequent presence call goes through the handle; there is no hidden
// global session state.
type SessionHandle struct {
	manager    *Manager
	documentID string
	userID     string
	tabID      string
	sessionID  string
	color      string
	onUpdate   func()
	stop       chan struct{}

	mu            sync.RWMutex
	sub           Subscription
	connected     bool
	closed        bool
	collaborators []models.Collaborator
}

// TabID returns the tab identity this handle's session row is keyed by
func (h *SessionHandle) TabID() string { return h.tabID }

// Color returns the display color assigned at session creation
func (h *SessionHandle) Color() string { return h.color }

// IsConnected reports change-channel health. False means "offline": the
// list may be stale. Distinct from a connected list that happens to be
// empty.
func (h *SessionHandle) IsConnected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connected && !h.closed
}

// Collaborators returns the other active sessions for the document:
// lastActive within the staleness window, own session excluded.
func (h *SessionHandle) Collaborators() []models.Collaborator {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.Collaborator, len(h.collaborators))
	copy(out, h.collaborators)
	return out
}

// UpdateCursor is a best-effort write of the pointer position; it also
// refreshes lastActive. Failures are logged and swallowed — presence is an
// enhancement, never a correctness requirement of editing.
func (h *SessionHandle) UpdateCursor(ctx context.Context, pos models.CursorPosition) {
	if h.isClosed() {
		return
	}
	if err := h.manager.store.UpdateCursor(ctx, h.documentID, h.userID, h.tabID, pos); err != nil {
		log.Printf("⚠️ [PRESENCE] Cursor update failed: %v", err)
	}
}

// UpdateFocusedSlide is a best-effort write of the focused slide index; it
// also refreshes lastActive. Failures are logged and swallowed.
func (h *SessionHandle) UpdateFocusedSlide(ctx context.Context, index int) {
	if h.isClosed() {
		return
	}
	if err := h.manager.store.UpdateFocusedSlide(ctx, h.documentID, h.userID, h.tabID, index); err != nil {
		log.Printf("⚠️ [PRESENCE] Focus update failed: %v", err)
	}
}

// Leave deletes the session row, unsubscribes, and stops the heartbeat.
// Idempotent: a second call, or a call racing an in-flight update, is a
// no-op and never panics.
func (h *SessionHandle) Leave(ctx context.Context) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.connected = false
	sub := h.sub
	h.sub = nil
	close(h.stop)
	h.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			log.Printf("⚠️ [PRESENCE] Unsubscribe failed: %v", err)
		}
	}
	if err := h.manager.store.Delete(ctx, h.documentID, h.userID, h.tabID); err != nil {
		// The row goes stale and drops out of active lists after the window.
		log.Printf("⚠️ [PRESENCE] Session cleanup failed: %v", err)
	}

	log.Printf("👋 [PRESENCE] Session %s left document %s", h.sessionID, h.documentID)
}

// heartbeatLoop refreshes lastActive every HeartbeatInterval until Leave
func (h *SessionHandle) heartbeatLoop() {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := h.manager.store.Heartbeat(ctx, h.documentID, h.userID, h.tabID); err != nil {
				log.Printf("⚠️ [PRESENCE] Heartbeat failed: %v", err)
			}
			cancel()
		}
	}
}

// onChangeEvent handles a session-table change for the subscribed document:
// every insert/update/delete triggers a full list reload. This is a
// coalesced, eventually-consistent broadcast, not a diff protocol.
func (h *SessionHandle) onChangeEvent(ev ChangeEvent) {
	if h.isClosed() || ev.DocumentID != h.documentID {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h.reload(ctx)
}

// onChannelState tracks subscription health
func (h *SessionHandle) onChannelState(connected bool) {
	h.mu.Lock()
	changed := h.connected != connected && !h.closed
	if !h.closed {
		h.connected = connected
	}
	h.mu.Unlock()

	if changed {
		if connected {
			// Events may have been missed while offline; resync.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			h.reload(ctx)
			cancel()
		}
		h.notify()
	}
}

// reload fetches the document's sessions and applies the staleness filter
// and self-exclusion. The filter here is canonical; the store query only
// narrows the read.
func (h *SessionHandle) reload(ctx context.Context) {
	sessions, err := h.manager.store.ListByDocument(ctx, h.documentID)
	if err != nil {
		log.Printf("⚠️ [PRESENCE] List reload failed for document %s: %v", h.documentID, err)
		return
	}

	cutoff := time.Now().Add(-StaleAfter)
	active := make([]models.Collaborator, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		if s.UserID == h.userID && s.TabID == h.tabID {
			continue // self
		}
		if s.LastActive.Before(cutoff) {
			continue // stale: row stays in storage, just not visible
		}
		active = append(active, s.Collaborator())
	}

	h.mu.Lock()
	h.collaborators = active
	h.mu.Unlock()
	h.notify()
}

func (h *SessionHandle) notify() {
	if h.onUpdate != nil {
		h.onUpdate()
	}
}

func (h *SessionHandle) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}
