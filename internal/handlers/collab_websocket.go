package handlers

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"slidehub/internal/editor"
	"slidehub/internal/models"
	"slidehub/internal/presence"
	"slidehub/internal/services"
)

// CollabWebSocketHandler handles WebSocket connections for the collaborative
// editor at /ws/collab. Each connection is one editor tab: it gets its own
// tab ID, its own session row, its own command-history engine and
// auto-saver, and its own cursor throttle.
type CollabWebSocketHandler struct {
	manager          *presence.Manager
	snapshots        *services.SnapshotStore
	connManager      *services.ConnectionManager
	metrics          *services.Metrics
	cursorThrottle   time.Duration
	autoSaveInterval time.Duration
}

// NewCollabWebSocketHandler creates a new collaboration WebSocket handler
func NewCollabWebSocketHandler(
	manager *presence.Manager,
	snapshots *services.SnapshotStore,
	connManager *services.ConnectionManager,
	metrics *services.Metrics,
	cursorThrottle time.Duration,
	autoSaveInterval time.Duration,
) *CollabWebSocketHandler {
	return &CollabWebSocketHandler{
		manager:          manager,
		snapshots:        snapshots,
		connManager:      connManager,
		metrics:          metrics,
		cursorThrottle:   cursorThrottle,
		autoSaveInterval: autoSaveInterval,
	}
}

// Handle is the WebSocket handler for /ws/collab
func (h *CollabWebSocketHandler) Handle(c *websocket.Conn) {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" || userID == "anonymous" {
		log.Printf("[COLLAB-WS] Connection rejected: missing or invalid user_id")
		c.WriteJSON(models.ServerMessage{Type: "error", ErrorCode: "unauthorized", ErrorMessage: "authentication required"})
		return
	}
	userEmail, _ := c.Locals("user_email").(string)
	userName, _ := c.Locals("user_name").(string)

	// Each tab gets a fresh server-assigned ID; two tabs of the same user
	// are two distinct sessions.
	tabID := uuid.New().String()

	conn := &models.EditorConnection{
		ConnID:    tabID,
		UserID:    userID,
		ClientIP:  c.RemoteAddr().String(),
		Conn:      c,
		CreatedAt: time.Now(),
		WriteChan: make(chan models.ServerMessage, 100),
		StopChan:  make(chan bool),
	}
	h.connManager.Add(conn)
	if h.metrics != nil {
		h.metrics.RecordWebSocketConnect()
	}

	log.Printf("[COLLAB-WS] Connection opened: %s (user: %s)", tabID, userID)

	// Write loop — sole writer on the socket
	go h.writePump(conn)

	ctx := context.Background()

	// handle is written by the read loop and read by presence callbacks
	var mu sync.Mutex
	var handle *presence.SessionHandle
	var broadcaster *presence.Broadcaster

	// engine and saver are only ever touched by the read loop and the defer
	// below, which run on the same goroutine
	var engine *editor.Engine
	var saver *editor.AutoSaver

	currentHandle := func() *presence.SessionHandle {
		mu.Lock()
		defer mu.Unlock()
		return handle
	}

	defer func() {
		if saver != nil {
			// Stop flushes any unsaved work before the tab's engine is
			// dropped
			saver.Stop()
		}
		if broadcaster != nil {
			broadcaster.Stop()
		}
		if joined := currentHandle(); joined != nil {
			joined.Leave(ctx)
		}
		h.connManager.Remove(conn.ConnID)
		if h.metrics != nil {
			h.metrics.RecordWebSocketDisconnect()
		}
		log.Printf("[COLLAB-WS] Connection closed: %s", tabID)
	}()

	// Read loop
	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			log.Printf("[COLLAB-WS] Read error for %s: %v", tabID, err)
			return
		}

		var clientMsg models.ClientMessage
		if err := json.Unmarshal(msg, &clientMsg); err != nil {
			conn.SafeSend(models.ServerMessage{Type: "error", ErrorCode: "bad_message", ErrorMessage: "invalid message format"})
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWebSocketMessage(clientMsg.Type, "inbound")
		}

		switch clientMsg.Type {
		case "ping":
			conn.SafeSend(models.ServerMessage{Type: "pong"})

		case "join":
			if currentHandle() != nil {
				conn.SafeSend(models.ServerMessage{Type: "error", ErrorCode: "already_joined", ErrorMessage: "this connection already joined a document"})
				continue
			}
			if clientMsg.DocumentID == "" {
				conn.SafeSend(models.ServerMessage{Type: "error", ErrorCode: "bad_message", ErrorMessage: "join requires document_id"})
				continue
			}

			identity := models.Identity{UserID: userID, Email: userEmail, Name: userName}
			joined, err := h.manager.Join(ctx, clientMsg.DocumentID, identity, tabID, func() {
				h.pushPresence(conn, currentHandle())
			})
			if err != nil {
				log.Printf("[COLLAB-WS] Join failed for %s: %v", tabID, err)
				conn.SafeSend(models.ServerMessage{Type: "error", ErrorCode: "join_failed", ErrorMessage: "could not join document"})
				continue
			}
			if joined == nil {
				conn.SafeSend(models.ServerMessage{Type: "error", ErrorCode: "unauthorized", ErrorMessage: "presence unavailable without a user"})
				continue
			}
			mu.Lock()
			handle = joined
			mu.Unlock()
			conn.DocumentID = clientMsg.DocumentID
			broadcaster = presence.NewBroadcaster(joined, h.cursorThrottle)

			// The tab's engine resumes from the latest autosave when one
			// exists, otherwise starts a fresh single-slide document. The
			// auto-saver persists it back on the configured interval.
			doc := h.loadSnapshot(ctx, clientMsg.DocumentID, userID)
			doc.ID = clientMsg.DocumentID
			engine = editor.NewEngine(doc)
			if h.snapshots != nil {
				saver = editor.NewAutoSaver(engine, h.snapshots, userID, h.autoSaveInterval)
				saver.Start()
			}
			log.Printf("[COLLAB-WS] %s joined document %s (%d tabs open)",
				userID, clientMsg.DocumentID, h.connManager.CountByDocument(clientMsg.DocumentID))

			conn.SafeSend(models.ServerMessage{
				Type:  "joined",
				TabID: joined.TabID(),
				Color: joined.Color(),
			})
			state := engine.Document()
			conn.SafeSend(models.ServerMessage{
				Type:     "document",
				Document: &state,
			})
			h.pushPresence(conn, joined)

		case "edit":
			if engine == nil {
				conn.SafeSend(models.ServerMessage{Type: "error", ErrorCode: "not_joined", ErrorMessage: "join a document before editing"})
				continue
			}
			if clientMsg.Edit == nil {
				conn.SafeSend(models.ServerMessage{Type: "error", ErrorCode: "bad_message", ErrorMessage: "edit requires an edit payload"})
				continue
			}
			conn.SafeSend(applyEdit(engine, clientMsg.Edit))

		case "save":
			if saver == nil {
				conn.SafeSend(models.ServerMessage{Type: "error", ErrorCode: "not_joined", ErrorMessage: "join a document before saving"})
				continue
			}
			if err := saver.SaveNow(ctx); err != nil {
				log.Printf("[COLLAB-WS] Save failed for %s: %v", tabID, err)
				conn.SafeSend(models.ServerMessage{Type: "error", ErrorCode: "save_failed", ErrorMessage: "could not save document"})
				continue
			}
			savedAt := saver.LastSaved()
			conn.SafeSend(models.ServerMessage{Type: "saved", SavedAt: &savedAt})

		case "cursor":
			if broadcaster == nil {
				continue
			}
			broadcaster.Cursor(ctx, models.CursorPosition{
				X:          clientMsg.X,
				Y:          clientMsg.Y,
				SlideIndex: clientMsg.SlideIndex,
			})

		case "focus":
			if broadcaster == nil {
				continue
			}
			broadcaster.FocusedSlide(ctx, clientMsg.FocusedSlideIndex)

		case "leave":
			return

		default:
			conn.SafeSend(models.ServerMessage{Type: "error", ErrorCode: "bad_message", ErrorMessage: "unknown message type: " + clientMsg.Type})
		}
	}
}

// writePump is the sole consumer of the connection's write channel
func (h *CollabWebSocketHandler) writePump(conn *models.EditorConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[COLLAB-WS] Write pump recovered for %s: %v", conn.ConnID, r)
		}
	}()
	for {
		select {
		case <-conn.StopChan:
			return
		case msg, ok := <-conn.WriteChan:
			if !ok {
				return
			}
			if err := conn.Conn.WriteJSON(msg); err != nil {
				log.Printf("[COLLAB-WS] Write error for %s: %v", conn.ConnID, err)
				conn.MarkClosed()
				return
			}
			if h.metrics != nil {
				h.metrics.RecordWebSocketMessage(msg.Type, "outbound")
			}
		}
	}
}

// pushPresence sends the current collaborator list and channel state.
// Called from the presence manager's callbacks, so it only touches the
// write channel, never the socket directly.
func (h *CollabWebSocketHandler) pushPresence(conn *models.EditorConnection, handle *presence.SessionHandle) {
	if handle == nil {
		return
	}
	connected := handle.IsConnected()
	conn.SafeSend(models.ServerMessage{
		Type:          "collaborators",
		Collaborators: handle.Collaborators(),
	})
	conn.SafeSend(models.ServerMessage{
		Type:      "connection_state",
		Connected: &connected,
	})
}

// loadSnapshot returns the latest auto-saved document, or an empty one for
// the engine to seed with its default slide. A missing snapshot is not an
// error: first-time documents start empty.
func (h *CollabWebSocketHandler) loadSnapshot(ctx context.Context, documentID, userID string) models.Document {
	if h.snapshots == nil {
		return models.Document{}
	}
	snapshot, err := h.snapshots.Get(ctx, documentID, userID)
	if err != nil {
		log.Printf("[COLLAB-WS] Snapshot load failed for document %s: %v", documentID, err)
		return models.Document{}
	}
	if snapshot == nil {
		return models.Document{}
	}
	return snapshot.Document
}
