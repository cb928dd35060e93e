package models

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// ClientMessage represents a message from an editor tab
type ClientMessage struct {
	Type       string `json:"type"` // "join", "edit", "save", "cursor", "focus", "leave", "ping"
	DocumentID string `json:"document_id,omitempty"`

	// Document mutation ("edit" messages)
	Edit *EditRequest `json:"edit,omitempty"`

	// Cursor update fields
	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
	SlideIndex *int    `json:"slide_index,omitempty"`

	// Focus update field
	FocusedSlideIndex int `json:"focused_slide_index,omitempty"`
}

// EditRequest is one named document mutation from an editor tab. Action
// selects the operation; the remaining fields carry its arguments.
type EditRequest struct {
	Action   string         `json:"action"` // "add_slide", "delete_slide", "duplicate_slide", "update_slide", "apply_template", "apply_template_all", "replace_slides", "select_slide", "undo", "redo"
	SlideID  string         `json:"slide_id,omitempty"`
	AfterID  string         `json:"after_id,omitempty"`
	Patch    *SlidePatch    `json:"patch,omitempty"`
	Template *SlideTemplate `json:"template,omitempty"`
	Slides   []Slide        `json:"slides,omitempty"`
}

// ServerMessage represents a message pushed to an editor tab
type ServerMessage struct {
	Type          string         `json:"type"` // "joined", "collaborators", "connection_state", "document", "edit_result", "saved", "pong", "error"
	TabID         string         `json:"tab_id,omitempty"`         // Assigned on "joined"
	Color         string         `json:"color,omitempty"`          // Session color, assigned on "joined"
	Collaborators []Collaborator `json:"collaborators,omitempty"`  // Other active sessions, self excluded
	Connected     *bool          `json:"connected,omitempty"`      // "connection_state": live channel vs offline (pointer: false is meaningful)
	Document      *Document      `json:"document,omitempty"`       // Engine state, sent on join
	Action        string         `json:"action,omitempty"`         // "edit_result": echoed request action
	Applied       *bool          `json:"applied,omitempty"`        // "edit_result": whether the mutation took (pointer: false is meaningful)
	SlideID       string         `json:"slide_id,omitempty"`       // "edit_result": id of a created slide
	Revision      uint64         `json:"revision,omitempty"`       // "edit_result": engine revision after the call
	CanUndo       *bool          `json:"can_undo,omitempty"`       // "edit_result": undo stack state for UI enablement
	CanRedo       *bool          `json:"can_redo,omitempty"`       // "edit_result": redo stack state for UI enablement
	SavedAt       *time.Time     `json:"saved_at,omitempty"`       // "saved": time of the acknowledged save
	ErrorCode     string         `json:"code,omitempty"`
	ErrorMessage  string         `json:"message,omitempty"`
}

// EditorConnection represents a single editor tab's WebSocket connection
type EditorConnection struct {
	ConnID     string
	UserID     string
	DocumentID string
	ClientIP   string
	Conn       *websocket.Conn
	CreatedAt  time.Time
	WriteChan  chan ServerMessage
	StopChan   chan bool
	Mutex      sync.Mutex
	closed     bool
}

// SafeSend sends a message to WriteChan safely, returning false if the channel is closed
func (ec *EditorConnection) SafeSend(msg ServerMessage) bool {
	ec.Mutex.Lock()
	if ec.closed {
		ec.Mutex.Unlock()
		return false
	}
	ec.Mutex.Unlock()

	// Use defer/recover to handle panic from send on closed channel
	defer func() {
		if r := recover(); r != nil {
			ec.Mutex.Lock()
			ec.closed = true
			ec.Mutex.Unlock()
		}
	}()

	ec.WriteChan <- msg
	return true
}

// MarkClosed marks the connection as closed
func (ec *EditorConnection) MarkClosed() {
	ec.Mutex.Lock()
	ec.closed = true
	ec.Mutex.Unlock()
}

// IsClosed returns true if the connection has been marked as closed
func (ec *EditorConnection) IsClosed() bool {
	ec.Mutex.Lock()
	defer ec.Mutex.Unlock()
	return ec.closed
}
