package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CursorPosition is the last known pointer location inside the editor canvas.
// SlideIndex disambiguates which slide canvas the pointer is over when more
// than one is on screen.
type CursorPosition struct {
	X          float64 `bson:"x" json:"x"`
	Y          float64 `bson:"y" json:"y"`
	SlideIndex *int    `bson:"slideIndex,omitempty" json:"slideIndex,omitempty"`
}

// CollaborationSession is one user's live presence inside one open document
// on one browser tab. At most one row exists per (documentId, userId, tabId);
// re-joining upserts instead of duplicating.
//
// LastActive is a plain timestamp, not a TTL field: staleness is computed at
// read time, and a crashed tab's row simply stops appearing in active lists.
type CollaborationSession struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID        string             `bson:"documentId" json:"document_id"`
	UserID            string             `bson:"userId" json:"user_id"`
	TabID             string             `bson:"tabId" json:"tab_id"`
	UserEmail         string             `bson:"userEmail" json:"user_email"`
	UserName          string             `bson:"userName" json:"user_name"`
	Color             string             `bson:"color" json:"color"`
	CursorPosition    *CursorPosition    `bson:"cursorPosition,omitempty" json:"cursor_position,omitempty"`
	CurrentSlideIndex int                `bson:"currentSlideIndex" json:"current_slide_index"`
	CreatedAt         time.Time          `bson:"createdAt" json:"created_at"`
	LastActive        time.Time          `bson:"lastActive" json:"last_active"`
}

// Collaborator is the presence view handed to consumers (cursor renderer,
// avatar strip). It excludes storage-only fields.
type Collaborator struct {
	SessionID         string          `json:"session_id"`
	UserID            string          `json:"user_id"`
	UserName          string          `json:"user_name"`
	Color             string          `json:"color"`
	CursorPosition    *CursorPosition `json:"cursor_position,omitempty"`
	CurrentSlideIndex int             `json:"current_slide_index"`
	LastActive        time.Time       `json:"last_active"`
}

// Identity is what the identity provider supplies at join time
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// DisplayName returns the user's name, falling back to the local part of
// the email address when no name is set.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	if at := strings.Index(i.Email, "@"); at > 0 {
		return i.Email[:at]
	}
	return i.Email
}

// Collaborator converts a stored session to its presence view
func (s *CollaborationSession) Collaborator() Collaborator {
	return Collaborator{
		SessionID:         s.ID.Hex(),
		UserID:            s.UserID,
		UserName:          s.UserName,
		Color:             s.Color,
		CursorPosition:    s.CursorPosition,
		CurrentSlideIndex: s.CurrentSlideIndex,
		LastActive:        s.LastActive,
	}
}
