package models

import (
	"time"
)

// SlideLayout identifies which layout a slide renders with
type SlideLayout string

const (
	LayoutTitle   SlideLayout = "title"
	LayoutContent SlideLayout = "content"
	LayoutChoice  SlideLayout = "choice"
	LayoutPoll    SlideLayout = "poll"
)

// Slide is a single slide in a presentation document.
// Styling and attachment fields are opaque payload: the collaboration core
// copies them around but never interprets them.
type Slide struct {
	ID          string                 `bson:"id" json:"id"`
	Title       string                 `bson:"title" json:"title"`
	Subtitle    string                 `bson:"subtitle,omitempty" json:"subtitle,omitempty"`
	Content     string                 `bson:"content,omitempty" json:"content,omitempty"`
	Layout      SlideLayout            `bson:"layout" json:"layout"`
	Background  string                 `bson:"background,omitempty" json:"background,omitempty"`
	TextColor   string                 `bson:"textColor,omitempty" json:"textColor,omitempty"`
	AccentColor string                 `bson:"accentColor,omitempty" json:"accentColor,omitempty"`
	Font        string                 `bson:"font,omitempty" json:"font,omitempty"`
	FontSize    int                    `bson:"fontSize,omitempty" json:"fontSize,omitempty"`
	Elements    map[string]interface{} `bson:"elements,omitempty" json:"elements,omitempty"` // images, shapes - opaque
}

// Document is the object under edit: a titled, ordered slide list.
// Order is significant and is the canonical rendering order.
// A document always contains at least one slide.
type Document struct {
	ID     string  `bson:"documentId" json:"id"`
	Title  string  `bson:"title" json:"title"`
	Slides []Slide `bson:"slides" json:"slides"`
}

// SlidePatch carries the fields a slide update shallow-merges. Nil fields
// are left untouched; a non-nil Elements map replaces the slide's elements
// wholesale (the core treats them as opaque payload).
type SlidePatch struct {
	Title       *string                `json:"title,omitempty"`
	Subtitle    *string                `json:"subtitle,omitempty"`
	Content     *string                `json:"content,omitempty"`
	Layout      *SlideLayout           `json:"layout,omitempty"`
	Background  *string                `json:"background,omitempty"`
	TextColor   *string                `json:"textColor,omitempty"`
	AccentColor *string                `json:"accentColor,omitempty"`
	Font        *string                `json:"font,omitempty"`
	FontSize    *int                   `json:"fontSize,omitempty"`
	Elements    map[string]interface{} `json:"elements,omitempty"`
}

// SlideTemplate carries the styling-only fields a template overwrites.
// Content fields (title, subtitle, body) are never touched by templates.
type SlideTemplate struct {
	Background  string `json:"background"`
	TextColor   string `json:"textColor"`
	AccentColor string `json:"accentColor"`
}

// DocumentSnapshot is a persisted autosave of a document, stored in MongoDB
type DocumentSnapshot struct {
	DocumentID string    `bson:"documentId" json:"document_id"`
	UserID     string    `bson:"userId" json:"user_id"`
	Document   Document  `bson:"document" json:"document"`
	SavedAt    time.Time `bson:"savedAt" json:"saved_at"`
}
