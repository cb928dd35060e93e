package editor

import (
	"sync"

	"github.com/google/uuid"

	"slidehub/internal/models"
)

// DefaultMaxHistory is the undo stack bound; the oldest command falls off
// when the bound is exceeded.
const DefaultMaxHistory = 100

// Engine is the single source of truth for one client's in-memory document.
// All document mutations flow through its named operations, each of which
// is undoable. Mutations are synchronous and atomic: they either fully
// apply (document updated, command pushed) or are fully rejected with no
// observable state change.
//
// Any mutation other than Undo/Redo clears the redo stack, even when the
// new values are identical to the old ones — the engine does not diff for
// semantic equality before pushing a command.
type Engine struct {
	mu              sync.Mutex
	doc             models.Document
	selectedSlideID string
	undoStack       []command
	redoStack       []command
	maxHistory      int
	revision        uint64
}

// NewEngine creates an engine for the given document. A document with no
// slides gets a single default slide so the non-empty invariant holds from
// the start.
func NewEngine(doc models.Document) *Engine {
	d := cloneDocument(doc)
	if len(d.Slides) == 0 {
		d.Slides = []models.Slide{NewDefaultSlide()}
	}
	return &Engine{
		doc:             d,
		selectedSlideID: d.Slides[0].ID,
		maxHistory:      DefaultMaxHistory,
	}
}

// Document returns a deep copy of the current document. The engine's own
// copy is never handed out: all writes go through the named operations.
func (e *Engine) Document() models.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneDocument(e.doc)
}

// SelectedSlideID returns the slide currently shown in the canvas. It
// always references an existing slide in the document.
func (e *Engine) SelectedSlideID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedSlideID
}

// SelectSlide moves the canvas selection. Selection changes are not
// mutations: no command is pushed and the redo stack survives. Returns
// false for an unknown slide id.
func (e *Engine) SelectSlide(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.findSlide(id) == nil {
		return false
	}
	e.selectedSlideID = id
	return true
}

// Revision returns a counter bumped by every applied mutation, including
// undo and redo. The auto-save scheduler uses it as a dirty check.
func (e *Engine) Revision() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.revision
}

// Snapshot returns a deep copy of the document together with the revision
// it represents.
func (e *Engine) Snapshot() (models.Document, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneDocument(e.doc), e.revision
}

// CanUndo reports whether the undo stack is non-empty
func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.undoStack) > 0
}

// CanRedo reports whether the redo stack is non-empty
func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.redoStack) > 0
}

// AddSlide inserts a new slide with default content immediately after the
// slide with afterID, or appends at the end when afterID is empty or
// unknown. The new slide becomes selected. Returns the new slide's id.
func (e *Engine) AddSlide(afterID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	index := len(e.doc.Slides)
	if afterID != "" {
		if i := e.slideIndex(afterID); i >= 0 {
			index = i + 1
		}
	}

	cmd := &addSlideCommand{
		slide:     NewDefaultSlide(),
		index:     index,
		selBefore: e.selectedSlideID,
	}
	e.push(cmd)
	return cmd.slide.ID
}

// DeleteSlide removes the slide with the given id. Deleting the last
// remaining slide, or an unknown id, is rejected: no state change, no
// command pushed, and false is returned.
//
// When the deleted slide was selected, selection moves to the slide that
// was adjacent before removal: the following slide, or the preceding one
// when the deleted slide was last.
func (e *Engine) DeleteSlide(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.doc.Slides) <= 1 {
		return false
	}
	i := e.slideIndex(id)
	if i < 0 {
		return false
	}

	selAfter := e.selectedSlideID
	if id == e.selectedSlideID {
		if i < len(e.doc.Slides)-1 {
			selAfter = e.doc.Slides[i+1].ID
		} else {
			selAfter = e.doc.Slides[i-1].ID
		}
	}

	e.push(&deleteSlideCommand{
		slide:     cloneSlide(e.doc.Slides[i]),
		index:     i,
		selBefore: e.selectedSlideID,
		selAfter:  selAfter,
	})
	return true
}

// DuplicateSlide inserts a deep copy of the slide (new id, identical
// content) immediately after the source; the duplicate becomes selected.
// Returns the duplicate's id, or "" for an unknown source.
func (e *Engine) DuplicateSlide(id string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.slideIndex(id)
	if i < 0 {
		return ""
	}

	dup := cloneSlide(e.doc.Slides[i])
	dup.ID = uuid.New().String()

	e.push(&duplicateSlideCommand{
		copy:      dup,
		index:     i + 1,
		selBefore: e.selectedSlideID,
	})
	return dup.ID
}

// UpdateSlide shallow-merges the patch into the slide. Returns false for an
// unknown id. An update with identical field values still pushes a command.
func (e *Engine) UpdateSlide(id string, patch SlidePatch) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.slideIndex(id)
	if i < 0 {
		return false
	}

	before := cloneSlide(e.doc.Slides[i])
	after := cloneSlide(before)
	applyPatch(&after, patch)

	e.push(&updateSlideCommand{before: before, after: after})
	return true
}

// ApplyTemplateToSlide overwrites the styling-only fields of one slide
// from the template. Returns false for an unknown id.
func (e *Engine) ApplyTemplateToSlide(id string, t models.SlideTemplate) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.slideIndex(id)
	if i < 0 {
		return false
	}

	e.push(&applyTemplateCommand{
		before:   cloneSlide(e.doc.Slides[i]),
		template: t,
	})
	return true
}

// ApplyTemplateToAll overwrites the styling-only fields of every slide.
// One command is pushed regardless of slide count, so a single undo
// restores all of them.
func (e *Engine) ApplyTemplateToAll(t models.SlideTemplate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.push(&applyTemplateAllCommand{
		before:   cloneSlides(e.doc.Slides),
		template: t,
	})
}

// ReplaceAllSlides swaps the whole slide list, used by bulk or generated
// content. An empty replacement list is rejected (the document must keep
// at least one slide). Selection moves to the first new slide.
func (e *Engine) ReplaceAllSlides(slides []models.Slide) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(slides) == 0 {
		return false
	}

	e.push(&replaceAllSlidesCommand{
		before:    cloneSlides(e.doc.Slides),
		after:     cloneSlides(slides),
		selBefore: e.selectedSlideID,
		selAfter:  slides[0].ID,
	})
	return true
}

// Undo reverts the most recent mutation and moves its command to the redo
// stack. Returns false, with no state change, when there is nothing to undo.
func (e *Engine) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.undoStack)
	if n == 0 {
		return false
	}
	cmd := e.undoStack[n-1]
	e.undoStack = e.undoStack[:n-1]

	cmd.revert(e)
	e.redoStack = append(e.redoStack, cmd)
	e.revision++
	return true
}

// Redo re-applies the most recently undone mutation. Returns false, with
// no state change, when there is nothing to redo.
func (e *Engine) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.redoStack)
	if n == 0 {
		return false
	}
	cmd := e.redoStack[n-1]
	e.redoStack = e.redoStack[:n-1]

	cmd.apply(e)
	e.undoStack = append(e.undoStack, cmd)
	e.revision++
	return true
}

// push applies a fresh mutation: the command runs, lands on the undo stack
// (bounded), and the redo stack is discarded. Caller holds the lock.
func (e *Engine) push(cmd command) {
	cmd.apply(e)
	e.undoStack = append(e.undoStack, cmd)
	if len(e.undoStack) > e.maxHistory {
		e.undoStack = e.undoStack[1:]
	}
	e.redoStack = nil
	e.revision++
}

// --- slide list helpers (caller holds the lock) ---

func (e *Engine) slideIndex(id string) int {
	for i := range e.doc.Slides {
		if e.doc.Slides[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) findSlide(id string) *models.Slide {
	if i := e.slideIndex(id); i >= 0 {
		return &e.doc.Slides[i]
	}
	return nil
}

func (e *Engine) insertSlideAt(s models.Slide, index int) {
	if index < 0 {
		index = 0
	}
	if index > len(e.doc.Slides) {
		index = len(e.doc.Slides)
	}
	e.doc.Slides = append(e.doc.Slides, models.Slide{})
	copy(e.doc.Slides[index+1:], e.doc.Slides[index:])
	e.doc.Slides[index] = s
}

func (e *Engine) removeSlideByID(id string) {
	if i := e.slideIndex(id); i >= 0 {
		e.doc.Slides = append(e.doc.Slides[:i], e.doc.Slides[i+1:]...)
	}
}

func (e *Engine) replaceSlideByID(id string, s models.Slide) {
	if i := e.slideIndex(id); i >= 0 {
		e.doc.Slides[i] = s
	}
}
