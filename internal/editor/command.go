package editor

import (
	"slidehub/internal/models"
)

// CommandKind identifies an undoable unit of document mutation
type CommandKind string

const (
	CommandAddSlide         CommandKind = "add_slide"
	CommandDeleteSlide      CommandKind = "delete_slide"
	CommandDuplicateSlide   CommandKind = "duplicate_slide"
	CommandUpdateSlide      CommandKind = "update_slide"
	CommandApplyTemplate    CommandKind = "apply_template"
	CommandApplyTemplateAll CommandKind = "apply_template_all"
	CommandReplaceAllSlides CommandKind = "replace_all_slides"
)

// command is an applied mutation paired with enough data to invert it.
// Commands are immutable once pushed: the stacks push and pop whole
// commands and never mutate them in place.
//
// revert undoes the mutation, apply re-does it. Both operate on the raw
// engine state and assume the engine holds its lock.
type command interface {
	kind() CommandKind
	apply(e *Engine)
	revert(e *Engine)
}

// addSlideCommand inserts slide at index. Inverse: remove the slide at its id.
type addSlideCommand struct {
	slide     models.Slide
	index     int
	selBefore string
}

func (c *addSlideCommand) kind() CommandKind { return CommandAddSlide }

func (c *addSlideCommand) apply(e *Engine) {
	e.insertSlideAt(cloneSlide(c.slide), c.index)
	e.selectedSlideID = c.slide.ID
}

func (c *addSlideCommand) revert(e *Engine) {
	e.removeSlideByID(c.slide.ID)
	e.selectedSlideID = c.selBefore
}

// deleteSlideCommand removes a slide. Inverse: re-insert the removed slide
// at its original index.
type deleteSlideCommand struct {
	slide     models.Slide
	index     int
	selBefore string
	selAfter  string
}

func (c *deleteSlideCommand) kind() CommandKind { return CommandDeleteSlide }

func (c *deleteSlideCommand) apply(e *Engine) {
	e.removeSlideByID(c.slide.ID)
	e.selectedSlideID = c.selAfter
}

func (c *deleteSlideCommand) revert(e *Engine) {
	e.insertSlideAt(cloneSlide(c.slide), c.index)
	e.selectedSlideID = c.selBefore
}

// duplicateSlideCommand inserts a deep copy after the source slide
type duplicateSlideCommand struct {
	copy      models.Slide
	index     int
	selBefore string
}

func (c *duplicateSlideCommand) kind() CommandKind { return CommandDuplicateSlide }

func (c *duplicateSlideCommand) apply(e *Engine) {
	e.insertSlideAt(cloneSlide(c.copy), c.index)
	e.selectedSlideID = c.copy.ID
}

func (c *duplicateSlideCommand) revert(e *Engine) {
	e.removeSlideByID(c.copy.ID)
	e.selectedSlideID = c.selBefore
}

// updateSlideCommand shallow-merges fields. Inverse: the full pre-merge
// slide snapshot, which restores an observably identical slide.
type updateSlideCommand struct {
	before models.Slide
	after  models.Slide
}

func (c *updateSlideCommand) kind() CommandKind { return CommandUpdateSlide }

func (c *updateSlideCommand) apply(e *Engine) {
	e.replaceSlideByID(c.after.ID, cloneSlide(c.after))
}

func (c *updateSlideCommand) revert(e *Engine) {
	e.replaceSlideByID(c.before.ID, cloneSlide(c.before))
}

// applyTemplateCommand restyles one slide
type applyTemplateCommand struct {
	before   models.Slide
	template models.SlideTemplate
}

func (c *applyTemplateCommand) kind() CommandKind { return CommandApplyTemplate }

func (c *applyTemplateCommand) apply(e *Engine) {
	if s := e.findSlide(c.before.ID); s != nil {
		applyTemplate(s, c.template)
	}
}

func (c *applyTemplateCommand) revert(e *Engine) {
	e.replaceSlideByID(c.before.ID, cloneSlide(c.before))
}

// applyTemplateAllCommand restyles every slide as ONE undoable command
type applyTemplateAllCommand struct {
	before   []models.Slide
	template models.SlideTemplate
}

func (c *applyTemplateAllCommand) kind() CommandKind { return CommandApplyTemplateAll }

func (c *applyTemplateAllCommand) apply(e *Engine) {
	for i := range e.doc.Slides {
		applyTemplate(&e.doc.Slides[i], c.template)
	}
}

func (c *applyTemplateAllCommand) revert(e *Engine) {
	e.doc.Slides = cloneSlides(c.before)
}

// replaceAllSlidesCommand swaps the whole slide list. Inverse: the entire
// previous list.
type replaceAllSlidesCommand struct {
	before    []models.Slide
	after     []models.Slide
	selBefore string
	selAfter  string
}

func (c *replaceAllSlidesCommand) kind() CommandKind { return CommandReplaceAllSlides }

func (c *replaceAllSlidesCommand) apply(e *Engine) {
	e.doc.Slides = cloneSlides(c.after)
	e.selectedSlideID = c.selAfter
}

func (c *replaceAllSlidesCommand) revert(e *Engine) {
	e.doc.Slides = cloneSlides(c.before)
	e.selectedSlideID = c.selBefore
}
