package handlers

import (
	"slidehub/internal/editor"
	"slidehub/internal/models"
)

// applyEdit dispatches one named mutation to the tab's engine and builds the
// edit_result acknowledgement. Rejected mutations (unknown ids, last slide,
// empty replacement list, empty undo/redo stacks) come back applied=false
// with no engine state change.
func applyEdit(engine *editor.Engine, req *models.EditRequest) models.ServerMessage {
	applied := false
	newSlideID := ""

	switch req.Action {
	case "add_slide":
		newSlideID = engine.AddSlide(req.AfterID)
		applied = true
	case "delete_slide":
		applied = engine.DeleteSlide(req.SlideID)
	case "duplicate_slide":
		newSlideID = engine.DuplicateSlide(req.SlideID)
		applied = newSlideID != ""
	case "update_slide":
		if req.Patch != nil {
			applied = engine.UpdateSlide(req.SlideID, *req.Patch)
		}
	case "apply_template":
		if req.Template != nil {
			applied = engine.ApplyTemplateToSlide(req.SlideID, *req.Template)
		}
	case "apply_template_all":
		if req.Template != nil {
			engine.ApplyTemplateToAll(*req.Template)
			applied = true
		}
	case "replace_slides":
		applied = engine.ReplaceAllSlides(req.Slides)
	case "select_slide":
		applied = engine.SelectSlide(req.SlideID)
	case "undo":
		applied = engine.Undo()
	case "redo":
		applied = engine.Redo()
	default:
		return models.ServerMessage{
			Type:         "error",
			ErrorCode:    "bad_message",
			ErrorMessage: "unknown edit action: " + req.Action,
		}
	}

	canUndo := engine.CanUndo()
	canRedo := engine.CanRedo()
	return models.ServerMessage{
		Type:     "edit_result",
		Action:   req.Action,
		Applied:  &applied,
		SlideID:  newSlideID,
		Revision: engine.Revision(),
		CanUndo:  &canUndo,
		CanRedo:  &canRedo,
	}
}
