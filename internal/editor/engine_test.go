package editor

import (
	"fmt"
	"testing"

	"slidehub/internal/models"
)

func strPtr(s string) *string { return &s }

func testDocument(n int) models.Document {
	doc := models.Document{ID: "doc-1", Title: "Test Deck"}
	for i := 0; i < n; i++ {
		doc.Slides = append(doc.Slides, models.Slide{
			ID:     fmt.Sprintf("slide-%d", i+1),
			Title:  fmt.Sprintf("Slide %d", i+1),
			Layout: models.LayoutContent,
		})
	}
	return doc
}

func slideIDs(doc models.Document) []string {
	ids := make([]string, len(doc.Slides))
	for i, s := range doc.Slides {
		ids[i] = s.ID
	}
	return ids
}

func TestNewEngineInjectsDefaultSlide(t *testing.T) {
	e := NewEngine(models.Document{ID: "doc-1"})

	doc := e.Document()
	if len(doc.Slides) != 1 {
		t.Fatalf("expected 1 slide, got %d", len(doc.Slides))
	}
	if doc.Slides[0].ID == "" {
		t.Error("default slide should have an ID")
	}
	if e.SelectedSlideID() != doc.Slides[0].ID {
		t.Errorf("selection should point at the default slide, got %q", e.SelectedSlideID())
	}
	if e.CanUndo() {
		t.Error("fresh engine should have nothing to undo")
	}
	if e.Revision() != 0 {
		t.Errorf("fresh engine should be at revision 0, got %d", e.Revision())
	}
}

func TestAddSlide(t *testing.T) {
	t.Run("appends at end when afterID is empty", func(t *testing.T) {
		e := NewEngine(testDocument(2))
		newID := e.AddSlide("")
		ids := slideIDs(e.Document())
		if len(ids) != 3 || ids[2] != newID {
			t.Errorf("expected new slide appended at end, got %v", ids)
		}
	})

	t.Run("inserts after the given slide", func(t *testing.T) {
		e := NewEngine(testDocument(3))
		newID := e.AddSlide("slide-1")
		ids := slideIDs(e.Document())
		if ids[1] != newID {
			t.Errorf("expected new slide at index 1, got %v", ids)
		}
	})

	t.Run("unknown afterID appends at end", func(t *testing.T) {
		e := NewEngine(testDocument(2))
		newID := e.AddSlide("nope")
		ids := slideIDs(e.Document())
		if ids[2] != newID {
			t.Errorf("expected append on unknown afterID, got %v", ids)
		}
	})

	t.Run("new slide becomes selected", func(t *testing.T) {
		e := NewEngine(testDocument(2))
		newID := e.AddSlide("")
		if e.SelectedSlideID() != newID {
			t.Errorf("expected selection %q, got %q", newID, e.SelectedSlideID())
		}
	})
}

func TestDeleteSlide(t *testing.T) {
	t.Run("rejects deleting the last remaining slide", func(t *testing.T) {
		e := NewEngine(testDocument(1))
		rev := e.Revision()
		if e.DeleteSlide("slide-1") {
			t.Fatal("deleting the only slide must be rejected")
		}
		if e.Revision() != rev {
			t.Error("rejected delete must not bump the revision")
		}
		if e.CanUndo() {
			t.Error("rejected delete must not push a command")
		}
	})

	t.Run("rejects unknown id", func(t *testing.T) {
		e := NewEngine(testDocument(3))
		if e.DeleteSlide("nope") {
			t.Fatal("unknown id must be rejected")
		}
	})

	t.Run("selection moves to the following slide", func(t *testing.T) {
		e := NewEngine(testDocument(3))
		e.SelectSlide("slide-2")
		if !e.DeleteSlide("slide-2") {
			t.Fatal("delete failed")
		}
		if e.SelectedSlideID() != "slide-3" {
			t.Errorf("expected selection slide-3, got %q", e.SelectedSlideID())
		}
	})

	t.Run("deleting the last slide selects the preceding one", func(t *testing.T) {
		e := NewEngine(testDocument(3))
		e.SelectSlide("slide-3")
		if !e.DeleteSlide("slide-3") {
			t.Fatal("delete failed")
		}
		if e.SelectedSlideID() != "slide-2" {
			t.Errorf("expected selection slide-2, got %q", e.SelectedSlideID())
		}
	})

	t.Run("deleting an unselected slide keeps the selection", func(t *testing.T) {
		e := NewEngine(testDocument(3))
		e.SelectSlide("slide-1")
		e.DeleteSlide("slide-3")
		if e.SelectedSlideID() != "slide-1" {
			t.Errorf("expected selection slide-1, got %q", e.SelectedSlideID())
		}
	})
}

func TestDuplicateSlide(t *testing.T) {
	e := NewEngine(testDocument(2))
	e.UpdateSlide("slide-1", SlidePatch{
		Title:    strPtr("Original"),
		Elements: map[string]interface{}{"shape": "circle"},
	})

	dupID := e.DuplicateSlide("slide-1")
	if dupID == "" {
		t.Fatal("duplicate failed")
	}
	if dupID == "slide-1" {
		t.Fatal("duplicate must get a fresh id")
	}

	doc := e.Document()
	if doc.Slides[1].ID != dupID {
		t.Errorf("duplicate should sit right after the source, got %v", slideIDs(doc))
	}
	if doc.Slides[1].Title != "Original" {
		t.Errorf("duplicate content mismatch: %q", doc.Slides[1].Title)
	}
	if doc.Slides[1].Elements["shape"] != "circle" {
		t.Error("duplicate should carry the elements payload")
	}
	if e.SelectedSlideID() != dupID {
		t.Errorf("duplicate should be selected, got %q", e.SelectedSlideID())
	}

	if got := e.DuplicateSlide("nope"); got != "" {
		t.Errorf("unknown source must return empty id, got %q", got)
	}
}

func TestUpdateSlide(t *testing.T) {
	e := NewEngine(testDocument(1))

	if !e.UpdateSlide("slide-1", SlidePatch{Title: strPtr("Renamed")}) {
		t.Fatal("update failed")
	}
	doc := e.Document()
	if doc.Slides[0].Title != "Renamed" {
		t.Errorf("expected title Renamed, got %q", doc.Slides[0].Title)
	}
	if doc.Slides[0].Layout != models.LayoutContent {
		t.Error("unpatched fields must be untouched")
	}

	if e.UpdateSlide("nope", SlidePatch{Title: strPtr("x")}) {
		t.Error("unknown id must be rejected")
	}

	// Identical values still push a command
	rev := e.Revision()
	e.UpdateSlide("slide-1", SlidePatch{Title: strPtr("Renamed")})
	if e.Revision() != rev+1 {
		t.Error("no-op update must still count as a mutation")
	}
}

func TestUpdateSlideUndoRestoresFullSnapshot(t *testing.T) {
	e := NewEngine(testDocument(1))
	e.UpdateSlide("slide-1", SlidePatch{
		Title:    strPtr("v1"),
		Content:  strPtr("body"),
		Elements: map[string]interface{}{"a": 1},
	})
	e.UpdateSlide("slide-1", SlidePatch{
		Title:    strPtr("v2"),
		Elements: map[string]interface{}{"b": 2},
	})

	if !e.Undo() {
		t.Fatal("undo failed")
	}
	s := e.Document().Slides[0]
	if s.Title != "v1" || s.Content != "body" {
		t.Errorf("undo should restore the pre-merge slide, got title=%q content=%q", s.Title, s.Content)
	}
	if _, ok := s.Elements["a"]; !ok {
		t.Error("undo should restore the previous elements payload")
	}
	if _, ok := s.Elements["b"]; ok {
		t.Error("undone elements must not leak through")
	}
}

func TestApplyTemplate(t *testing.T) {
	tmpl := models.SlideTemplate{Background: "#111", TextColor: "#eee", AccentColor: "#f00"}

	t.Run("single slide keeps content", func(t *testing.T) {
		e := NewEngine(testDocument(2))
		e.UpdateSlide("slide-1", SlidePatch{Content: strPtr("keep me")})

		if !e.ApplyTemplateToSlide("slide-1", tmpl) {
			t.Fatal("apply failed")
		}
		s := e.Document().Slides[0]
		if s.Background != "#111" || s.TextColor != "#eee" || s.AccentColor != "#f00" {
			t.Errorf("styling not applied: %+v", s)
		}
		if s.Content != "keep me" {
			t.Error("template must never touch content fields")
		}
		if other := e.Document().Slides[1]; other.Background == "#111" {
			t.Error("template must only touch the target slide")
		}
	})

	t.Run("all slides undo as one command", func(t *testing.T) {
		e := NewEngine(testDocument(3))
		e.ApplyTemplateToAll(tmpl)

		for i, s := range e.Document().Slides {
			if s.Background != "#111" {
				t.Errorf("slide %d missing template styling", i)
			}
		}

		if !e.Undo() {
			t.Fatal("undo failed")
		}
		for i, s := range e.Document().Slides {
			if s.Background != "" {
				t.Errorf("slide %d styling should be reverted by a single undo", i)
			}
		}
		if e.CanUndo() {
			t.Error("apply-to-all must be exactly one command")
		}
	})
}

func TestReplaceAllSlides(t *testing.T) {
	e := NewEngine(testDocument(2))

	if e.ReplaceAllSlides(nil) {
		t.Fatal("empty replacement must be rejected")
	}

	replacement := []models.Slide{
		{ID: "gen-1", Title: "Generated 1"},
		{ID: "gen-2", Title: "Generated 2"},
	}
	if !e.ReplaceAllSlides(replacement) {
		t.Fatal("replace failed")
	}
	if got := slideIDs(e.Document()); got[0] != "gen-1" || got[1] != "gen-2" {
		t.Errorf("unexpected slide list %v", got)
	}
	if e.SelectedSlideID() != "gen-1" {
		t.Errorf("selection should move to the first new slide, got %q", e.SelectedSlideID())
	}

	if !e.Undo() {
		t.Fatal("undo failed")
	}
	if got := slideIDs(e.Document()); got[0] != "slide-1" || got[1] != "slide-2" {
		t.Errorf("undo should restore the previous list, got %v", got)
	}
	if e.SelectedSlideID() != "slide-1" {
		t.Errorf("undo should restore the previous selection, got %q", e.SelectedSlideID())
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	e := NewEngine(testDocument(1))

	newID := e.AddSlide("")
	e.UpdateSlide(newID, SlidePatch{Title: strPtr("Edited")})
	e.DeleteSlide("slide-1")

	want := e.Document()
	wantSel := e.SelectedSlideID()

	for e.Undo() {
	}
	if e.CanUndo() {
		t.Fatal("undo stack should be drained")
	}
	if got := slideIDs(e.Document()); len(got) != 1 || got[0] != "slide-1" {
		t.Errorf("full undo should restore the initial document, got %v", got)
	}

	for e.Redo() {
	}
	got := e.Document()
	if len(got.Slides) != len(want.Slides) {
		t.Fatalf("redo should restore %d slides, got %d", len(want.Slides), len(got.Slides))
	}
	for i := range want.Slides {
		if got.Slides[i].ID != want.Slides[i].ID || got.Slides[i].Title != want.Slides[i].Title {
			t.Errorf("slide %d mismatch after redo: got %+v want %+v", i, got.Slides[i], want.Slides[i])
		}
	}
	if e.SelectedSlideID() != wantSel {
		t.Errorf("redo should restore selection %q, got %q", wantSel, e.SelectedSlideID())
	}
}

func TestMutationClearsRedoStack(t *testing.T) {
	e := NewEngine(testDocument(1))
	e.AddSlide("")
	e.Undo()
	if !e.CanRedo() {
		t.Fatal("expected a redoable command")
	}

	e.AddSlide("")
	if e.CanRedo() {
		t.Error("a fresh mutation must clear the redo stack")
	}
}

func TestSelectSlideIsNotAMutation(t *testing.T) {
	e := NewEngine(testDocument(2))
	e.AddSlide("")
	e.Undo()

	rev := e.Revision()
	if !e.SelectSlide("slide-2") {
		t.Fatal("select failed")
	}
	if !e.CanRedo() {
		t.Error("selection change must not clear the redo stack")
	}
	if e.Revision() != rev {
		t.Error("selection change must not bump the revision")
	}

	if e.SelectSlide("nope") {
		t.Error("selecting an unknown slide must fail")
	}
}

func TestUndoRedoEmptyStacks(t *testing.T) {
	e := NewEngine(testDocument(1))
	if e.Undo() {
		t.Error("undo on empty stack must return false")
	}
	if e.Redo() {
		t.Error("redo on empty stack must return false")
	}
	if e.Revision() != 0 {
		t.Error("failed undo/redo must not bump the revision")
	}
}

func TestUndoStackBound(t *testing.T) {
	e := NewEngine(testDocument(1))

	for i := 0; i < DefaultMaxHistory+20; i++ {
		e.UpdateSlide("slide-1", SlidePatch{Title: strPtr(fmt.Sprintf("v%d", i))})
	}

	undos := 0
	for e.Undo() {
		undos++
	}
	if undos != DefaultMaxHistory {
		t.Errorf("expected exactly %d undoable commands, got %d", DefaultMaxHistory, undos)
	}
	// The oldest commands fell off, so full undo lands on v19, not the original
	if got := e.Document().Slides[0].Title; got != "v19" {
		t.Errorf("expected oldest reachable state v19, got %q", got)
	}
}

func TestRevisionCountsUndoRedo(t *testing.T) {
	e := NewEngine(testDocument(1))
	e.AddSlide("")
	e.Undo()
	e.Redo()
	if e.Revision() != 3 {
		t.Errorf("expected revision 3 (mutation + undo + redo), got %d", e.Revision())
	}
}

func TestDocumentReturnsDeepCopy(t *testing.T) {
	e := NewEngine(testDocument(1))
	e.UpdateSlide("slide-1", SlidePatch{Elements: map[string]interface{}{"k": "v"}})

	doc := e.Document()
	doc.Slides[0].Title = "tampered"
	doc.Slides[0].Elements["k"] = "tampered"

	fresh := e.Document()
	if fresh.Slides[0].Title == "tampered" {
		t.Error("caller mutation leaked into the engine's document")
	}
	if fresh.Slides[0].Elements["k"] == "tampered" {
		t.Error("caller mutation leaked into the elements payload")
	}
}

// Scenario: add, edit, delete, then walk the whole history back and forward
func TestEditSessionScenario(t *testing.T) {
	e := NewEngine(models.Document{ID: "doc-1", Slides: []models.Slide{
		{ID: "intro", Title: "Intro", Layout: models.LayoutTitle},
	}})

	body := e.AddSlide("intro")
	e.UpdateSlide(body, SlidePatch{Title: strPtr("Agenda"), Content: strPtr("1. Greetings")})
	e.ApplyTemplateToAll(models.SlideTemplate{Background: "#123"})
	dup := e.DuplicateSlide(body)
	e.DeleteSlide("intro")

	doc := e.Document()
	if got := slideIDs(doc); len(got) != 2 || got[0] != body || got[1] != dup {
		t.Fatalf("unexpected final list %v", got)
	}

	steps := 0
	for e.Undo() {
		steps++
	}
	if steps != 5 {
		t.Errorf("expected 5 undo steps, got %d", steps)
	}
	doc = e.Document()
	if len(doc.Slides) != 1 || doc.Slides[0].ID != "intro" {
		t.Errorf("full undo should restore the single intro slide, got %v", slideIDs(doc))
	}
	if doc.Slides[0].Background != "" {
		t.Error("template styling should be fully reverted")
	}

	for e.Redo() {
	}
	doc = e.Document()
	if got := slideIDs(doc); len(got) != 2 || got[0] != body {
		t.Errorf("full redo should rebuild the final list, got %v", got)
	}
	if doc.Slides[0].Title != "Agenda" {
		t.Errorf("redo lost the slide edit, got %q", doc.Slides[0].Title)
	}
}
