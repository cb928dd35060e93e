package editor

import (
	"github.com/google/uuid"

	"slidehub/internal/models"
)

// SlidePatch is the merge payload UpdateSlide consumes. It lives in models
// so the WebSocket layer can decode it straight off the wire.
type SlidePatch = models.SlidePatch

// NewDefaultSlide returns a fresh content-layout slide with a new stable ID
func NewDefaultSlide() models.Slide {
	return models.Slide{
		ID:     uuid.New().String(),
		Title:  "New Slide",
		Layout: models.LayoutContent,
	}
}

// cloneSlide deep-copies a slide, including the opaque elements payload
func cloneSlide(s models.Slide) models.Slide {
	c := s
	if s.Elements != nil {
		c.Elements = make(map[string]interface{}, len(s.Elements))
		for k, v := range s.Elements {
			c.Elements[k] = v
		}
	}
	return c
}

// cloneSlides deep-copies a slide list
func cloneSlides(slides []models.Slide) []models.Slide {
	out := make([]models.Slide, len(slides))
	for i, s := range slides {
		out[i] = cloneSlide(s)
	}
	return out
}

// cloneDocument deep-copies a document
func cloneDocument(d models.Document) models.Document {
	c := d
	c.Slides = cloneSlides(d.Slides)
	return c
}

// applyPatch shallow-merges a patch into a slide, in place
func applyPatch(s *models.Slide, p SlidePatch) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Subtitle != nil {
		s.Subtitle = *p.Subtitle
	}
	if p.Content != nil {
		s.Content = *p.Content
	}
	if p.Layout != nil {
		s.Layout = *p.Layout
	}
	if p.Background != nil {
		s.Background = *p.Background
	}
	if p.TextColor != nil {
		s.TextColor = *p.TextColor
	}
	if p.AccentColor != nil {
		s.AccentColor = *p.AccentColor
	}
	if p.Font != nil {
		s.Font = *p.Font
	}
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
	if p.Elements != nil {
		s.Elements = make(map[string]interface{}, len(p.Elements))
		for k, v := range p.Elements {
			s.Elements[k] = v
		}
	}
}

// applyTemplate overwrites the styling-only fields from a template.
// Content fields are never touched.
func applyTemplate(s *models.Slide, t models.SlideTemplate) {
	s.Background = t.Background
	s.TextColor = t.TextColor
	s.AccentColor = t.AccentColor
}
