// Package selection tracks which annotated term, if any, has its
// explanation open.
package selection

import (
	"sync"

	"github.com/dgallion1/insurspeak/internal/domain"
)

// Controller holds at most one open annotation.
type Controller struct {
	mu   sync.Mutex
	open *domain.TermAnnotation
}

// New returns a closed controller.
func New() *Controller {
	return &Controller{}
}

// Activate opens a, or closes it when a is already open. Activating a
// different annotation replaces the open one.
func (c *Controller) Activate(a *domain.TermAnnotation) {
	if a == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open != nil && (c.open == a || c.open.SameSpan(*a)) {
		c.open = nil
		return
	}
	c.open = a
}

// ActivateAt activates the annotated segment covering exactly [start, end).
// It returns false when no such segment exists.
func (c *Controller) ActivateAt(segments []domain.Segment, start, end int) bool {
	for _, s := range segments {
		if s.Kind == domain.SegmentAnnotated && s.StartIndex == start && s.EndIndex == end {
			c.Activate(s.Annotation)
			return true
		}
	}
	return false
}

// Dismiss closes any open explanation.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	c.open = nil
	c.mu.Unlock()
}

// Open returns the open annotation, or nil.
func (c *Controller) Open() *domain.TermAnnotation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// IsOpen reports whether a is the open annotation.
func (c *Controller) IsOpen(a *domain.TermAnnotation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return a != nil && c.open != nil && (c.open == a || c.open.SameSpan(*a))
}
