// Package canvas is the drawing surface generated visualizations render
// onto: figures, axes, artists, football pitches and PNG capture.
package canvas

import (
	"errors"
	"sync"
)

// ErrNotAcquired is returned when the surface is used outside Acquire/Release.
var ErrNotAcquired = errors.New("drawing surface not acquired")

// Surface owns the current figure. One execution holds it at a time:
// Acquire blocks until the previous holder has released it, and both
// Acquire and Release leave a blank figure behind.
type Surface struct {
	mu   sync.Mutex
	held bool
	fig  *Figure
}

// NewSurface returns an idle surface.
func NewSurface() *Surface { return &Surface{fig: NewFigure(0, 0)} }

// Acquire takes exclusive use of the surface and returns a blank figure.
func (s *Surface) Acquire() *Figure {
	s.mu.Lock()
	s.held = true
	s.fig = NewFigure(0, 0)
	return s.fig
}

// Release resets the surface and hands it to the next caller.
func (s *Surface) Release() {
	s.fig = NewFigure(0, 0)
	s.held = false
	s.mu.Unlock()
}

// Current returns the figure module-level plotting calls draw on.
func (s *Surface) Current() *Figure { return s.fig }

// Replace makes f the current figure.
func (s *Surface) Replace(f *Figure) { s.fig = f }

// Capture renders the current figure to PNG.
func (s *Surface) Capture(dpi float64) ([]byte, error) {
	if !s.held {
		return nil, ErrNotAcquired
	}
	return RenderPNG(s.fig, dpi)
}
