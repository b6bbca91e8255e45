package imagepkg

import (
	"fmt"
	"image"
	"sync"
)

// View is what a session attaches to its output target: a *RasterView or,
// in memory mode, a *Stack.
type View interface {
	viewSize() (float64, float64)
}

// Output is the place a session presents its work in.
type Output interface {
	// Clear drops whatever was attached before.
	Clear()
	Attach(v View)
}

// RasterView presents the raster surface at the zoomed view size.
type RasterView struct {
	Surface       *Surface
	Width, Height float64
}

func (r *RasterView) viewSize() (float64, float64) { return r.Width, r.Height }

// Node is one positioned image in a memory-mode stack. Coordinates are in
// view units (already multiplied by the zoom).
type Node struct {
	Image  image.Image `json:"-"`
	Src    string      `json:"src"`
	ID     string      `json:"id,omitempty"`
	Class  string      `json:"class,omitempty"`
	Left   float64     `json:"left"`
	Top    float64     `json:"top"`
	Width  float64     `json:"width"`
	Height float64     `json:"height"`
}

// Stack is a clipping container with the base image at the bottom and
// overlays stacked on top in draw order. Overlays stay individually
// removable.
type Stack struct {
	mu       sync.Mutex
	width    float64
	height   float64
	base     Node
	overlays []Node
}

func newStack(width, height float64, base Node) *Stack {
	return &Stack{width: width, height: height, base: base}
}

func (s *Stack) viewSize() (float64, float64) { return s.width, s.height }

// Size is the container size.
func (s *Stack) Size() (float64, float64) { return s.width, s.height }

func (s *Stack) Base() Node { return s.base }

// Overlays returns a copy of the overlay nodes, bottom first.
func (s *Stack) Overlays() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Node, len(s.overlays))
	copy(out, s.overlays)
	return out
}

// Append clones n into the stack. Identity and class are stripped so the
// clone cannot pick up styles meant for the original.
func (s *Stack) Append(n Node) {
	n.ID, n.Class = "", ""
	s.mu.Lock()
	s.overlays = append(s.overlays, n)
	s.mu.Unlock()
}

// Remove deletes the i-th overlay.
func (s *Stack) Remove(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.overlays) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrNoLayer, i, len(s.overlays))
	}
	s.overlays = append(s.overlays[:i], s.overlays[i+1:]...)
	return nil
}

// Target is an Output that keeps the last attached view.
type Target struct {
	mu   sync.Mutex
	view View
}

func (t *Target) Clear() {
	t.mu.Lock()
	t.view = nil
	t.mu.Unlock()
}

func (t *Target) Attach(v View) {
	t.mu.Lock()
	t.view = v
	t.mu.Unlock()
}

// View returns the attached view, or nil.
func (t *Target) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

// Overlay returns the i-th overlay node.
func (s *Stack) Overlay(i int) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.overlays) {
		return Node{}, false
	}
	return s.overlays[i], true
}
