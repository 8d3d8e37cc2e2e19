// Package visibility defers preview work until the preview area is on screen.
package visibility

import (
	"context"
	"sync"
)

// DefaultThreshold is the visible fraction of the preview area that opens a gate.
const DefaultThreshold = 0.1

// Rect is an axis-aligned rectangle in layout coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Intersect returns the overlap of r and o, empty when they are disjoint.
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.Width, o.X+o.Width), min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Entry is one intersection observation.
type Entry struct {
	// Ratio is the visible fraction of the target, in [0, 1].
	Ratio float64
}

// EntryFor computes the observation of target inside viewport.
func EntryFor(target, viewport Rect) Entry {
	area := target.Area()
	if area == 0 {
		return Entry{}
	}
	return Entry{Ratio: target.Intersect(viewport).Area() / area}
}

// Observer delivers intersection entries for a target until disconnected.
type Observer interface {
	Observe(target Rect, fn func(Entry))
	Disconnect()
}

// Gate is a one-shot visibility signal. Once the observed target reaches the
// threshold the gate opens permanently and detaches its observer.
type Gate struct {
	threshold float64

	mu       sync.Mutex
	observer Observer
	open     bool
	done     chan struct{}
}

// NewGate creates a closed gate. A non-positive threshold uses DefaultThreshold.
func NewGate(threshold float64) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{threshold: threshold, done: make(chan struct{})}
}

// Attach starts observing target through o. Attaching to an open gate is a no-op.
func (g *Gate) Attach(o Observer, target Rect) {
	g.mu.Lock()
	if g.open {
		g.mu.Unlock()
		return
	}
	if g.observer != nil {
		g.observer.Disconnect()
	}
	g.observer = o
	g.mu.Unlock()

	o.Observe(target, g.Report)
}

// Report feeds one observation to the gate.
func (g *Gate) Report(e Entry) {
	if e.Ratio <= 0 || e.Ratio < g.threshold {
		return
	}
	g.mu.Lock()
	if g.open {
		g.mu.Unlock()
		return
	}
	g.open = true
	close(g.done)
	o := g.observer
	g.observer = nil
	g.mu.Unlock()

	if o != nil {
		o.Disconnect()
	}
}

// Satisfied reports whether the gate has opened.
func (g *Gate) Satisfied() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Done is closed when the gate opens.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until the gate opens or ctx ends.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close detaches the observer without opening the gate.
func (g *Gate) Close() {
	g.mu.Lock()
	o := g.observer
	g.observer = nil
	g.mu.Unlock()
	if o != nil {
		o.Disconnect()
	}
}
