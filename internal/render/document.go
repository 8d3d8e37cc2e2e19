// Package render coordinates cancellable, coalesced page rendering of
// paginated documents onto a single drawing surface per document.
package render

import (
	"context"
	"math"
	"sync"
)

// DefaultScale is the multiplier applied to a page's natural size.
const DefaultScale = 1.5

// Decoder opens a paginated document from bytes it takes ownership of.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (Document, error)
}

// Document is a decoded paginated document owned by one Session.
type Document interface {
	PageCount() int
	Page(ctx context.Context, n int) (Page, error)
	Close() error
}

// Page is one decoded page.
type Page interface {
	// Size is the natural page size in points.
	Size() Size
	// Render draws the page at the given viewport. It must honour ctx.
	Render(ctx context.Context, vp Viewport) (Frame, error)
}

type Size struct {
	Width, Height float64
}

// Viewport is the pixel geometry a page is drawn at.
type Viewport struct {
	Width, Height int
	Scale         float64
}

// ViewportFor scales a natural page size uniformly.
func ViewportFor(s Size, scale float64) Viewport {
	return Viewport{
		Width:  int(math.Floor(s.Width * scale)),
		Height: int(math.Floor(s.Height * scale)),
		Scale:  scale,
	}
}

// Frame is the drawn output of one page.
type Frame struct {
	Page   int
	Width  int
	Height int
	Data   []byte
}

// Surface is the shared drawing target of a session. Only the session's
// coordinator goroutine that holds the session lock writes to it.
type Surface interface {
	Resize(width, height int)
	Commit(f Frame)
}

// Canvas is an in-memory Surface that keeps the last committed frame.
type Canvas struct {
	mu      sync.Mutex
	width   int
	height  int
	frame   Frame
	commits int
}

func (c *Canvas) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = width, height
}

func (c *Canvas) Commit(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = f
	c.commits++
}

// Snapshot returns the last committed frame and the surface size.
func (c *Canvas) Snapshot() (Frame, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame, c.width, c.height
}

// Commits counts committed frames.
func (c *Canvas) Commits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits
}
