package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Lllllllleong/documentpreview/internal/models"
)

// ErrSessionClosed is returned by Wait on a torn-down session.
var ErrSessionClosed = errors.New("render session closed")

// Phase is the render state of a session.
type Phase int

const (
	Idle Phase = iota
	Rendering
	RenderingWithPending
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Rendering:
		return "rendering"
	case RenderingWithPending:
		return "rendering-with-pending"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// state is the single render state value of a session. page is the page
// being drawn; next is only meaningful in RenderingWithPending.
type state struct {
	phase  Phase
	page   int
	next   int
	cancel context.CancelFunc
}

type event int

const (
	evRequest event = iota
	evDrawn
	evFailed
	evTeardown
)

// Session owns one decoded document and serializes draws onto its surface.
type Session struct {
	ID     string
	DocID  string
	source *models.Buffer

	scale   float64
	surface Surface
	logger  *slog.Logger

	mu        sync.Mutex
	doc       Document
	pageCount int
	current   int
	st        state
	closed    bool
	err       error
	settled   chan struct{}
}

func newSession(id, docID string, source *models.Buffer, doc Document, surface Surface, scale float64, logger *slog.Logger) *Session {
	settled := make(chan struct{})
	close(settled)
	return &Session{
		ID:        id,
		DocID:     docID,
		source:    source,
		scale:     scale,
		surface:   surface,
		logger:    logger.With("sessionId", id, "documentId", docID),
		doc:       doc,
		pageCount: doc.PageCount(),
		settled:   settled,
	}
}

// PageCount reports the number of pages of the document.
func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCount
}

// CurrentPage is the most recently accepted page request.
func (s *Session) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Phase reports the current render phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.phase
}

// Pending returns the queued page, if any.
func (s *Session) Pending() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.next, s.st.phase == RenderingWithPending
}

// Scale is the multiplier applied to page dimensions.
func (s *Session) Scale() float64 { return s.scale }

// Surface returns the session's drawing surface.
func (s *Session) Surface() Surface { return s.surface }

// RequestPage asks for page n to be drawn. Requests outside [1, PageCount]
// or on a closed session are ignored and reported as false. While a draw is
// in flight the request replaces any queued page; only the latest survives.
func (s *Session) RequestPage(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || n < 1 || n > s.pageCount {
		return false
	}
	s.current = n
	if start := s.step(evRequest, n); start != 0 {
		s.start(start)
	}
	return true
}

// Wait blocks until the session is idle. It returns the last render failure,
// ErrSessionClosed after teardown, or ctx's error.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	settled := s.settled
	s.mu.Unlock()

	select {
	case <-settled:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return s.err
}

// Close cancels any in-flight draw, clears all render state and releases the
// document. Cancellation is best effort and never reported. If a draw is
// still running the document is released when it returns.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	drawing := s.st.phase != Idle
	s.step(evTeardown, 0)
	s.closed = true
	s.logger.Debug("Render session torn down.", "drawInFlight", drawing)
	if drawing {
		return nil
	}
	return s.releaseLocked()
}

// step is the only place the render state changes. It must be called with
// s.mu held and returns a page the caller has to start drawing, or 0.
func (s *Session) step(ev event, page int) int {
	switch ev {
	case evRequest:
		if s.st.phase == Idle {
			return page
		}
		s.st.phase = RenderingWithPending
		s.st.next = page
		return 0

	case evDrawn:
		next := 0
		if s.st.phase == RenderingWithPending {
			next = s.st.next
		}
		if s.st.cancel != nil {
			s.st.cancel()
		}
		s.st = state{}
		if next == 0 {
			s.markSettled()
		}
		return next

	case evFailed, evTeardown:
		if s.st.cancel != nil {
			s.st.cancel()
		}
		s.st = state{}
		s.markSettled()
	}
	return 0
}

// start begins drawing page. Must be called with s.mu held.
func (s *Session) start(page int) {
	if s.st.cancel != nil {
		s.st.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	select {
	case <-s.settled:
		s.settled = make(chan struct{})
	default:
	}
	s.st = state{phase: Rendering, page: page, cancel: cancel}
	s.err = nil
	go s.draw(ctx, page)
}

func (s *Session) draw(ctx context.Context, page int) {
	frame, err := s.renderPage(ctx, page)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		s.logger.Debug("Page render cancelled.", "page", page)
		if s.closed && s.doc != nil {
			if err := s.releaseLocked(); err != nil {
				s.logger.Warn("Failed to release document after cancelled render.", "error", err)
			}
		}
		return
	}
	if err != nil {
		s.err = models.NewPreviewError(models.ErrKindRender, "Failed to render page: "+models.UserMessage(err), err)
		s.logger.Error("Page render failed.", "page", page, "error", err)
		s.step(evFailed, 0)
		return
	}

	s.surface.Resize(frame.Width, frame.Height)
	s.surface.Commit(frame)
	s.logger.Debug("Page drawn.", "page", page, "width", frame.Width, "height", frame.Height)

	if next := s.step(evDrawn, 0); next != 0 {
		s.start(next)
	}
}

// renderPage runs the decode-page, layout, draw sequence without the lock.
func (s *Session) renderPage(ctx context.Context, n int) (Frame, error) {
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return Frame{}, ErrSessionClosed
	}

	page, err := doc.Page(ctx, n)
	if err != nil {
		return Frame{}, fmt.Errorf("load page %d: %w", n, err)
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	vp := ViewportFor(page.Size(), s.scale)
	frame, err := page.Render(ctx, vp)
	if err != nil {
		return Frame{}, fmt.Errorf("draw page %d: %w", n, err)
	}
	frame.Page = n
	if frame.Width == 0 && frame.Height == 0 {
		frame.Width, frame.Height = vp.Width, vp.Height
	}
	return frame, nil
}

func (s *Session) markSettled() {
	select {
	case <-s.settled:
	default:
		close(s.settled)
	}
}

func (s *Session) releaseLocked() error {
	doc := s.doc
	s.doc = nil
	s.source = nil
	if doc == nil {
		return nil
	}
	if err := doc.Close(); err != nil {
		return fmt.Errorf("failed to release document: %w", err)
	}
	return nil
}
