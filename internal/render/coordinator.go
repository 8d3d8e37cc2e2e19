package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Lllllllleong/documentpreview/internal/models"
)

// Options configures a Coordinator. Zero values select defaults.
type Options struct {
	Scale      float64
	NewSurface func() Surface
	Logger     *slog.Logger
}

// Coordinator keeps one render session per document id.
type Coordinator struct {
	decoder    Decoder
	scale      float64
	newSurface func() Surface
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewCoordinator creates a Coordinator drawing documents opened by decoder.
func NewCoordinator(decoder Decoder, opts Options) *Coordinator {
	if opts.Scale <= 0 {
		opts.Scale = DefaultScale
	}
	if opts.NewSurface == nil {
		opts.NewSurface = func() Surface { return &Canvas{} }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{
		decoder:    decoder,
		scale:      opts.Scale,
		newSurface: opts.NewSurface,
		logger:     opts.Logger.With("component", "render-coordinator"),
		sessions:   make(map[string]*Session),
	}
}

// Open returns the session for docID, decoding source if the document is
// not open yet or its content changed. A content change tears down the
// previous session. The source buffer is never consumed: the decoder gets
// an owned copy. The first page is requested on a new session. When ctx
// ends during decoding the returned error wraps ctx's error instead of a
// load failure.
func (c *Coordinator) Open(ctx context.Context, docID string, source *models.Buffer) (*Session, error) {
	c.mu.Lock()
	existing := c.sessions[docID]
	c.mu.Unlock()
	if existing != nil && existing.sourceIs(source) {
		return existing, nil
	}

	owned, err := source.Copy()
	if err != nil {
		return nil, loadError(err)
	}
	data, err := owned.Transfer()
	if err != nil {
		return nil, loadError(err)
	}
	doc, err := c.decoder.Decode(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("document load abandoned: %w", ctxErr)
		}
		return nil, loadError(err)
	}

	s := newSession(uuid.NewString(), docID, source, doc, c.newSurface(), c.scale, c.logger)

	c.mu.Lock()
	prev := c.sessions[docID]
	c.sessions[docID] = s
	c.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			c.logger.Warn("Failed to close replaced session.", "documentId", docID, "error", err)
		}
	}
	c.logger.Info("Render session opened.", "documentId", docID, "sessionId", s.ID, "pageCount", s.PageCount())
	s.RequestPage(1)
	return s, nil
}

// Session returns the open session for docID.
func (c *Coordinator) Session(docID string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[docID]
	return s, ok
}

// Close tears down the session for docID, if any.
func (c *Coordinator) Close(docID string) error {
	c.mu.Lock()
	s, ok := c.sessions[docID]
	delete(c.sessions, docID)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close()
}

// CloseAll tears down every session.
func (c *Coordinator) CloseAll() {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = make(map[string]*Session)
	c.mu.Unlock()

	for id, s := range sessions {
		if err := s.Close(); err != nil {
			c.logger.Warn("Failed to close session.", "documentId", id, "error", err)
		}
	}
}

func (s *Session) sourceIs(b *models.Buffer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.source == b
}

// loadError maps a document load failure to the message shown to the user.
func loadError(err error) error {
	kind, _ := models.ErrorKindOf(err)
	switch kind {
	case models.ErrKindDetached:
		return models.NewPreviewError(models.ErrKindDetached,
			"PDF data has been detached. This usually happens when the same data is used multiple times. Please try again.", err)
	case models.ErrKindWorkerInit:
		return models.NewPreviewError(models.ErrKindWorkerInit,
			"Failed to initialize PDF worker. Please check your network connection and try again.", err)
	case models.ErrKindDecode:
		return models.NewPreviewError(models.ErrKindDecode,
			"Invalid PDF file format. The file may be corrupted or not a valid PDF.", err)
	}
	return models.NewPreviewError(models.ErrKindDecode, fmt.Sprintf("Failed to load PDF: %s", models.UserMessage(err)), err)
}
