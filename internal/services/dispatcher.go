package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/documentpreview/internal/cache"
	"github.com/Lllllllleong/documentpreview/internal/doctype"
	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/Lllllllleong/documentpreview/internal/render"
	"github.com/Lllllllleong/documentpreview/internal/renderers"
	"github.com/Lllllllleong/documentpreview/internal/visibility"
)

// VisibilityGate reports whether a preview area has become visible.
type VisibilityGate interface {
	Satisfied() bool
}

// ImageLoader probes an image URL.
type ImageLoader interface {
	Load(ctx context.Context, url string) (renderers.ImageInfo, error)
}

// OfficeConverter converts office files for display.
type OfficeConverter interface {
	Convert(ctx context.Context, kind models.Kind, data []byte) (models.OfficeView, error)
}

// Dispatcher routes a document to the renderer for its kind.
type Dispatcher struct {
	cache       *cache.ContentCache
	coordinator *render.Coordinator
	images      ImageLoader
	markdown    *renderers.MarkdownRenderer
	office      OfficeConverter
	logger      *slog.Logger
}

// DispatcherDeps are the collaborators of a Dispatcher.
type DispatcherDeps struct {
	Cache       *cache.ContentCache
	Coordinator *render.Coordinator
	Images      ImageLoader
	Office      OfficeConverter
	Logger      *slog.Logger
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cache:       deps.Cache,
		coordinator: deps.Coordinator,
		images:      deps.Images,
		markdown:    renderers.NewMarkdownRenderer(),
		office:      deps.Office,
		logger:      logger,
	}
}

// Preview produces the result for desc. Until gate is satisfied, and when
// ctx ends before the preview is ready, the result is a loading marker. When desc carries no content it is hydrated from the
// cache; that is the only field Preview writes.
func (d *Dispatcher) Preview(ctx context.Context, desc *models.DocumentDescriptor, gate VisibilityGate) models.Result {
	info := desc.Info()
	if gate != nil && !gate.Satisfied() {
		return models.Loading(info)
	}

	if desc.Content.Absent() {
		if cached, ok := d.cache.Get(desc.ID); ok {
			desc.Content = cached
		}
	}
	if desc.Content.Absent() {
		return models.NoContent(info)
	}

	kind := doctype.Normalize(desc.Kind)
	logCtx := d.logger.With("documentId", desc.ID, "kind", kind)

	view, err := d.dispatch(ctx, logCtx, desc, kind)
	switch {
	case errors.Is(err, errMismatchedContent):
		logCtx.Debug("Content does not match the declared kind.", "contentType", desc.Content.Type())
		return models.Unsupported(info, kind)
	case err != nil && ctx.Err() != nil:
		logCtx.Debug("Preview cancelled.", "error", err)
		return models.Loading(info)
	case err != nil:
		logCtx.Error("Preview failed.", "error", err)
		return models.Failed(info, kind, err)
	case view == nil:
		return models.Unsupported(info, kind)
	}
	return models.Rendered(info, view)
}

var errMismatchedContent = errors.New("content does not match kind")

func (d *Dispatcher) dispatch(ctx context.Context, logCtx *slog.Logger, desc *models.DocumentDescriptor, kind models.Kind) (models.View, error) {
	if kind.Office() {
		return d.previewOffice(ctx, desc, kind)
	}
	switch kind {
	case models.KindImage:
		return d.previewImage(ctx, desc)
	case models.KindPDF:
		return d.previewPDF(ctx, logCtx, desc)
	case models.KindText:
		text, err := d.cacheText(desc)
		if err != nil {
			return nil, err
		}
		return models.TextView{Text: text}, nil
	case models.KindCSV:
		text, err := d.cacheText(desc)
		if err != nil {
			return nil, err
		}
		rows, err := renderers.ParseTable(text)
		if err != nil {
			return nil, models.NewPreviewError(models.ErrKindDecode, "Error parsing CSV", err)
		}
		return models.TableView{Rows: rows}, nil
	case models.KindMarkdown:
		text, err := d.cacheText(desc)
		if err != nil {
			return nil, err
		}
		out, err := d.markdown.Render(text)
		if err != nil {
			return nil, models.NewPreviewError(models.ErrKindDecode, "Error rendering markdown", err)
		}
		return models.MarkdownView{HTML: out}, nil
	}
	return nil, nil
}

// cacheText caches text content under the document id and returns it.
func (d *Dispatcher) cacheText(desc *models.DocumentDescriptor) (string, error) {
	text, ok := desc.Content.Text()
	if !ok {
		return "", errMismatchedContent
	}
	d.cache.Set(desc.ID, desc.Content)
	return text, nil
}

func (d *Dispatcher) previewImage(ctx context.Context, desc *models.DocumentDescriptor) (models.View, error) {
	if desc.PreviewURL == "" {
		return nil, errMismatchedContent
	}
	d.cache.Set(desc.ID, desc.Content)

	img, err := d.images.Load(ctx, desc.PreviewURL)
	if err != nil {
		return nil, err
	}
	return models.ImageView{
		URL:    desc.PreviewURL,
		Format: img.Format,
		Width:  img.Width,
		Height: img.Height,
		State:  models.DefaultViewState(),
	}, nil
}

// previewPDF caches the document buffer and hands the coordinator the same
// buffer; the coordinator decodes its own copy, so the cached bytes stay
// usable for the next preview.
func (d *Dispatcher) previewPDF(ctx context.Context, logCtx *slog.Logger, desc *models.DocumentDescriptor) (models.View, error) {
	buf, ok, err := renderers.PDFBuffer(desc.Content)
	if !ok {
		return nil, errMismatchedContent
	}
	if err != nil {
		return nil, err
	}
	d.cache.Set(desc.ID, models.BufferContent(buf))

	session, err := d.coordinator.Open(ctx, desc.ID, buf)
	if err != nil {
		return nil, err
	}
	logCtx.Debug("Render session ready.", "sessionId", session.ID, "pageCount", session.PageCount())
	return PDFView(session), nil
}

func (d *Dispatcher) previewOffice(ctx context.Context, desc *models.DocumentDescriptor, kind models.Kind) (models.View, error) {
	buf, ok := desc.Content.Buffer()
	if !ok {
		return nil, errMismatchedContent
	}
	d.cache.Set(desc.ID, desc.Content)

	data, err := buf.Borrow()
	if err != nil {
		return nil, err
	}
	view, err := d.office.Convert(ctx, kind, data)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Navigate requests page on the open session of docID, waits for the
// session to settle and returns its view. Out-of-range pages leave the
// session on its current page.
func (d *Dispatcher) Navigate(ctx context.Context, docID string, page int) (models.PDFView, error) {
	s, ok := d.coordinator.Session(docID)
	if !ok {
		return models.PDFView{}, fmt.Errorf("no render session for document %s", docID)
	}
	if page > 0 && !s.RequestPage(page) {
		d.logger.Debug("Page request ignored.", "documentId", docID, "page", page, "pageCount", s.PageCount())
	}
	if err := s.Wait(ctx); err != nil {
		return PDFView(s), err
	}
	return PDFView(s), nil
}

// Close tears down the render session of docID and drops its cached content.
func (d *Dispatcher) Close(docID string) error {
	d.cache.Remove(docID)
	if err := d.coordinator.Close(docID); err != nil {
		return fmt.Errorf("failed to close render session: %w", err)
	}
	return nil
}

// Shutdown tears down every render session and empties the cache.
func (d *Dispatcher) Shutdown() {
	d.coordinator.CloseAll()
	d.cache.Clear()
}

// evictionHook releases the render session and visibility gate of a
// document whose content left the cache.
func evictionHook(coordinator *render.Coordinator, gates *visibility.Registry, logger *slog.Logger) func(id string) {
	return func(id string) {
		gates.Forget(id)
		if err := coordinator.Close(id); err != nil {
			logger.Warn("Failed to close render session of evicted document.", "documentId", id, "error", err)
		}
	}
}

// PDFView snapshots a render session.
func PDFView(s *render.Session) models.PDFView {
	v := models.PDFView{
		SessionID:   s.ID,
		PageCount:   s.PageCount(),
		CurrentPage: s.CurrentPage(),
		Scale:       s.Scale(),
	}
	if c, ok := s.Surface().(*render.Canvas); ok {
		frame, w, h := c.Snapshot()
		v.Width, v.Height, v.Frame = w, h, frame.Data
	}
	return v
}
