package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/documentpreview/internal/cache"
	"github.com/Lllllllleong/documentpreview/internal/config"
	"github.com/Lllllllleong/documentpreview/internal/doctype"
	"github.com/Lllllllleong/documentpreview/internal/gcp"
	"github.com/Lllllllleong/documentpreview/internal/logging"
	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/Lllllllleong/documentpreview/internal/render"
	"github.com/Lllllllleong/documentpreview/internal/renderers"
	"github.com/Lllllllleong/documentpreview/internal/visibility"
)

// ErrInvalidRequest marks a request the caller has to fix.
var ErrInvalidRequest = errors.New("invalid request")

// settleTimeout bounds how long a preview waits for a page draw.
const settleTimeout = 30 * time.Second

// DescriptorStore loads document descriptors.
type DescriptorStore interface {
	Get(ctx context.Context, id string) (*models.DocumentDescriptor, error)
}

// ContentFetcher reads stored document content.
type ContentFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// PreviewFunction holds the dependencies of the preview HTTP functions.
type PreviewFunction struct {
	store            DescriptorStore
	fetcher          ContentFetcher
	cache            *cache.ContentCache
	dispatcher       *Dispatcher
	gates            *visibility.Registry
	batchConcurrency int
	converter        *gcp.ConverterModel
	logger           *slog.Logger
}

// PreviewDeps wires a PreviewFunction.
type PreviewDeps struct {
	Store            DescriptorStore
	Fetcher          ContentFetcher
	Cache            *cache.ContentCache
	Dispatcher       *Dispatcher
	Gates            *visibility.Registry
	BatchConcurrency int
	Logger           *slog.Logger
}

func NewPreviewFunction(deps PreviewDeps) *PreviewFunction {
	if deps.BatchConcurrency <= 0 {
		deps.BatchConcurrency = 10
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &PreviewFunction{
		store:            deps.Store,
		fetcher:          deps.Fetcher,
		cache:            deps.Cache,
		dispatcher:       deps.Dispatcher,
		gates:            deps.Gates,
		batchConcurrency: deps.BatchConcurrency,
		logger:           deps.Logger,
	}
}

// NewPreviewService builds the preview function from the environment.
func NewPreviewService(ctx context.Context) (*PreviewFunction, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.RequireProject(); err != nil {
		return nil, err
	}
	logger, err := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	fetcher := gcp.NewObjectFetcher(storageClient, cfg.MaxContentBytes, logger)

	var legacy renderers.LegacyConverter
	converter, err := gcp.NewConverterModel(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.VertexModel, logger)
	if err != nil {
		logger.Warn("Legacy office conversion disabled.", "error", err)
	} else {
		legacy = converter
	}

	coordinator := render.NewCoordinator(renderers.NewPDFDecoder(logger), render.Options{
		Scale:  cfg.RenderScale,
		Logger: logger,
	})
	gates := visibility.NewRegistry(cfg.VisibilityThreshold)
	contentCache := cache.New(cache.Config{
		Capacity: cfg.CacheCapacity,
		TTL:      cfg.CacheTTL(),
		OnEvict:  evictionHook(coordinator, gates, logger),
		Logger:   logger,
	})
	dispatcher := NewDispatcher(DispatcherDeps{
		Cache:       contentCache,
		Coordinator: coordinator,
		Images:      renderers.NewImageLoader(&http.Client{Timeout: settleTimeout}, fetcher),
		Office:      renderers.NewOfficeConverter(legacy, logger),
		Logger:      logger,
	})

	f := NewPreviewFunction(PreviewDeps{
		Store:            gcp.NewDescriptorRepository(firestoreClient, cfg.DocumentsCollection),
		Fetcher:          fetcher,
		Cache:            contentCache,
		Dispatcher:       dispatcher,
		Gates:            gates,
		BatchConcurrency: cfg.BatchConcurrency,
		Logger:           logger,
	})
	if legacy != nil {
		f.converter = converter
	}
	logger.Info("Preview service initialized.",
		"collection", cfg.DocumentsCollection,
		"cacheCapacity", cfg.CacheCapacity,
		"cacheTTL", cfg.CacheTTL().String(),
		"renderScale", cfg.RenderScale,
	)
	return f, nil
}

// Process previews one document.
func (f *PreviewFunction) Process(ctx context.Context, req *models.PreviewRequest) (*models.PreviewResponse, error) {
	if req.DocumentID == "" {
		return nil, fmt.Errorf("%w: documentId is required", ErrInvalidRequest)
	}
	if req.Page < 0 {
		return nil, fmt.Errorf("%w: page must not be negative", ErrInvalidRequest)
	}
	logCtx := f.logger.With("documentId", req.DocumentID)

	desc, err := f.store.Get(ctx, req.DocumentID)
	if err != nil {
		if !errors.Is(err, gcp.ErrDocumentNotFound) {
			logCtx.Error("Failed to load document descriptor.", "error", err)
		}
		return nil, err
	}

	gate := f.gates.Report(desc.ID, req.VisibleRatio)
	if gate.Satisfied() {
		if err := f.hydrate(ctx, desc); err != nil {
			logCtx.Error("Failed to load document content.", "error", err, "contentUri", desc.ContentURI)
			f.gates.Forget(desc.ID)
			kind := doctype.Normalize(desc.Kind)
			return &models.PreviewResponse{
				DocumentID: desc.ID,
				Result:     models.Failed(desc.Info(), kind, models.NewPreviewError(models.ErrKindLoad, "Failed to load document content", err)),
			}, nil
		}
	}

	result := f.dispatcher.Preview(ctx, desc, gate)
	if result.Status == models.StatusRendered && result.Kind == models.KindPDF {
		result = f.settle(ctx, logCtx, desc, req.Page, result)
	}
	// A gate outlives the request only while the document's content is cached;
	// cache eviction forgets it from then on.
	if _, cached := f.cache.Get(desc.ID); !cached {
		f.gates.Forget(desc.ID)
	}
	logCtx.Info("Preview complete.", "status", result.Status, "kind", result.Kind)
	return &models.PreviewResponse{DocumentID: desc.ID, Result: result}, nil
}

// hydrate loads stored content for desc unless it is already cached.
func (f *PreviewFunction) hydrate(ctx context.Context, desc *models.DocumentDescriptor) error {
	if !desc.Content.Absent() || desc.ContentURI == "" {
		return nil
	}
	if _, ok := f.cache.Get(desc.ID); ok {
		return nil
	}
	data, err := f.fetcher.Fetch(ctx, desc.ContentURI)
	if err != nil {
		return err
	}
	switch doctype.Normalize(desc.Kind) {
	case models.KindText, models.KindCSV, models.KindMarkdown:
		desc.Content = models.TextContent(string(data))
	default:
		desc.Content = models.BinaryContent(data)
	}
	return nil
}

// settle navigates to page and waits for the draw to land.
func (f *PreviewFunction) settle(ctx context.Context, logCtx *slog.Logger, desc *models.DocumentDescriptor, page int, result models.Result) models.Result {
	waitCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	view, err := f.dispatcher.Navigate(waitCtx, desc.ID, page)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			logCtx.Debug("Returning preview before the draw settled.", "error", err)
			result.View = view
			return result
		}
		logCtx.Error("Page render failed.", "page", page, "error", err)
		return models.Failed(result.Info, models.KindPDF, err)
	}
	result.View = view
	return result
}

// ProcessBatch previews several documents concurrently. A failing document
// becomes an error result; the batch itself only fails on a bad request.
func (f *PreviewFunction) ProcessBatch(ctx context.Context, req *models.BatchPreviewRequest) (*models.BatchPreviewResponse, error) {
	if len(req.DocumentIDs) == 0 {
		return nil, fmt.Errorf("%w: documentIds is required", ErrInvalidRequest)
	}
	f.logger.Info("Starting batch preview.", "count", len(req.DocumentIDs))

	results := make([]models.PreviewResponse, len(req.DocumentIDs))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(f.batchConcurrency)

	for i, id := range req.DocumentIDs {
		eg.Go(func() error {
			res, err := f.Process(gctx, &models.PreviewRequest{DocumentID: id, VisibleRatio: 1})
			if err != nil {
				results[i] = models.PreviewResponse{
					DocumentID: id,
					Result:     models.Failed(models.FileInfo{}, "", batchError(err)),
				}
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("batch preview failed: %w", err)
	}
	return &models.BatchPreviewResponse{Results: results}, nil
}

func batchError(err error) error {
	if errors.Is(err, gcp.ErrDocumentNotFound) {
		return models.NewPreviewError(models.ErrKindLoad, "Document not found", err)
	}
	return models.NewPreviewError(models.ErrKindLoad, "Failed to load document", err)
}

// Close tears down the preview state of one document.
func (f *PreviewFunction) Close(_ context.Context, req *models.ClosePreviewRequest) (*models.ClosePreviewResponse, error) {
	if req.DocumentID == "" {
		return nil, fmt.Errorf("%w: documentId is required", ErrInvalidRequest)
	}
	f.gates.Forget(req.DocumentID)
	if err := f.dispatcher.Close(req.DocumentID); err != nil {
		f.logger.Warn("Failed to close preview.", "documentId", req.DocumentID, "error", err)
		return nil, err
	}
	f.logger.Info("Preview closed.", "documentId", req.DocumentID)
	return &models.ClosePreviewResponse{Status: "closed"}, nil
}

// Shutdown releases every render session, the cached content and the
// converter model.
func (f *PreviewFunction) Shutdown() {
	f.dispatcher.Shutdown()
	if f.converter != nil {
		if err := f.converter.Close(); err != nil {
			f.logger.Warn("Failed to close converter model.", "error", err)
		}
	}
	f.logger.Info("Preview service shut down.")
}
