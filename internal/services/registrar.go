package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"time"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/documentpreview/internal/config"
	"github.com/Lllllllleong/documentpreview/internal/doctype"
	"github.com/Lllllllleong/documentpreview/internal/gcp"
	"github.com/Lllllllleong/documentpreview/internal/logging"
	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/Lllllllleong/documentpreview/internal/render"
	"github.com/Lllllllleong/documentpreview/internal/renderers"
)

// sniffBytes is how much of an object is used for content sniffing.
const sniffBytes = 3072

// GCSEvent is the payload of a storage object finalized event.
type GCSEvent struct {
	Bucket      string    `json:"bucket"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        string    `json:"size"`
	TimeCreated time.Time `json:"timeCreated"`
}

// DescriptorWriter stores new descriptors.
type DescriptorWriter interface {
	FindByHash(ctx context.Context, fileHash string) (string, bool, error)
	Create(ctx context.Context, d *models.DocumentDescriptor) (string, error)
}

// ObjectSource reads uploaded objects and their metadata.
type ObjectSource interface {
	ContentFetcher
	Attrs(ctx context.Context, bucket, object string) (*storage.ObjectAttrs, error)
}

// RegistrarFunction records uploaded objects as previewable documents.
type RegistrarFunction struct {
	store   DescriptorWriter
	objects ObjectSource
	decoder render.Decoder
	bucket  string
	now     func() time.Time
	logger  *slog.Logger
}

// NewRegistrarFunction creates a registrar. A non-empty bucket restricts
// registration to objects in that bucket.
func NewRegistrarFunction(store DescriptorWriter, objects ObjectSource, decoder render.Decoder, bucket string, logger *slog.Logger) *RegistrarFunction {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistrarFunction{store: store, objects: objects, decoder: decoder, bucket: bucket, now: time.Now, logger: logger}
}

// NewRegistrar builds the registrar from the environment.
func NewRegistrar(ctx context.Context) (*RegistrarFunction, error) {
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
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	f := NewRegistrarFunction(
		gcp.NewDescriptorRepository(firestoreClient, cfg.DocumentsCollection),
		gcp.NewObjectFetcher(storageClient, cfg.MaxContentBytes, logger),
		renderers.NewPDFDecoder(logger),
		cfg.ContentBucket,
		logger,
	)
	logger.Info("Document registrar initialized.", "collection", cfg.DocumentsCollection, "bucket", cfg.ContentBucket)
	return f, nil
}

// Process registers the object named by e. Duplicate content is skipped.
func (f *RegistrarFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := f.logger.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new GCS object.")
	if e.Bucket == "" || e.Name == "" {
		return fmt.Errorf("event must name a bucket and object")
	}
	if f.bucket != "" && e.Bucket != f.bucket {
		logCtx.Info("Object is outside the content bucket. Skipping.", "contentBucket", f.bucket)
		return nil
	}

	uri := gcp.GCSURI(e.Bucket, e.Name)
	data, err := f.objects.Fetch(ctx, uri)
	if err != nil {
		logCtx.Error("Failed to download object", "error", err)
		return fmt.Errorf("failed to download %s: %w", uri, err)
	}

	fileHash := calculateHash(data)
	logCtx = logCtx.With("fileHash", fileHash)

	existingID, isDuplicate, err := f.store.FindByHash(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if isDuplicate {
		logCtx.Info("Duplicate file detected. Skipping.", "existingDocId", existingID)
		return nil
	}

	declared := doctype.Declared(e.Name, f.contentType(ctx, logCtx, e), data[:min(len(data), sniffBytes)])
	kind := doctype.Normalize(declared)
	logCtx = logCtx.With("declaredKind", declared, "kind", kind)

	desc := &models.DocumentDescriptor{
		Name:       path.Base(e.Name),
		Kind:       declared,
		Size:       objectSize(e.Size, len(data)),
		UploadedAt: e.TimeCreated,
		ContentURI: uri,
		FileHash:   fileHash,
	}
	if desc.UploadedAt.IsZero() {
		desc.UploadedAt = f.now()
	}
	if kind == models.KindImage {
		desc.PreviewURL = uri
	}
	if kind.Paginated() {
		desc.PageCount = f.pageCount(ctx, logCtx, data)
	}

	_, err = f.store.Create(ctx, desc)
	if err != nil {
		logCtx.Error("Failed to create Firestore document", "error", err)
		return err
	}
	logCtx.Info("Document registered.", "document", desc.String(), "pageCount", desc.PageCount, "size", desc.Info().Size)
	return nil
}

// contentType is the event's content type, or the stored object's when the
// event carries none.
func (f *RegistrarFunction) contentType(ctx context.Context, logCtx *slog.Logger, e GCSEvent) string {
	if e.ContentType != "" {
		return e.ContentType
	}
	attrs, err := f.objects.Attrs(ctx, e.Bucket, e.Name)
	if err != nil {
		logCtx.Debug("Object metadata unavailable, sniffing content.", "error", err)
		return ""
	}
	return attrs.ContentType
}

// pageCount opens a paginated document to count its pages. A document that
// cannot be decoded is still registered; its preview reports the failure.
func (f *RegistrarFunction) pageCount(ctx context.Context, logCtx *slog.Logger, data []byte) int {
	doc, err := f.decoder.Decode(ctx, data)
	if err != nil {
		logCtx.Warn("Failed to read page count.", "error", err)
		return 0
	}
	defer func() {
		if err := doc.Close(); err != nil {
			logCtx.Warn("Failed to release document.", "error", err)
		}
	}()
	return doc.PageCount()
}

func objectSize(reported string, read int) int64 {
	if n, err := strconv.ParseInt(reported, 10, 64); err == nil && n >= 0 {
		return n
	}
	return int64(read)
}

func calculateHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
