package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dustin/go-humanize"
)

// ErrObjectTooLarge is returned when an object exceeds the fetcher's limit.
var ErrObjectTooLarge = errors.New("object exceeds size limit")

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs:// uri must name a bucket and object: %q", uri)
	}
	return bucket, object, nil
}

// GCSURI formats a gs:// uri.
func GCSURI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}

// ObjectFetcher reads whole GCS objects up to a size limit.
type ObjectFetcher struct {
	client   *storage.Client
	maxBytes int64
	logger   *slog.Logger
}

func NewObjectFetcher(client *storage.Client, maxBytes int64, logger *slog.Logger) *ObjectFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ObjectFetcher{client: client, maxBytes: maxBytes, logger: logger}
}

// Open streams the object behind uri.
func (f *ObjectFetcher) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}
	r, err := f.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for %s: %w", uri, err)
	}
	return r, nil
}

// Attrs returns the object's metadata.
func (f *ObjectFetcher) Attrs(ctx context.Context, bucket, object string) (*storage.ObjectAttrs, error) {
	attrs, err := f.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read attributes of %s: %w", GCSURI(bucket, object), err)
	}
	return attrs, nil
}

// Fetch reads the object behind uri into memory, retrying transient read
// failures with exponential backoff.
func (f *ObjectFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	const maxRetries = 4
	var backoff = 500 * time.Millisecond
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		data, err := f.fetchOnce(ctx, uri)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, ErrObjectTooLarge) || errors.Is(err, storage.ErrObjectNotExist) {
			return nil, err
		}

		lastErr = err
		f.logger.Warn(
			"Fetch failed, will retry.",
			"uri", uri,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("fetch of %s failed after all retries: %w", uri, lastErr)
}

func (f *ObjectFetcher) fetchOnce(ctx context.Context, uri string) ([]byte, error) {
	r, err := f.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readLimited(r, f.maxBytes)
}

// readLimited reads all of r, failing once more than limit bytes arrive.
// A limit of zero or less disables the check.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	if n > limit {
		return nil, fmt.Errorf("%w of %s", ErrObjectTooLarge, humanize.IBytes(uint64(limit)))
	}
	return buf.Bytes(), nil
}
