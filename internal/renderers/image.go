// Package renderers implements the per-format preview collaborators.
package renderers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/Lllllllleong/documentpreview/internal/models"
)

// maxImageProbeBytes bounds how much of a remote image is read to find its header.
const maxImageProbeBytes = 1 << 20

// ObjectReader opens gs:// objects.
type ObjectReader interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// ImageInfo is what the loader learns about an image.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// ImageLoader probes images behind http(s), data: and gs:// URLs.
type ImageLoader struct {
	client  *http.Client
	objects ObjectReader
}

// NewImageLoader creates a loader. objects may be nil, which disables gs:// URLs.
func NewImageLoader(client *http.Client, objects ObjectReader) *ImageLoader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ImageLoader{client: client, objects: objects}
}

// Load reads the image header behind rawURL.
func (l *ImageLoader) Load(ctx context.Context, rawURL string) (ImageInfo, error) {
	r, err := l.open(ctx, rawURL)
	if err != nil {
		return ImageInfo{}, models.NewPreviewError(models.ErrKindLoad, "Error loading image preview", err)
	}
	defer r.Close()

	cfg, format, err := image.DecodeConfig(io.LimitReader(r, maxImageProbeBytes))
	if err != nil {
		return ImageInfo{}, models.NewPreviewError(models.ErrKindLoad, "Error loading image preview", err)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func (l *ImageLoader) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if strings.HasPrefix(rawURL, "data:") {
		data, err := decodeDataURL(rawURL)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image url: %w", err)
	}
	switch u.Scheme {
	case "gs":
		if l.objects == nil {
			return nil, fmt.Errorf("gs:// urls are not configured")
		}
		return l.objects.Open(ctx, rawURL)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build image request: %w", err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch image: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}
	return nil, fmt.Errorf("unsupported image url scheme %q", u.Scheme)
}

func decodeDataURL(raw string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data url")
	}
	if !strings.HasSuffix(meta, ";base64") {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("malformed data url: %w", err)
		}
		return []byte(unescaped), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed base64 data url: %w", err)
	}
	return data, nil
}
