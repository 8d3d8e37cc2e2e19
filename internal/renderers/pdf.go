package renderers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/Lllllllleong/documentpreview/internal/render"
)

const (
	pdfDataURLPrefix = "data:application/pdf;base64,"
	// pdfBase64Magic is "%PDF-" base64 encoded.
	pdfBase64Magic = "JVBERi0"
)

// PDFBuffer returns the binary buffer for pdf content: binary content as
// is, or text content carrying a base64 encoded PDF. ok is false when the
// content is neither.
func PDFBuffer(c models.Content) (buf *models.Buffer, ok bool, err error) {
	if b, isBin := c.Buffer(); isBin {
		return b, true, nil
	}
	text, isText := c.Text()
	if !isText {
		return nil, false, nil
	}
	var encoded string
	switch {
	case strings.HasPrefix(text, pdfDataURLPrefix):
		encoded = strings.TrimPrefix(text, pdfDataURLPrefix)
	case strings.HasPrefix(text, pdfBase64Magic):
		encoded = text
	default:
		return nil, false, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.Map(dropASCIISpace, encoded))
	if err != nil {
		return nil, true, models.NewPreviewError(models.ErrKindDecode, "Failed to process PDF data: "+err.Error(), err)
	}
	return models.NewBuffer(data), true, nil
}

// dropASCIISpace removes the whitespace allowed inside line-wrapped base64.
func dropASCIISpace(r rune) rune {
	switch r {
	case ' ', '\t', '\n', '\f', '\r':
		return -1
	}
	return r
}

// PDFDecoder opens PDFs with pdfcpu. The engine configuration is built on
// first use; a failed initialization is retried on the next Decode.
type PDFDecoder struct {
	newConfig func() (*model.Configuration, error)
	logger    *slog.Logger

	mu   sync.Mutex
	conf *model.Configuration
}

var disableConfigDir sync.Once

// NewPDFDecoder creates a decoder using relaxed validation.
func NewPDFDecoder(logger *slog.Logger) *PDFDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFDecoder{newConfig: defaultPDFConfig, logger: logger}
}

func defaultPDFConfig() (*model.Configuration, error) {
	// Functions run on a read-only filesystem; keep pdfcpu off the config dir.
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	if conf == nil {
		return nil, fmt.Errorf("pdfcpu returned no default configuration")
	}
	conf.ValidationMode = model.ValidationRelaxed
	return conf, nil
}

func (d *PDFDecoder) config() (*model.Configuration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conf != nil {
		return d.conf, nil
	}
	conf, err := d.newConfig()
	if err != nil {
		return nil, models.NewPreviewError(models.ErrKindWorkerInit, "failed to initialize pdf engine", err)
	}
	d.conf = conf
	d.logger.Info("PDF engine initialized.", "validationMode", "relaxed")
	return conf, nil
}

// Decode parses data and reads the page geometry of every page.
func (d *PDFDecoder) Decode(ctx context.Context, data []byte) (render.Document, error) {
	conf, err := d.config()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, models.NewPreviewError(models.ErrKindDecode, "failed to read pdf", err)
	}
	dims, err := pdfCtx.PageDims()
	if err != nil {
		return nil, models.NewPreviewError(models.ErrKindDecode, "failed to read page dimensions", err)
	}
	if len(dims) == 0 {
		return nil, models.NewPreviewError(models.ErrKindDecode, "pdf has no pages", nil)
	}
	return &pdfDocument{data: data, conf: conf, dims: dims}, nil
}

type pdfDocument struct {
	mu   sync.Mutex
	data []byte
	conf *model.Configuration
	dims []types.Dim
}

func (p *pdfDocument) PageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dims)
}

func (p *pdfDocument) Page(_ context.Context, n int) (render.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return nil, fmt.Errorf("document released")
	}
	if n < 1 || n > len(p.dims) {
		return nil, fmt.Errorf("page %d out of range [1, %d]", n, len(p.dims))
	}
	return &pdfPage{n: n, dim: p.dims[n-1], data: p.data, conf: p.conf}, nil
}

func (p *pdfDocument) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = nil
	p.dims = nil
	return nil
}

type pdfPage struct {
	n    int
	dim  types.Dim
	data []byte
	conf *model.Configuration
}

func (p *pdfPage) Size() render.Size {
	return render.Size{Width: p.dim.Width, Height: p.dim.Height}
}

// Render extracts the page as a standalone single-page PDF.
func (p *pdfPage) Render(ctx context.Context, vp render.Viewport) (render.Frame, error) {
	if err := ctx.Err(); err != nil {
		return render.Frame{}, err
	}
	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(p.data), &out, []string{strconv.Itoa(p.n)}, p.conf); err != nil {
		return render.Frame{}, fmt.Errorf("failed to extract page %d: %w", p.n, err)
	}
	if err := ctx.Err(); err != nil {
		return render.Frame{}, err
	}
	return render.Frame{Page: p.n, Width: vp.Width, Height: vp.Height, Data: out.Bytes()}, nil
}
