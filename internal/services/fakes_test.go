package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/documentpreview/internal/cache"
	"github.com/Lllllllleong/documentpreview/internal/gcp"
	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/Lllllllleong/documentpreview/internal/render"
	"github.com/Lllllllleong/documentpreview/internal/renderers"
	"github.com/Lllllllleong/documentpreview/internal/visibility"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type openGate bool

func (g openGate) Satisfied() bool { return bool(g) }

type fakeDoc struct {
	pages int
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) Page(_ context.Context, n int) (render.Page, error) {
	return fakePage(n), nil
}

func (d *fakeDoc) Close() error { return nil }

type fakePage int

func (p fakePage) Size() render.Size { return render.Size{Width: 100, Height: 200} }

func (p fakePage) Render(_ context.Context, vp render.Viewport) (render.Frame, error) {
	return render.Frame{Width: vp.Width, Height: vp.Height, Data: []byte{byte(p)}}, nil
}

// fakeDecoder accepts data starting with "%PDF" and reports pages pages.
type fakeDecoder struct {
	pages int
	// before runs at the start of every Decode.
	before func()

	mu    sync.Mutex
	calls int
}

func (d *fakeDecoder) Decode(ctx context.Context, data []byte) (render.Document, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.before != nil {
		d.before()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return nil, models.NewPreviewError(models.ErrKindDecode, "not a pdf", errors.New("missing header"))
	}
	return &fakeDoc{pages: d.pages}, nil
}

func (d *fakeDecoder) decodes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type fakeImages struct {
	info renderers.ImageInfo
	err  error
}

func (f *fakeImages) Load(_ context.Context, _ string) (renderers.ImageInfo, error) {
	return f.info, f.err
}

type fakeOffice struct {
	seen []byte
}

func (f *fakeOffice) Convert(_ context.Context, kind models.Kind, data []byte) (models.OfficeView, error) {
	f.seen = data
	return models.OfficeView{Kind: kind, HTML: "<p>" + string(data) + "</p>"}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	docs    map[string]*models.DocumentDescriptor
	created []*models.DocumentDescriptor
}

func newFakeStore(docs ...*models.DocumentDescriptor) *fakeStore {
	s := &fakeStore{docs: map[string]*models.DocumentDescriptor{}}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

// Get returns a fresh copy, the way a database read would.
func (s *fakeStore) Get(_ context.Context, id string) (*models.DocumentDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gcp.ErrDocumentNotFound, id)
	}
	cp := *d
	return &cp, nil
}

func (s *fakeStore) FindByHash(_ context.Context, fileHash string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range s.docs {
		if d.FileHash == fileHash {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (s *fakeStore) Create(_ context.Context, d *models.DocumentDescriptor) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = fmt.Sprintf("doc-%d", len(s.docs)+1)
	s.docs[d.ID] = d
	s.created = append(s.created, d)
	return d.ID, nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	objects map[string][]byte
	// types holds stored content types by object uri.
	types map[string]string
	err   error
	calls int
}

func (f *fakeFetcher) Attrs(_ context.Context, bucket, object string) (*storage.ObjectAttrs, error) {
	ct, ok := f.types[gcp.GCSURI(bucket, object)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", storage.ErrObjectNotExist, bucket, object)
	}
	return &storage.ObjectAttrs{Bucket: bucket, Name: object, ContentType: ct}, nil
}

func (f *fakeFetcher) Fetch(_ context.Context, uri string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[uri]
	if !ok {
		return nil, fmt.Errorf("object %s not found", uri)
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeFetcher) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	cache       *cache.ContentCache
	coordinator *render.Coordinator
	gates       *visibility.Registry
	decoder     *fakeDecoder
	images      *fakeImages
	office      *fakeOffice
	dispatcher  *Dispatcher
}

func newHarness() *harness {
	return newHarnessWithCache(cache.Config{})
}

// newHarnessWithCache wires the harness the way NewPreviewService does,
// including eviction of render sessions and gates.
func newHarnessWithCache(cfg cache.Config) *harness {
	h := &harness{
		gates:   visibility.NewRegistry(visibility.DefaultThreshold),
		decoder: &fakeDecoder{pages: 3},
		images:  &fakeImages{info: renderers.ImageInfo{Format: "png", Width: 640, Height: 480}},
		office:  &fakeOffice{},
	}
	h.coordinator = render.NewCoordinator(h.decoder, render.Options{Logger: testLogger()})
	cfg.Logger = testLogger()
	cfg.OnEvict = evictionHook(h.coordinator, h.gates, testLogger())
	h.cache = cache.New(cfg)
	h.dispatcher = NewDispatcher(DispatcherDeps{
		Cache:       h.cache,
		Coordinator: h.coordinator,
		Images:      h.images,
		Office:      h.office,
		Logger:      testLogger(),
	})
	return h
}

func (h *harness) previewFunction(store DescriptorStore, fetcher ContentFetcher) *PreviewFunction {
	return NewPreviewFunction(PreviewDeps{
		Store:      store,
		Fetcher:    fetcher,
		Cache:      h.cache,
		Dispatcher: h.dispatcher,
		Gates:      h.gates,
		Logger:     testLogger(),
	})
}
