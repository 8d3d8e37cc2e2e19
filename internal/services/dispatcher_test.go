package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentpreview/internal/cache"
	"github.com/Lllllllleong/documentpreview/internal/models"
)

func TestDispatcher_LoadingUntilVisible(t *testing.T) {
	h := newHarness()
	desc := &models.DocumentDescriptor{ID: "d1", Name: "data.csv", Kind: "text/csv", Content: models.TextContent("a,b")}

	res := h.dispatcher.Preview(context.Background(), desc, openGate(false))
	assert.Equal(t, models.StatusLoading, res.Status)
	assert.Equal(t, 0, h.cache.Size())
}

func TestDispatcher_CSVIsParsedAndCached(t *testing.T) {
	h := newHarness()
	desc := &models.DocumentDescriptor{ID: "d1", Name: "data.csv", Kind: "text/csv", Size: 7, Content: models.TextContent("a,b\n1,2")}

	res := h.dispatcher.Preview(context.Background(), desc, openGate(true))
	require.Equal(t, models.StatusRendered, res.Status)
	assert.Equal(t, models.KindCSV, res.Kind)
	assert.Equal(t, models.TableView{Rows: [][]string{{"a", "b"}, {"1", "2"}}}, res.View)
	assert.Equal(t, "data.csv", res.Info.Name)
	assert.Equal(t, "TEXT/CSV", res.Info.Type)

	cached, ok := h.cache.Get("d1")
	require.True(t, ok)
	assert.Equal(t, models.TextContent("a,b\n1,2"), cached)
}

func TestDispatcher_AbsentContentIsNoContent(t *testing.T) {
	h := newHarness()
	desc := &models.DocumentDescriptor{ID: "p1", Kind: "application/pdf"}

	res := h.dispatcher.Preview(context.Background(), desc, openGate(true))
	assert.Equal(t, models.StatusNoContent, res.Status)
	assert.Equal(t, 0, h.cache.Size())
	assert.Equal(t, 0, h.decoder.decodes())
}

func TestDispatcher_HydratesFromCache(t *testing.T) {
	h := newHarness()
	h.cache.Set("t1", models.TextContent("hello"))
	desc := &models.DocumentDescriptor{ID: "t1", Name: "notes.txt", Kind: "txt"}

	res := h.dispatcher.Preview(context.Background(), desc, openGate(true))
	require.Equal(t, models.StatusRendered, res.Status)
	assert.Equal(t, models.TextView{Text: "hello"}, res.View)
	assert.Equal(t, models.TextContent("hello"), desc.Content)
	assert.Equal(t, "t1", desc.ID)
	assert.Equal(t, "txt", desc.Kind)
}

func TestDispatcher_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		desc *models.DocumentDescriptor
	}{
		{name: "unknown kind", desc: &models.DocumentDescriptor{ID: "u1", Kind: "application/zip", Content: models.BinaryContent([]byte("PK"))}},
		{name: "pdf with plain text", desc: &models.DocumentDescriptor{ID: "u2", Kind: "pdf", Content: models.TextContent("hello")}},
		{name: "text with binary", desc: &models.DocumentDescriptor{ID: "u3", Kind: "text/plain", Content: models.BinaryContent([]byte("hi"))}},
		{name: "office with text", desc: &models.DocumentDescriptor{ID: "u4", Kind: "docx", Content: models.TextContent("hi")}},
		{name: "image without url", desc: &models.DocumentDescriptor{ID: "u5", Kind: "png", Content: models.BinaryContent([]byte{1})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			res := h.dispatcher.Preview(context.Background(), tt.desc, openGate(true))
			assert.Equal(t, models.StatusUnsupported, res.Status)
			assert.Equal(t, "Preview not available for this file type", res.Message)
		})
	}
}

func TestDispatcher_Image(t *testing.T) {
	h := newHarness()
	desc := &models.DocumentDescriptor{ID: "i1", Kind: "png", PreviewURL: "gs://b/i1.png", Content: models.BinaryContent([]byte{1})}

	res := h.dispatcher.Preview(context.Background(), desc, openGate(true))
	require.Equal(t, models.StatusRendered, res.Status)
	view, ok := res.View.(models.ImageView)
	require.True(t, ok)
	assert.Equal(t, 640, view.Width)
	assert.Equal(t, models.DefaultViewState(), view.State)

	h.images.err = models.NewPreviewError(models.ErrKindLoad, "Error loading image preview", errors.New("404"))
	res = h.dispatcher.Preview(context.Background(), desc, openGate(true))
	assert.Equal(t, models.StatusError, res.Status)
	assert.Equal(t, "Error loading image preview", res.Message)
}

func TestDispatcher_PDFSessionAndNavigation(t *testing.T) {
	h := newHarness()
	source := models.NewBuffer([]byte("%PDF-1.7"))
	desc := &models.DocumentDescriptor{ID: "p1", Kind: "application/pdf", Content: models.BufferContent(source)}

	res := h.dispatcher.Preview(context.Background(), desc, openGate(true))
	require.Equal(t, models.StatusRendered, res.Status)
	view := res.View.(models.PDFView)
	assert.Equal(t, 3, view.PageCount)
	assert.Equal(t, 1, view.CurrentPage)

	cached, ok := h.cache.Get("p1")
	require.True(t, ok)
	buf, _ := cached.Buffer()
	assert.Same(t, source, buf)
	assert.False(t, source.Detached())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	nav, err := h.dispatcher.Navigate(ctx, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, nav.CurrentPage)
	assert.Equal(t, 150, nav.Width)
	assert.Equal(t, 300, nav.Height)
	assert.Equal(t, []byte{3}, nav.Frame)

	nav, err = h.dispatcher.Navigate(ctx, "p1", 9)
	require.NoError(t, err)
	assert.Equal(t, 3, nav.CurrentPage, "out of range page is ignored")

	// The cached buffer reopens the same session.
	again := &models.DocumentDescriptor{ID: "p1", Kind: "application/pdf"}
	res = h.dispatcher.Preview(context.Background(), again, openGate(true))
	require.Equal(t, models.StatusRendered, res.Status)
	assert.Equal(t, view.SessionID, res.View.(models.PDFView).SessionID)
	assert.Equal(t, 1, h.decoder.decodes())
}

func TestDispatcher_PDFFromBase64Text(t *testing.T) {
	h := newHarness()
	encoded := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))
	desc := &models.DocumentDescriptor{ID: "p2", Kind: "pdf", Content: models.TextContent(encoded)}

	res := h.dispatcher.Preview(context.Background(), desc, openGate(true))
	require.Equal(t, models.StatusRendered, res.Status)

	cached, ok := h.cache.Get("p2")
	require.True(t, ok)
	assert.Equal(t, models.ContentBinary, cached.Type())
}

func TestDispatcher_PDFErrors(t *testing.T) {
	h := newHarness()

	res := h.dispatcher.Preview(context.Background(),
		&models.DocumentDescriptor{ID: "p3", Kind: "pdf", Content: models.BinaryContent([]byte("garbage"))}, openGate(true))
	assert.Equal(t, models.StatusError, res.Status)
	assert.Equal(t, "Invalid PDF file format. The file may be corrupted or not a valid PDF.", res.Message)

	res = h.dispatcher.Preview(context.Background(),
		&models.DocumentDescriptor{ID: "p4", Kind: "pdf", Content: models.TextContent("JVBERi0@@@")}, openGate(true))
	assert.Equal(t, models.StatusError, res.Status)
	assert.Contains(t, res.Message, "Failed to process PDF data")
}

func TestDispatcher_MarkdownAndOffice(t *testing.T) {
	h := newHarness()

	res := h.dispatcher.Preview(context.Background(),
		&models.DocumentDescriptor{ID: "m1", Kind: "text/markdown", Content: models.TextContent("# Hi")}, openGate(true))
	require.Equal(t, models.StatusRendered, res.Status)
	assert.Contains(t, res.View.(models.MarkdownView).HTML, "Hi</h1>")

	res = h.dispatcher.Preview(context.Background(),
		&models.DocumentDescriptor{ID: "o1", Kind: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Content: models.BinaryContent([]byte("doc"))}, openGate(true))
	require.Equal(t, models.StatusRendered, res.Status)
	assert.Equal(t, models.KindWord, res.Kind)
	assert.Equal(t, models.OfficeView{Kind: models.KindWord, HTML: "<p>doc</p>"}, res.View)
	assert.Equal(t, 2, h.cache.Size())
}

func TestDispatcher_Close(t *testing.T) {
	h := newHarness()
	desc := &models.DocumentDescriptor{ID: "p1", Kind: "pdf", Content: models.BinaryContent([]byte("%PDF"))}
	h.dispatcher.Preview(context.Background(), desc, openGate(true))

	require.NoError(t, h.dispatcher.Close("p1"))
	_, ok := h.cache.Get("p1")
	assert.False(t, ok)
	_, ok = h.coordinator.Session("p1")
	assert.False(t, ok)

	_, err := h.dispatcher.Navigate(context.Background(), "p1", 1)
	assert.Error(t, err)
}

func TestDispatcher_EvictionClosesRenderSessions(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	h := newHarnessWithCache(cache.Config{Capacity: 2, TTL: time.Minute, Now: func() time.Time { return now }})

	ids := make([]string, 5)
	for i := range ids {
		ids[i] = fmt.Sprintf("pdf-%d", i)
		desc := &models.DocumentDescriptor{ID: ids[i], Kind: "pdf", Content: models.BinaryContent([]byte("%PDF-1.7"))}
		require.Equal(t, models.StatusRendered, h.dispatcher.Preview(context.Background(), desc, openGate(true)).Status)
	}

	assert.Equal(t, 2, h.cache.Size())
	for i, id := range ids {
		_, live := h.coordinator.Session(id)
		assert.Equal(t, i >= 3, live, id)
	}

	// An expired entry takes its session with it.
	now = now.Add(time.Minute)
	res := h.dispatcher.Preview(context.Background(), &models.DocumentDescriptor{ID: "pdf-4", Kind: "pdf"}, openGate(true))
	assert.Equal(t, models.StatusNoContent, res.Status)
	_, live := h.coordinator.Session("pdf-4")
	assert.False(t, live)
}

func TestDispatcher_CancelledLoadIsNotAnError(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.decoder.before = cancel

	desc := &models.DocumentDescriptor{ID: "p1", Kind: "pdf", Content: models.BinaryContent([]byte("%PDF-1.7"))}
	res := h.dispatcher.Preview(ctx, desc, openGate(true))
	assert.Equal(t, models.StatusLoading, res.Status)
	assert.Equal(t, "Loading preview...", res.Message)
	_, live := h.coordinator.Session("p1")
	assert.False(t, live)
}

func TestDispatcher_Shutdown(t *testing.T) {
	h := newHarness()
	for _, id := range []string{"p1", "p2"} {
		desc := &models.DocumentDescriptor{ID: id, Kind: "pdf", Content: models.BinaryContent([]byte("%PDF"))}
		require.Equal(t, models.StatusRendered, h.dispatcher.Preview(context.Background(), desc, openGate(true)).Status)
	}

	h.dispatcher.Shutdown()
	assert.Equal(t, 0, h.cache.Size())
	for _, id := range []string{"p1", "p2"} {
		_, live := h.coordinator.Session(id)
		assert.False(t, live, id)
	}
}
