package models

import (
	"errors"
	"sync"
)

// ErrDetachedBuffer is returned when a Buffer is read after its bytes were
// transferred to another consumer.
var ErrDetachedBuffer = errors.New("buffer has been detached")

// Buffer is a binary content buffer with explicit ownership. Borrow hands
// out a read-only view, Copy produces an independent owned buffer and
// Transfer moves the bytes to a single consumer, detaching the Buffer.
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	detached bool
}

// NewBuffer wraps data. The caller must not modify data afterwards.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Borrow returns the underlying bytes for read-only, single use.
func (b *Buffer) Borrow() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.detached {
		return nil, ErrDetachedBuffer
	}
	return b.data, nil
}

// Copy duplicates the bytes into a new Buffer for a second independent consumer.
func (b *Buffer) Copy() (*Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.detached {
		return nil, ErrDetachedBuffer
	}
	dup := make([]byte, len(b.data))
	copy(dup, b.data)
	return &Buffer{data: dup}, nil
}

// Transfer hands the bytes to the caller and detaches the Buffer.
func (b *Buffer) Transfer() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.detached {
		return nil, ErrDetachedBuffer
	}
	data := b.data
	b.data = nil
	b.detached = true
	return data, nil
}

// Len reports the buffer length, 0 once detached.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Detached reports whether Transfer has been called.
func (b *Buffer) Detached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.detached
}

// ContentType tags which variant a Content holds.
type ContentType int

const (
	ContentAbsent ContentType = iota
	ContentText
	ContentBinary
)

// Content is the raw content of a document: absent, text, or a binary buffer.
// The zero value is absent.
type Content struct {
	typ  ContentType
	text string
	buf  *Buffer
}

// TextContent wraps a string.
func TextContent(s string) Content {
	return Content{typ: ContentText, text: s}
}

// BinaryContent wraps a byte slice in a new Buffer.
func BinaryContent(data []byte) Content {
	return Content{typ: ContentBinary, buf: NewBuffer(data)}
}

// BufferContent wraps an existing Buffer.
func BufferContent(b *Buffer) Content {
	if b == nil {
		return Content{}
	}
	return Content{typ: ContentBinary, buf: b}
}

func (c Content) Type() ContentType { return c.typ }

// Absent reports whether there is no content.
func (c Content) Absent() bool { return c.typ == ContentAbsent }

// Text returns the text content and true when c holds text.
func (c Content) Text() (string, bool) {
	return c.text, c.typ == ContentText
}

// Buffer returns the binary buffer and true when c holds binary content.
func (c Content) Buffer() (*Buffer, bool) {
	return c.buf, c.typ == ContentBinary
}

// Len reports the content length in bytes.
func (c Content) Len() int {
	switch c.typ {
	case ContentText:
		return len(c.text)
	case ContentBinary:
		return c.buf.Len()
	}
	return 0
}
