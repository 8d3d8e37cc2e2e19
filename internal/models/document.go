package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DocumentDescriptor is the caller-owned record describing one previewable
// document. It is stored in Firestore by the registrar and read back by the
// preview service. Identity fields are never mutated by the preview core;
// only Content may be hydrated from the cache.
type DocumentDescriptor struct {
	ID         string    `firestore:"-" json:"id"`
	Name       string    `firestore:"name,omitempty" json:"name"`
	Kind       string    `firestore:"kind,omitempty" json:"kind"`
	Size       int64     `firestore:"size,omitempty" json:"size"`
	UploadedAt time.Time `firestore:"uploadedAt,omitempty" json:"uploadDate"`
	PreviewURL string    `firestore:"previewUrl,omitempty" json:"previewUrl,omitempty"`
	ContentURI string    `firestore:"contentUri,omitempty" json:"contentUri,omitempty"` // gs://bucket/object
	FileHash   string    `firestore:"fileHash,omitempty" json:"fileHash,omitempty"`
	PageCount  int       `firestore:"pageCount,omitempty" json:"pageCount,omitempty"`

	Content Content `firestore:"-" json:"-"`
}

// FileInfo is the header shown above every preview.
type FileInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Size     string `json:"size"`
	Uploaded string `json:"uploaded"`
}

// Info builds the preview header for the descriptor.
func (d *DocumentDescriptor) Info() FileInfo {
	info := FileInfo{
		Name: d.Name,
		Type: strings.ToUpper(d.Kind),
		Size: humanize.IBytes(uint64(max(d.Size, 0))),
	}
	if !d.UploadedAt.IsZero() {
		info.Uploaded = d.UploadedAt.Format(time.DateOnly)
	}
	return info
}

func (d *DocumentDescriptor) String() string {
	return fmt.Sprintf("%s (%s, %s)", d.ID, d.Name, d.Kind)
}
