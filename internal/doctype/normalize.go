// Package doctype maps declared media kinds (MIME types or file extensions)
// to canonical document kinds.
package doctype

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Lllllllleong/documentpreview/internal/models"
)

type rule struct {
	substr string
	kind   models.Kind
}

// Office MIME types are matched first: several of them contain generic
// fragments ("document", "sheet") that must not fall through.
var officeMIMERules = []rule{
	{"wordprocessingml.document", models.KindWord},
	{"spreadsheetml.sheet", models.KindSpreadsheet},
	{"presentationml.presentation", models.KindPresentation},
	{"msword", models.KindWord},
	{"ms-excel", models.KindSpreadsheet},
	{"ms-powerpoint", models.KindPresentation},
}

var genericMIMERules = []rule{
	{"application/pdf", models.KindPDF},
	{"text/plain", models.KindText},
	{"text/csv", models.KindCSV},
	{"text/markdown", models.KindMarkdown},
}

var extensions = map[string]models.Kind{
	"jpg":  models.KindImage,
	"jpeg": models.KindImage,
	"png":  models.KindImage,
	"gif":  models.KindImage,
	"bmp":  models.KindImage,
	"webp": models.KindImage,
	"pdf":  models.KindPDF,
	"txt":  models.KindText,
	"csv":  models.KindCSV,
	"md":   models.KindMarkdown,
	"doc":  models.KindWord,
	"docx": models.KindWord,
	"xls":  models.KindSpreadsheet,
	"xlsx": models.KindSpreadsheet,
	"ppt":  models.KindPresentation,
	"pptx": models.KindPresentation,
}

// Normalize resolves a declared kind to its canonical kind. It is pure and
// total: unknown input yields models.KindUnsupported.
func Normalize(declared string) models.Kind {
	s := strings.ToLower(declared)
	for _, r := range officeMIMERules {
		if strings.Contains(s, r.substr) {
			return r.kind
		}
	}
	for _, r := range genericMIMERules {
		if strings.Contains(s, r.substr) {
			return r.kind
		}
	}
	if k, ok := extensions[strings.TrimPrefix(s, ".")]; ok {
		return k
	}
	return models.KindUnsupported
}

// Extension returns the lower-cased extension of a file name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// Sniff detects a declared kind from content bytes. It prefers the detected
// extension (which Normalize understands for every format) and falls back
// to the bare MIME type.
func Sniff(data []byte) string {
	m := mimetype.Detect(data)
	if ext := strings.TrimPrefix(m.Extension(), "."); ext != "" {
		return ext
	}
	mime, _, _ := strings.Cut(m.String(), ";")
	return mime
}

// Declared picks the declared kind for a stored object: an explicit content
// type wins unless it is the generic octet-stream, then the file extension,
// then content sniffing.
func Declared(name, contentType string, head []byte) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct != "" && !strings.HasPrefix(ct, "application/octet-stream") && Normalize(ct) != models.KindUnsupported {
		return ct
	}
	if ext := Extension(name); ext != "" && Normalize(ext) != models.KindUnsupported {
		return ext
	}
	if len(head) > 0 {
		return Sniff(head)
	}
	if ct != "" {
		return ct
	}
	return Extension(name)
}
