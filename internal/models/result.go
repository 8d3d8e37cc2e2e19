package models

// Status discriminates a preview Result.
type Status string

const (
	StatusLoading     Status = "loading"
	StatusError       Status = "error"
	StatusNoContent   Status = "no_content"
	StatusUnsupported Status = "unsupported"
	StatusRendered    Status = "rendered"
)

// Result is the output of a preview: exactly one of loading, error,
// no content, unsupported, or rendered with a kind-specific view.
type Result struct {
	Status  Status   `json:"status"`
	Kind    Kind     `json:"kind,omitempty"`
	Info    FileInfo `json:"info"`
	Message string   `json:"message,omitempty"`
	View    View     `json:"view,omitempty"`
}

// View is a kind-specific view model.
type View interface {
	ViewKind() Kind
}

func Loading(info FileInfo) Result {
	return Result{Status: StatusLoading, Info: info, Message: "Loading preview..."}
}

func NoContent(info FileInfo) Result {
	return Result{Status: StatusNoContent, Info: info, Message: "No content available for preview"}
}

func Unsupported(info FileInfo, kind Kind) Result {
	return Result{Status: StatusUnsupported, Kind: kind, Info: info, Message: "Preview not available for this file type"}
}

func Failed(info FileInfo, kind Kind, err error) Result {
	return Result{Status: StatusError, Kind: kind, Info: info, Message: UserMessage(err)}
}

func Rendered(info FileInfo, v View) Result {
	return Result{Status: StatusRendered, Kind: v.ViewKind(), Info: info, View: v}
}

// ImageView describes a loaded image.
type ImageView struct {
	URL    string    `json:"url"`
	Format string    `json:"format"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	State  ViewState `json:"state"`
}

func (ImageView) ViewKind() Kind { return KindImage }

// PDFView describes a paginated document session.
type PDFView struct {
	SessionID   string  `json:"sessionId"`
	PageCount   int     `json:"pageCount"`
	CurrentPage int     `json:"currentPage"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Frame       []byte  `json:"frame,omitempty"`
	Scale       float64 `json:"scale"`
}

func (PDFView) ViewKind() Kind { return KindPDF }

// TextView is plain text shown preformatted.
type TextView struct {
	Text string `json:"text"`
}

func (TextView) ViewKind() Kind { return KindText }

// TableView is a parsed delimited table.
type TableView struct {
	Rows [][]string `json:"rows"`
}

func (TableView) ViewKind() Kind { return KindCSV }

// MarkdownView is sanitized HTML rendered from markdown.
type MarkdownView struct {
	HTML string `json:"html"`
}

func (MarkdownView) ViewKind() Kind { return KindMarkdown }

// OfficeView is the converted form of an office document. Placeholder is
// set when the format could not be converted and only file info is shown.
type OfficeView struct {
	Kind        Kind   `json:"kind"`
	HTML        string `json:"html,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

func (v OfficeView) ViewKind() Kind { return v.Kind }
