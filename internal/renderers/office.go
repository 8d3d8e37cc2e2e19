package renderers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"

	"github.com/Lllllllleong/documentpreview/internal/models"
)

// OfficePlaceholder is shown when an office file cannot be converted.
const OfficePlaceholder = "Download the file to view its contents"

// maxOfficePartBytes caps how much of a single archive part is inflated.
const maxOfficePartBytes = 32 << 20

// LegacyConverter converts legacy binary office files (.doc, .xls, .ppt) to markdown.
type LegacyConverter interface {
	ConvertToMarkdown(ctx context.Context, kind models.Kind, data []byte) (string, error)
}

// OfficeConverter renders word, spreadsheet and presentation files as HTML.
type OfficeConverter struct {
	legacy   LegacyConverter
	markdown *MarkdownRenderer
	policy   *bluemonday.Policy
	logger   *slog.Logger
}

// NewOfficeConverter creates a converter. legacy may be nil, in which case
// legacy formats get a placeholder.
func NewOfficeConverter(legacy LegacyConverter, logger *slog.Logger) *OfficeConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OfficeConverter{
		legacy:   legacy,
		markdown: NewMarkdownRenderer(),
		policy:   bluemonday.UGCPolicy(),
		logger:   logger,
	}
}

// Convert produces the office view for data declared as kind.
func (o *OfficeConverter) Convert(ctx context.Context, kind models.Kind, data []byte) (models.OfficeView, error) {
	logCtx := o.logger.With("kind", kind, "bytes", len(data))

	switch container(data) {
	case "zip":
		out, err := convertOOXML(kind, data)
		if err != nil {
			return models.OfficeView{}, models.NewPreviewError(models.ErrKindDecode, "Failed to convert document", err)
		}
		return models.OfficeView{Kind: kind, HTML: o.policy.Sanitize(out)}, nil
	case "ole":
		if o.legacy == nil {
			logCtx.Debug("No converter for legacy office format, showing placeholder.")
			return models.OfficeView{Kind: kind, Placeholder: OfficePlaceholder}, nil
		}
		md, err := o.legacy.ConvertToMarkdown(ctx, kind, data)
		if err != nil {
			logCtx.Warn("Legacy office conversion failed, showing placeholder.", "error", err)
			return models.OfficeView{Kind: kind, Placeholder: OfficePlaceholder}, nil
		}
		out, err := o.markdown.Render(md)
		if err != nil {
			return models.OfficeView{}, models.NewPreviewError(models.ErrKindDecode, "Failed to convert document", err)
		}
		return models.OfficeView{Kind: kind, HTML: out}, nil
	}
	logCtx.Debug("Unrecognized office container, showing placeholder.")
	return models.OfficeView{Kind: kind, Placeholder: OfficePlaceholder}, nil
}

// container reports whether data is an OOXML zip or a legacy OLE compound file.
func container(data []byte) string {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		switch {
		case m.Is("application/zip"):
			return "zip"
		case m.Is("application/x-ole-storage"):
			return "ole"
		}
	}
	return ""
}

func convertOOXML(kind models.Kind, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[f.Name] = f
	}

	switch kind {
	case models.KindWord:
		return docxHTML(parts)
	case models.KindSpreadsheet:
		return xlsxHTML(parts)
	case models.KindPresentation:
		return pptxHTML(parts)
	}
	return "", fmt.Errorf("%s is not an office kind", kind)
}

func readPart(parts map[string]*zip.File, name string) ([]byte, error) {
	f, ok := parts[name]
	if !ok {
		return nil, fmt.Errorf("missing part %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, maxOfficePartBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read part %s: %w", name, err)
	}
	return b, nil
}

// paragraphs collects the text runs of every paragraph element named para
// in an XML part; text elements are named text.
func paragraphs(b []byte, para, text string) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))
	var (
		out     []string
		cur     strings.Builder
		inPara  bool
		inText  bool
		inProps bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("malformed xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case para:
				inPara = true
				cur.Reset()
			case text:
				inText = true
			case "pPr":
				inProps = true
			case "tab":
				if inPara && !inProps {
					cur.WriteByte('\t')
				}
			case "br":
				if inPara {
					cur.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case para:
				inPara = false
				out = append(out, cur.String())
			case text:
				inText = false
			case "pPr":
				inProps = false
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
}

func docxHTML(parts map[string]*zip.File) (string, error) {
	b, err := readPart(parts, "word/document.xml")
	if err != nil {
		return "", err
	}
	paras, err := paragraphs(b, "p", "t")
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, p := range paras {
		if strings.TrimSpace(p) == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(strings.ReplaceAll(html.EscapeString(p), "\n", "<br>"))
		sb.WriteString("</p>")
	}
	return sb.String(), nil
}

func pptxHTML(parts map[string]*zip.File) (string, error) {
	var slides []int
	for name := range parts {
		if !strings.HasPrefix(name, "ppt/slides/slide") || path.Ext(name) != ".xml" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml"))
		if err == nil {
			slides = append(slides, n)
		}
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("presentation has no slides")
	}
	sort.Ints(slides)

	var sb strings.Builder
	for _, n := range slides {
		b, err := readPart(parts, fmt.Sprintf("ppt/slides/slide%d.xml", n))
		if err != nil {
			return "", err
		}
		paras, err := paragraphs(b, "p", "t")
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", n, err)
		}
		fmt.Fprintf(&sb, "<div><h2>Slide %d</h2>", n)
		for _, p := range paras {
			if strings.TrimSpace(p) == "" {
				continue
			}
			sb.WriteString("<p>")
			sb.WriteString(html.EscapeString(p))
			sb.WriteString("</p>")
		}
		sb.WriteString("</div>")
	}
	return sb.String(), nil
}

type xlsxSharedStrings struct {
	Items []struct {
		T    string `xml:"t"`
		Runs []struct {
			T string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

type xlsxSheet struct {
	Rows []struct {
		Cells []struct {
			Ref    string `xml:"r,attr"`
			Type   string `xml:"t,attr"`
			Value  string `xml:"v"`
			Inline struct {
				T string `xml:"t"`
			} `xml:"is"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

func xlsxHTML(parts map[string]*zip.File) (string, error) {
	var shared []string
	if _, ok := parts["xl/sharedStrings.xml"]; ok {
		b, err := readPart(parts, "xl/sharedStrings.xml")
		if err != nil {
			return "", err
		}
		var ss xlsxSharedStrings
		if err := xml.Unmarshal(b, &ss); err != nil {
			return "", fmt.Errorf("malformed shared strings: %w", err)
		}
		for _, si := range ss.Items {
			s := si.T
			for _, r := range si.Runs {
				s += r.T
			}
			shared = append(shared, s)
		}
	}

	name, err := firstSheet(parts)
	if err != nil {
		return "", err
	}
	b, err := readPart(parts, name)
	if err != nil {
		return "", err
	}
	var sheet xlsxSheet
	if err := xml.Unmarshal(b, &sheet); err != nil {
		return "", fmt.Errorf("malformed sheet: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("<table>")
	for _, row := range sheet.Rows {
		var cells []string
		for i, c := range row.Cells {
			col := columnIndex(c.Ref)
			if col < 0 {
				col = i
			}
			for len(cells) < col {
				cells = append(cells, "")
			}
			v := c.Value
			switch c.Type {
			case "s":
				if idx, err := strconv.Atoi(v); err == nil && idx >= 0 && idx < len(shared) {
					v = shared[idx]
				}
			case "inlineStr":
				v = c.Inline.T
			}
			cells = append(cells, v)
		}
		sb.WriteString("<tr>")
		for _, v := range cells {
			sb.WriteString("<td>")
			sb.WriteString(html.EscapeString(v))
			sb.WriteString("</td>")
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table>")
	return sb.String(), nil
}

func firstSheet(parts map[string]*zip.File) (string, error) {
	if _, ok := parts["xl/worksheets/sheet1.xml"]; ok {
		return "xl/worksheets/sheet1.xml", nil
	}
	var names []string
	for name := range parts {
		if strings.HasPrefix(name, "xl/worksheets/") && path.Ext(name) == ".xml" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	sort.Strings(names)
	return names[0], nil
}

// columnIndex converts the letters of a cell reference like "C7" to a zero-based column.
func columnIndex(ref string) int {
	col := 0
	n := 0
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			break
		}
		col = col*26 + int(r-'A'+1)
		n++
	}
	if n == 0 {
		return -1
	}
	return col - 1
}
