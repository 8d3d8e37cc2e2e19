package models

// Kind is the canonical document category used to pick a renderer.
type Kind string

const (
	KindImage        Kind = "image"
	KindPDF          Kind = "pdf"
	KindText         Kind = "text"
	KindCSV          Kind = "csv"
	KindMarkdown     Kind = "markdown"
	KindWord         Kind = "word"
	KindSpreadsheet  Kind = "spreadsheet"
	KindPresentation Kind = "presentation"
	KindUnsupported  Kind = "unsupported"
)

// Office reports whether k is one of the office document kinds.
func (k Kind) Office() bool {
	return k == KindWord || k == KindSpreadsheet || k == KindPresentation
}

// Paginated reports whether k is rendered page by page.
func (k Kind) Paginated() bool {
	return k == KindPDF
}
