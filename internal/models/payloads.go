package models

// These structs define the JSON payloads for the preview HTTP functions.

// PreviewRequest is the input for the HandlePreview function.
type PreviewRequest struct {
	DocumentID string `json:"documentId"`
	// Page navigates a paginated document. Zero keeps the current page.
	Page int `json:"page,omitempty"`
	// VisibleRatio is the fraction of the preview area currently on screen.
	VisibleRatio float64 `json:"visibleRatio"`
}

// PreviewResponse is the output of the HandlePreview function.
type PreviewResponse struct {
	DocumentID string `json:"documentId"`
	Result     Result `json:"result"`
}

// BatchPreviewRequest is the input for the HandleBatchPreview function.
type BatchPreviewRequest struct {
	DocumentIDs []string `json:"documentIds"`
}

// BatchPreviewResponse is the output of the HandleBatchPreview function,
// in request order.
type BatchPreviewResponse struct {
	Results []PreviewResponse `json:"results"`
}

// ClosePreviewRequest is the input for the HandleClosePreview function.
type ClosePreviewRequest struct {
	DocumentID string `json:"documentId"`
}

// ClosePreviewResponse is the output of the HandleClosePreview function.
type ClosePreviewResponse struct {
	Status string `json:"status"`
}
