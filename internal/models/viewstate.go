package models

const (
	minZoom  = 0.5
	maxZoom  = 3.0
	zoomStep = 0.2
)

// ViewState is the zoom and rotation applied to an image preview.
type ViewState struct {
	Zoom     float64 `json:"zoom"`
	Rotation int     `json:"rotation"`
}

// DefaultViewState is the unzoomed, unrotated state.
func DefaultViewState() ViewState {
	return ViewState{Zoom: 1}
}

func (s ViewState) ZoomIn() ViewState {
	s.Zoom = min(s.Zoom+zoomStep, maxZoom)
	return s
}

func (s ViewState) ZoomOut() ViewState {
	s.Zoom = max(s.Zoom-zoomStep, minZoom)
	return s
}

// RotateLeft and RotateRight keep Rotation in (-360, 360).
func (s ViewState) RotateLeft() ViewState {
	s.Rotation = (s.Rotation - 90) % 360
	return s
}

func (s ViewState) RotateRight() ViewState {
	s.Rotation = (s.Rotation + 90) % 360
	return s
}

func (s ViewState) Reset() ViewState {
	return DefaultViewState()
}
