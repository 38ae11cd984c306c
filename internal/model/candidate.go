package model

// Rect is an element's bounding box relative to the viewport, in CSS pixels
type Rect struct {
	Top    float64 `json:"top" yaml:"top"`
	Left   float64 `json:"left" yaml:"left"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Bottom returns the bottom edge of the box
func (r Rect) Bottom() float64 {
	return r.Top + r.Height
}

// Right returns the right edge of the box
func (r Rect) Right() float64 {
	return r.Left + r.Width
}

// Viewport is the visible area of the document
type Viewport struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// LinkCandidate is a link discovered on a page that is eligible for preloading.
// Candidates are recomputed on every discovery pass and never persisted.
type LinkCandidate struct {
	URL        string `json:"url"`
	Index      int    `json:"index"` // position of the source element in document order
	Text       string `json:"text,omitempty"`
	Priority   int    `json:"priority"`
	Rendered   bool   `json:"rendered"`
	InViewport bool   `json:"in_viewport"`
	SameOrigin bool   `json:"same_origin"`
	AboveFold  bool   `json:"above_fold"`
}
