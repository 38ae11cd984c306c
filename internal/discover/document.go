// Package discover finds preload candidates in a document and ranks them.
//
// A Document is the query surface over a page: its URL, the visible viewport
// and every hyperlink element with its resolved URL and bounding box. Two
// implementations exist. HTMLDocument parses markup with golang.org/x/net/html
// and estimates a flow layout; Snapshot carries the real layout exported from
// a rendering browser.
package discover

import (
	"github.com/ppiankov/glimpse/internal/model"
)

// Document exposes the hyperlinks of a page
type Document interface {
	// URL returns the document's own absolute URL
	URL() string
	// Viewport returns the visible area used for scoring
	Viewport() model.Viewport
	// Links returns every hyperlink-bearing element in document order
	Links() []Element
}

// Element is a single hyperlink element
type Element interface {
	// Href returns the link target resolved against the document base
	Href() string
	// Text returns the link's visible text, if any
	Text() string
	// Rect returns the element's bounding box relative to the viewport
	Rect() (model.Rect, error)
}

// DefaultViewport is used when a document does not describe its own viewport
var DefaultViewport = model.Viewport{Width: 1280, Height: 800}
