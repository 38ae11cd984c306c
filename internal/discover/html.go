package discover

import (
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/ppiankov/glimpse/internal/model"
	"golang.org/x/net/html"
)

// LayoutOptions tune the estimated flow layout of an HTMLDocument
type LayoutOptions struct {
	Viewport   model.Viewport
	ScrollY    float64 // vertical scroll offset subtracted from every box
	LineHeight float64
	CharWidth  float64
	ImgWidth   float64 // used when an <img> has no width attribute
	ImgHeight  float64 // used when an <img> has no height attribute
}

// DefaultLayout returns layout options for a desktop-sized viewport
func DefaultLayout() LayoutOptions {
	return LayoutOptions{
		Viewport:   DefaultViewport,
		LineHeight: 20,
		CharWidth:  8,
		ImgWidth:   150,
		ImgHeight:  100,
	}
}

// HTMLDocument is a Document parsed from markup. Boxes are estimated with a
// simple left-to-right, top-to-bottom flow: block elements start new lines,
// text and images are laid out inline and wrap at the viewport width, and
// hidden subtrees take no space.
type HTMLDocument struct {
	url      string
	viewport model.Viewport
	links    []Element
}

// htmlLink is an anchor found in an HTMLDocument
type htmlLink struct {
	href string
	text string
	rect model.Rect
}

func (l *htmlLink) Href() string              { return l.href }
func (l *htmlLink) Text() string              { return l.text }
func (l *htmlLink) Rect() (model.Rect, error) { return l.rect, nil }

// ParseHTML parses a page and estimates the boxes of its links
func ParseHTML(r io.Reader, pageURL string, opts LayoutOptions) (*HTMLDocument, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if href := findBaseHref(root); href != "" {
		if ref, err := url.Parse(href); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	if opts.Viewport.Width <= 0 || opts.Viewport.Height <= 0 {
		opts.Viewport = DefaultViewport
	}
	def := DefaultLayout()
	if opts.LineHeight <= 0 {
		opts.LineHeight = def.LineHeight
	}
	if opts.CharWidth <= 0 {
		opts.CharWidth = def.CharWidth
	}
	if opts.ImgWidth <= 0 {
		opts.ImgWidth = def.ImgWidth
	}
	if opts.ImgHeight <= 0 {
		opts.ImgHeight = def.ImgHeight
	}

	l := &layout{opts: opts, base: base, lineMax: opts.LineHeight}
	l.walk(root, false)

	return &HTMLDocument{
		url:      pageURL,
		viewport: opts.Viewport,
		links:    l.links,
	}, nil
}

// URL returns the page URL
func (d *HTMLDocument) URL() string { return d.url }

// Viewport returns the viewport used for layout
func (d *HTMLDocument) Viewport() model.Viewport { return d.viewport }

// Links returns the page's anchors in document order
func (d *HTMLDocument) Links() []Element { return d.links }

// layout is the state of the flow layout walk
type layout struct {
	opts    LayoutOptions
	base    *url.URL
	links   []Element
	x, y    float64
	lineMax float64 // tallest box on the current line

	anchor *anchorBox // innermost open anchor, if any
}

// anchorBox accumulates the union of boxes placed inside an anchor
type anchorBox struct {
	link                     *htmlLink
	text                     strings.Builder
	placed                   bool
	top, left, bottom, right float64
}

func (l *layout) walk(n *html.Node, hidden bool) {
	if n.Type == html.ElementNode {
		hidden = hidden || isHidden(n)

		if n.Data == "a" {
			if href, ok := attr(n, "href"); ok {
				l.walkAnchor(n, href, hidden)
				return
			}
		}

		if !hidden && isBlock(n.Data) {
			l.newline()
			defer l.newline()
		}

		if !hidden {
			switch n.Data {
			case "img":
				w := dimension(n, "width", l.opts.ImgWidth)
				h := dimension(n, "height", l.opts.ImgHeight)
				l.place(w, h)
			case "br":
				l.forceNewline()
			}
		}
	}

	if n.Type == html.TextNode && !hidden {
		l.text(n.Data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		l.walk(c, hidden)
	}
}

func (l *layout) walkAnchor(n *html.Node, href string, hidden bool) {
	link := &htmlLink{href: l.resolve(href)}
	l.links = append(l.links, link)

	outer := l.anchor
	box := &anchorBox{link: link}
	l.anchor = box

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		l.walk(c, hidden)
	}

	l.anchor = outer
	link.text = collapseSpace(box.text.String())

	if box.placed {
		link.rect = model.Rect{
			Top:    box.top - l.opts.ScrollY,
			Left:   box.left,
			Width:  box.right - box.left,
			Height: box.bottom - box.top,
		}
	} else if !hidden {
		// Empty anchors sit at the cursor with no size
		link.rect = model.Rect{Top: l.y - l.opts.ScrollY, Left: l.x}
	}

	if outer != nil && box.placed {
		outer.extend(box.top, box.left, box.bottom, box.right)
	}
}

// text lays out a run of text, wrapping at the viewport width
func (l *layout) text(s string) {
	s = collapseSpace(s)
	if s == "" {
		return
	}
	if l.anchor != nil {
		if l.anchor.text.Len() > 0 {
			l.anchor.text.WriteByte(' ')
		}
		l.anchor.text.WriteString(s)
	}

	remaining := float64(len([]rune(s))) * l.opts.CharWidth
	for remaining > 0 {
		room := l.opts.Viewport.Width - l.x
		if room <= 0 {
			l.forceNewline()
			room = l.opts.Viewport.Width
		}
		w := math.Min(remaining, room)
		l.place(w, l.opts.LineHeight)
		remaining -= w
	}
}

// place puts an inline box at the cursor, wrapping first if it does not fit
func (l *layout) place(w, h float64) {
	if l.x > 0 && l.x+w > l.opts.Viewport.Width {
		l.forceNewline()
	}

	top, left := l.y, l.x
	l.x += w
	if h > l.lineMax {
		l.lineMax = h
	}

	if l.anchor != nil {
		l.anchor.extend(top, left, top+h, left+w)
	}
}

// newline ends the current line if it holds anything
func (l *layout) newline() {
	if l.x > 0 {
		l.forceNewline()
	}
}

func (l *layout) forceNewline() {
	l.y += l.lineMax
	l.x = 0
	l.lineMax = l.opts.LineHeight
}

func (l *layout) resolve(href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return l.base.ResolveReference(ref).String()
}

func (b *anchorBox) extend(top, left, bottom, right float64) {
	if !b.placed {
		b.top, b.left, b.bottom, b.right = top, left, bottom, right
		b.placed = true
		return
	}
	b.top = math.Min(b.top, top)
	b.left = math.Min(b.left, left)
	b.bottom = math.Max(b.bottom, bottom)
	b.right = math.Max(b.right, right)
}

// findBaseHref returns the href of the first <base> element
func findBaseHref(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "base" {
		if href, ok := attr(n, "href"); ok {
			return strings.TrimSpace(href)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := findBaseHref(c); href != "" {
			return href
		}
	}
	return ""
}

// isHidden reports whether n and its subtree are not rendered
func isHidden(n *html.Node) bool {
	switch n.Data {
	case "head", "script", "style", "template", "noscript", "title", "meta", "link":
		return true
	}

	if _, ok := attr(n, "hidden"); ok {
		return true
	}

	if style, ok := attr(n, "style"); ok {
		s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
		if strings.Contains(s, "display:none") || strings.Contains(s, "visibility:hidden") {
			return true
		}
	}

	return false
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"body": true, "dd": true, "details": true, "div": true, "dl": true,
	"dt": true, "fieldset": true, "figcaption": true, "figure": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "nav": true, "ol": true, "p": true,
	"pre": true, "section": true, "summary": true, "table": true,
	"tr": true, "ul": true,
}

func isBlock(tag string) bool {
	return blockElements[tag]
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// dimension reads a numeric width/height attribute
func dimension(n *html.Node, key string, fallback float64) float64 {
	v, ok := attr(n, key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
