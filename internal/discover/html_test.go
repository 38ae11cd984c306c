package discover

import (
	"strings"
	"testing"

	"github.com/ppiankov/glimpse/internal/model"
)

func parse(t *testing.T, markup, pageURL string, opts LayoutOptions) *HTMLDocument {
	t.Helper()
	doc, err := ParseHTML(strings.NewReader(markup), pageURL, opts)
	if err != nil {
		t.Fatalf("ParseHTML failed: %v", err)
	}
	return doc
}

func rectOf(t *testing.T, el Element) model.Rect {
	t.Helper()
	r, err := el.Rect()
	if err != nil {
		t.Fatalf("Rect failed: %v", err)
	}
	return r
}

func TestParseHTML_ResolvesLinks(t *testing.T) {
	markup := `
	<html><body>
		<a href="/relative/path">Relative</a>
		<a href="../parent">Parent</a>
		<a href="https://other.org/x">Absolute</a>
		<a name="anchor-without-href">No href</a>
	</body></html>`

	doc := parse(t, markup, "https://example.com/articles/page1", DefaultLayout())
	links := doc.Links()
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d", len(links))
	}

	want := []string{
		"https://example.com/relative/path",
		"https://example.com/parent",
		"https://other.org/x",
	}
	for i, w := range want {
		if links[i].Href() != w {
			t.Errorf("link %d: expected %s, got %s", i, w, links[i].Href())
		}
	}
	if links[0].Text() != "Relative" {
		t.Errorf("expected link text 'Relative', got %q", links[0].Text())
	}
}

func TestParseHTML_BaseHref(t *testing.T) {
	markup := `<html><head><base href="https://cdn.example.net/docs/"></head>
	<body><a href="intro.html">Intro</a></body></html>`

	doc := parse(t, markup, "https://example.com/", DefaultLayout())
	if got := doc.Links()[0].Href(); got != "https://cdn.example.net/docs/intro.html" {
		t.Errorf("expected base-resolved URL, got %s", got)
	}
}

func TestParseHTML_HiddenLinksHaveNoSize(t *testing.T) {
	markup := `<html><body>
		<p><a href="/visible">Visible</a></p>
		<div style="display: none"><a href="/in-hidden-div">Hidden</a></div>
		<a href="/hidden-attr" hidden>Hidden</a>
		<a href="/empty"></a>
		<template><a href="/templated">T</a></template>
	</body></html>`

	doc := parse(t, markup, "https://example.com/", DefaultLayout())
	links := doc.Links()
	if len(links) != 5 {
		t.Fatalf("expected 5 links, got %d", len(links))
	}

	if r := rectOf(t, links[0]); r.Width <= 0 || r.Height <= 0 {
		t.Errorf("expected visible link to have a box, got %+v", r)
	}
	for _, el := range links[1:] {
		if r := rectOf(t, el); r.Width != 0 || r.Height != 0 {
			t.Errorf("expected %s to have no size, got %+v", el.Href(), r)
		}
	}
}

func TestParseHTML_FlowLayout(t *testing.T) {
	opts := LayoutOptions{
		Viewport:   model.Viewport{Width: 400, Height: 300},
		LineHeight: 20,
		CharWidth:  10,
		ImgWidth:   100,
		ImgHeight:  50,
	}
	markup := `<html><body>
		<p>Intro <a href="/first">first</a></p>
		<p><a href="/second">second</a></p>
		<p><a href="/pic"><img src="x.png" width="200" height="80"></a></p>
		<p>after</p>
		<p><a href="/last">last</a></p>
	</body></html>`

	doc := parse(t, markup, "https://example.com/", opts)
	links := doc.Links()

	first := rectOf(t, links[0])
	if first.Top != 0 || first.Left != 50 || first.Width != 50 || first.Height != 20 {
		t.Errorf("unexpected first box %+v", first)
	}

	second := rectOf(t, links[1])
	if second.Top != 20 || second.Left != 0 || second.Width != 60 {
		t.Errorf("unexpected second box %+v", second)
	}

	pic := rectOf(t, links[2])
	if pic.Top != 40 || pic.Width != 200 || pic.Height != 80 {
		t.Errorf("unexpected image link box %+v", pic)
	}

	// The image line is 80px tall, then "after" takes a line
	last := rectOf(t, links[3])
	if last.Top != 140 {
		t.Errorf("expected last link at 140, got %+v", last)
	}
}

func TestParseHTML_WrapsLongText(t *testing.T) {
	opts := LayoutOptions{
		Viewport:   model.Viewport{Width: 100, Height: 300},
		LineHeight: 20,
		CharWidth:  10,
	}
	markup := `<p><a href="/long">aaaaaaaaaaaaaaaaaaaaaaaaa</a></p>`

	doc := parse(t, markup, "https://example.com/", opts)
	r := rectOf(t, doc.Links()[0])
	if r.Width != 100 || r.Height != 60 {
		t.Errorf("expected a 100x60 wrapped box, got %+v", r)
	}
}

func TestParseHTML_ScrollOffset(t *testing.T) {
	opts := DefaultLayout()
	opts.ScrollY = 500
	doc := parse(t, `<p><a href="/a">a</a></p>`, "https://example.com/", opts)

	if r := rectOf(t, doc.Links()[0]); r.Top != -500 {
		t.Errorf("expected scrolled top -500, got %v", r.Top)
	}
}

func TestParseHTML_RankEndToEnd(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	b.WriteString(`<nav><a href="https://example.com/home">Home</a> <a href="https://news.org/">News</a></nav>`)
	for i := 0; i < 60; i++ {
		b.WriteString(`<p>filler paragraph text</p>`)
	}
	b.WriteString(`<footer><a href="https://example.com/about">About</a></footer>`)
	b.WriteString(`<div hidden><a href="https://example.com/secret">Secret</a></div>`)
	b.WriteString(`</body></html>`)

	doc := parse(t, b.String(), "https://example.com/", DefaultLayout())
	got := Rank(doc, RankOptions{MaxCandidates: 10, Weights: model.DefaultWeights()})

	order := urls(got)
	want := []string{
		"https://example.com/home",   // 20
		"https://news.org/",          // 17
		"https://example.com/about",  // 13
		"https://example.com/secret", // 5: same origin, zero box at top 0
	}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestParseSnapshot(t *testing.T) {
	snapshot := `
url: https://example.com/list
viewport: {width: 1200, height: 900}
links:
  - href: /item/1
    text: One
    rect: {top: 10, left: 20, width: 100, height: 18}
  - href: https://other.org/
    rect: {top: 1400, left: 20, width: 100, height: 18}
  - href: /no-box
`
	snap, err := ParseSnapshot(strings.NewReader(snapshot))
	if err != nil {
		t.Fatalf("ParseSnapshot failed: %v", err)
	}

	if snap.Viewport().Height != 900 {
		t.Errorf("expected viewport height 900, got %v", snap.Viewport().Height)
	}
	links := snap.Links()
	if links[0].Href() != "https://example.com/item/1" {
		t.Errorf("expected resolved href, got %s", links[0].Href())
	}
	if rect, err := links[2].Rect(); err != nil || rect != (model.Rect{}) {
		t.Errorf("expected zero box for a link without rect, got %+v (%v)", rect, err)
	}

	// item/1: 10+5+3+2, other.org: rendered only, no-box: same origin + above fold
	got := Rank(snap, RankOptions{Weights: model.DefaultWeights()})
	want := []string{"https://example.com/item/1", "https://other.org/", "https://example.com/no-box"}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %v", len(want), urls(got))
	}
	for i, u := range want {
		if got[i].URL != u {
			t.Errorf("position %d: expected %s, got %s", i, u, got[i].URL)
		}
	}
	if got[2].Rendered || got[2].Priority != 5 {
		t.Errorf("expected unrendered no-box link with priority 5, got %+v", got[2])
	}
}

func TestParseSnapshot_JSON(t *testing.T) {
	snapshot := `{"url": "https://example.com/", "links": [{"href": "https://a.org/", "rect": {"top": 1, "left": 1, "width": 5, "height": 5}}]}`
	snap, err := ParseSnapshot(strings.NewReader(snapshot))
	if err != nil {
		t.Fatalf("ParseSnapshot failed: %v", err)
	}
	if snap.Viewport() != DefaultViewport {
		t.Errorf("expected default viewport, got %+v", snap.Viewport())
	}
	if len(snap.Links()) != 1 {
		t.Errorf("expected 1 link, got %d", len(snap.Links()))
	}
}

func TestParseSnapshot_RequiresURL(t *testing.T) {
	if _, err := ParseSnapshot(strings.NewReader("links: []")); err == nil {
		t.Error("expected error for snapshot without url")
	}
}

func TestIsSnapshotPath(t *testing.T) {
	for path, want := range map[string]bool{
		"page.yaml": true, "page.YML": true, "page.json": true, "page.html": false,
	} {
		if got := IsSnapshotPath(path); got != want {
			t.Errorf("IsSnapshotPath(%q) = %v, want %v", path, got, want)
		}
	}
}
