package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/glimpse/internal/cache"
	"github.com/ppiankov/glimpse/internal/log"
)

// Preview is a page prepared for display in a preview frame
type Preview struct {
	URL       string
	FinalURL  string
	HTML      string
	FromCache bool
}

// Previewer fetches pages for the preview frame. Bodies are rewritten with a
// <base> element so relative resources resolve against the original site.
// Concurrent requests for the same URL share one fetch.
type Previewer struct {
	fetcher *Fetcher
	pages   cache.Cache
	ttl     time.Duration
	group   singleflight.Group
}

// NewPreviewer creates a previewer. pages may be nil to disable caching.
func NewPreviewer(fetcher *Fetcher, pages cache.Cache, ttl time.Duration) *Previewer {
	return &Previewer{
		fetcher: fetcher,
		pages:   pages,
		ttl:     ttl,
	}
}

// Preview returns the rewritten page for target
func (p *Previewer) Preview(ctx context.Context, target string) (*Preview, error) {
	key := cache.CacheKey(target)

	if p.pages != nil {
		if data, ok := p.pages.Get(key); ok {
			return &Preview{URL: target, FinalURL: target, HTML: string(data), FromCache: true}, nil
		}
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		result, err := p.fetcher.FetchWithRetry(ctx, target)
		if err != nil {
			return nil, err
		}

		body, err := InjectBase(result.HTML, result.FinalURL)
		if err != nil {
			return nil, fmt.Errorf("rewrite page: %w", err)
		}

		if p.pages != nil {
			if err := p.pages.Set(key, []byte(body), p.ttl); err != nil {
				log.FromContext(ctx).Warnf("cache preview for %s: %v", target, err)
			}
		}

		return &Preview{URL: target, FinalURL: result.FinalURL, HTML: body}, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers may share the result; hand each its own copy
	shared := *v.(*Preview)
	return &shared, nil
}

// Forget drops target from the page cache
func (p *Previewer) Forget(target string) error {
	if p.pages == nil {
		return nil
	}
	return p.pages.Delete(cache.CacheKey(target))
}

// Purge empties the page cache
func (p *Previewer) Purge() error {
	if p.pages == nil {
		return nil
	}
	return p.pages.Clear()
}

// InjectBase inserts <base href=baseURL> as the first child of <head>
func InjectBase(page, baseURL string) (string, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	head := findElement(root, atom.Head)
	if head == nil {
		// html.Parse always synthesises <head>
		return "", fmt.Errorf("no head element")
	}

	base := &html.Node{
		Type:     html.ElementNode,
		Data:     "base",
		DataAtom: atom.Base,
		Attr:     []html.Attribute{{Key: "href", Val: baseURL}},
	}
	head.InsertBefore(base, head.FirstChild)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("render HTML: %w", err)
	}
	return buf.String(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
