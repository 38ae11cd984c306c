package discover

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/ppiankov/glimpse/internal/model"
	"gopkg.in/yaml.v3"
)

// Snapshot is a Document captured from a rendering browser: the page URL,
// the viewport and every link with its real bounding box. Snapshots are YAML
// or JSON files (JSON is read as YAML).
type Snapshot struct {
	PageURL string          `yaml:"url"`
	View    model.Viewport  `yaml:"viewport"`
	Items   []*SnapshotLink `yaml:"links"`
}

// SnapshotLink is one link in a Snapshot
type SnapshotLink struct {
	HrefValue string      `yaml:"href"`
	TextValue string      `yaml:"text,omitempty"`
	Box       *model.Rect `yaml:"rect,omitempty"`
}

// Href returns the link target
func (l *SnapshotLink) Href() string { return l.HrefValue }

// Text returns the link text
func (l *SnapshotLink) Text() string { return l.TextValue }

// Rect returns the captured box. A link captured without one is treated as
// a zero-sized box at the origin, so it ranks as not rendered.
func (l *SnapshotLink) Rect() (model.Rect, error) {
	if l.Box == nil {
		return model.Rect{}, nil
	}
	return *l.Box, nil
}

// URL returns the page URL
func (s *Snapshot) URL() string { return s.PageURL }

// Viewport returns the captured viewport
func (s *Snapshot) Viewport() model.Viewport { return s.View }

// Links returns the captured links in document order
func (s *Snapshot) Links() []Element {
	elements := make([]Element, len(s.Items))
	for i, l := range s.Items {
		elements[i] = l
	}
	return elements
}

// ParseSnapshot decodes a snapshot and resolves relative hrefs against its URL
func ParseSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	if snap.PageURL == "" {
		return nil, fmt.Errorf("snapshot has no url")
	}
	base, err := url.Parse(snap.PageURL)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot url: %w", err)
	}

	if snap.View.Width <= 0 || snap.View.Height <= 0 {
		snap.View = DefaultViewport
	}

	for _, l := range snap.Items {
		href := strings.TrimSpace(l.HrefValue)
		if ref, err := url.Parse(href); err == nil {
			l.HrefValue = base.ResolveReference(ref).String()
		}
	}

	return &snap, nil
}

// LoadSnapshot reads a snapshot file
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseSnapshot(f)
}

// IsSnapshotPath reports whether path looks like a snapshot file
func IsSnapshotPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".json")
}
