package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/glimpse/internal/cache"
	"github.com/ppiankov/glimpse/internal/discover"
	"github.com/ppiankov/glimpse/internal/log"
	"github.com/ppiankov/glimpse/internal/metrics"
	"github.com/ppiankov/glimpse/internal/model"
	"github.com/ppiankov/glimpse/internal/preload"
	"github.com/ppiankov/glimpse/internal/util"
	"github.com/ppiankov/glimpse/internal/worker"
)

// Pipeline wires the fetcher, page cache and preload scheduler together
type Pipeline struct {
	fetcher   *Fetcher
	previewer *Previewer
	config    *model.Config
	layout    discover.LayoutOptions
	metrics   *metrics.Metrics
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithLayout sets the layout used to estimate link boxes in HTML pages
func WithLayout(l discover.LayoutOptions) Option {
	return func(p *Pipeline) { p.layout = l }
}

// WithMetrics records preload outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) *Pipeline {
	fetchOpts := []FetcherOption{WithMaxRedirects(cfg.HTTP.MaxRedirects)}
	if cfg.RateLimiting.RequestsPerSecond > 0 {
		fetchOpts = append(fetchOpts, WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)))
	}
	if cfg.Robots.Respect {
		fetchOpts = append(fetchOpts, WithRobots(util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout, cfg.Robots.CacheTTL)))
	}

	fetcher := NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes, cfg.HTTP.InsecureTLS,
		cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy, fetchOpts...)

	var pages cache.Cache
	if cfg.Cache.Enabled {
		pages = cache.New(cfg.Cache.MemoryTTL, cfg.Cache.DiskDir, cfg.Cache.DiskTTL)
	}

	p := &Pipeline{
		fetcher:   fetcher,
		previewer: NewPreviewer(fetcher, pages, cfg.Cache.MemoryTTL),
		config:    cfg,
		layout:    discover.DefaultLayout(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetcher returns the shared fetcher
func (p *Pipeline) Fetcher() *Fetcher {
	return p.fetcher
}

// Previewer returns the shared previewer
func (p *Pipeline) Previewer() *Previewer {
	return p.previewer
}

// NewScheduler creates a preload scheduler backed by the pipeline's fetcher
func (p *Pipeline) NewScheduler(logger *log.Logger) *preload.Scheduler {
	return preload.New(p.fetcher, preload.WithLogger(logger), preload.WithMetrics(p.metrics))
}

// LoadDocument loads the page to discover links on. source is an http(s)
// URL, a snapshot file (.yaml, .yml, .json) or an HTML file. pageURL sets
// the address of an HTML file; it defaults to the file's file:// URL.
func (p *Pipeline) LoadDocument(ctx context.Context, source, pageURL string) (discover.Document, error) {
	switch {
	case isHTTPURL(source):
		result, err := p.fetcher.FetchWithRetry(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("fetch page: %w", err)
		}
		doc, err := discover.ParseHTML(strings.NewReader(result.HTML), result.FinalURL, p.layout)
		if err != nil {
			return nil, err
		}
		return doc, nil

	case discover.IsSnapshotPath(source):
		snap, err := discover.LoadSnapshot(source)
		if err != nil {
			return nil, err
		}
		return snap, nil

	default:
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open page: %w", err)
		}
		defer func() { _ = f.Close() }()

		if pageURL == "" {
			abs, err := filepath.Abs(source)
			if err != nil {
				return nil, fmt.Errorf("resolve path: %w", err)
			}
			pageURL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
		}
		doc, err := discover.ParseHTML(f, pageURL, p.layout)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
}

// Discover loads source and returns its ranked link candidates
func (p *Pipeline) Discover(ctx context.Context, source, pageURL string) ([]model.LinkCandidate, error) {
	doc, err := p.LoadDocument(ctx, source, pageURL)
	if err != nil {
		return nil, err
	}
	return discover.Rank(doc, discover.RankOptions{
		MaxCandidates: p.config.Preload.MaxCandidates,
		Weights:       p.config.Preload.Weights,
	}), nil
}

// PreloadPage runs one scheduler over source and waits for it to finish
func (p *Pipeline) PreloadPage(ctx context.Context, source string) (*model.PreloadReport, error) {
	doc, err := p.LoadDocument(ctx, source, "")
	if err != nil {
		return nil, err
	}

	cfg := p.config.Preload
	cfg.Enabled = true

	s := p.NewScheduler(log.FromContext(ctx))
	defer s.Destroy()

	if err := s.Initialize(ctx, cfg, doc); err != nil {
		return nil, fmt.Errorf("initialize preload: %w", err)
	}
	if err := s.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for preload: %w", err)
	}

	return s.Report(), nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
