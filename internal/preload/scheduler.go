// Package preload runs background warm-up fetches for the most promising
// links of a page and records them in a bounded preload cache.
//
// A Scheduler owns at most one run at a time. Initialize tears down the
// previous run before starting a new one, and every asynchronous step of a
// run checks that the run is still current before touching shared state, so
// fetches that complete after Destroy or a re-Initialize are dropped.
package preload

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ppiankov/glimpse/internal/cache"
	"github.com/ppiankov/glimpse/internal/discover"
	"github.com/ppiankov/glimpse/internal/log"
	"github.com/ppiankov/glimpse/internal/metrics"
	"github.com/ppiankov/glimpse/internal/model"
)

// ErrNoDocument is returned by Initialize when preloading is enabled but no
// document was supplied.
var ErrNoDocument = errors.New("no document to preload from")

// Fetcher performs one background fetch. Any completed HTTP exchange is a
// success; only transport-level failures return an error.
type Fetcher interface {
	Preload(ctx context.Context, url string) error
}

// Scheduler discovers link candidates and preloads them with bounded
// concurrency.
type Scheduler struct {
	fetcher Fetcher
	logger  *log.Logger
	metrics *metrics.Metrics
	now     cache.Clock

	mu         sync.Mutex
	run        *run
	cfg        model.PreloadConfig
	doc        discover.Document
	cache      *cache.PreloadCache
	candidates []model.LinkCandidate
	inFlight   map[string]struct{}
	outcomes   []model.PreloadOutcome
	startedAt  time.Time
	finishedAt time.Time
}

// run is the liveness token for one Initialize call
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *run) alive() bool {
	return r.ctx.Err() == nil
}

// Option customises a Scheduler
type Option func(*Scheduler)

// WithLogger sets the logger for fetch and cache events
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics records fetch outcomes and cache usage
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock overrides the time source used for cache entries
func WithClock(now cache.Clock) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates an idle scheduler
func New(fetcher Fetcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		fetcher:  fetcher,
		logger:   log.Discard(),
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize tears down any previous run and, when cfg is enabled, builds a
// fresh cache, ranks the links of doc and starts preloading after
// cfg.StartDelay. It returns without waiting for the fetches.
func (s *Scheduler) Initialize(ctx context.Context, cfg model.PreloadConfig, doc discover.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardownLocked()
	s.outcomes = nil

	if !cfg.Enabled {
		s.logger.Debugf("preload: disabled")
		return nil
	}
	if doc == nil {
		return ErrNoDocument
	}

	cfg = normalize(cfg)
	s.cfg = cfg
	s.doc = doc
	s.cache = cache.NewPreload(cache.PreloadConfig{
		MaxSize:       cfg.CacheSizeLimitBytes,
		TTL:           cfg.CacheTTL,
		SweepInterval: cfg.SweepInterval,
	}, cache.WithClock(s.now), cache.WithLogger(s.logger))
	s.candidates = discover.Rank(doc, s.rankOptions())

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{ctx: runCtx, cancel: cancel, done: make(chan struct{})}
	s.run = r
	s.startedAt = s.now()
	s.finishedAt = time.Time{}

	s.logger.Debugf("preload: %d candidates on %s, starting in %s", len(s.candidates), doc.URL(), cfg.StartDelay)
	go s.start(r, cfg.StartDelay)

	return nil
}

// Discover re-ranks the links of the current document and replaces the
// candidate list. It returns nil when no run is active.
func (s *Scheduler) Discover() []model.LinkCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil || s.doc == nil {
		return nil
	}
	s.candidates = discover.Rank(s.doc, s.rankOptions())
	return append([]model.LinkCandidate(nil), s.candidates...)
}

// GetCachedContent returns the cached entry for url, if the current run
// holds a live one.
func (s *Scheduler) GetCachedContent(url string) (any, bool) {
	s.mu.Lock()
	c := s.cache
	s.mu.Unlock()

	if c == nil {
		return nil, false
	}
	return c.Get(url)
}

// Stats returns the cache statistics of the current run. The second result
// is false when no cache exists.
func (s *Scheduler) Stats() (model.CacheStats, bool) {
	s.mu.Lock()
	c := s.cache
	s.mu.Unlock()

	if c == nil {
		return model.CacheStats{}, false
	}
	return c.Stats(), true
}

// Candidates returns the ranked candidates of the current run
func (s *Scheduler) Candidates() []model.LinkCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LinkCandidate(nil), s.candidates...)
}

// Outcomes returns what happened to each candidate processed so far
func (s *Scheduler) Outcomes() []model.PreloadOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PreloadOutcome(nil), s.outcomes...)
}

// Config returns the configuration of the current run with defaults filled in
func (s *Scheduler) Config() model.PreloadConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Report summarises the current run. It returns nil when no run is active.
func (s *Scheduler) Report() *model.PreloadReport {
	s.mu.Lock()
	if s.run == nil {
		s.mu.Unlock()
		return nil
	}
	report := &model.PreloadReport{
		PageURL:    s.doc.URL(),
		StartedAt:  s.startedAt,
		Candidates: append([]model.LinkCandidate(nil), s.candidates...),
		Outcomes:   append([]model.PreloadOutcome(nil), s.outcomes...),
	}
	end := s.finishedAt
	if end.IsZero() {
		end = s.now()
	}
	report.Duration = end.Sub(s.startedAt)
	c := s.cache
	s.mu.Unlock()

	report.Cache = c.Stats()
	return report
}

// Wait blocks until the current run has processed every candidate, has been
// torn down, or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()

	if r == nil {
		return nil
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Destroy cancels the pending start and in-flight fetches, destroys the
// cache and forgets all candidates. Safe to call more than once.
func (s *Scheduler) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardownLocked()
	s.outcomes = nil
}

// teardownLocked ends the current run. Caller must hold s.mu.
func (s *Scheduler) teardownLocked() {
	if s.run != nil {
		s.run.cancel()
		s.run = nil
	}
	if s.cache != nil {
		s.cache.Destroy()
		s.cache = nil
	}
	s.doc = nil
	s.candidates = nil
	s.inFlight = make(map[string]struct{})
	s.metrics.SetInFlight(0)
	s.metrics.SetCacheUsage(0, 0)
}

func (s *Scheduler) rankOptions() discover.RankOptions {
	return discover.RankOptions{MaxCandidates: s.cfg.MaxCandidates, Weights: s.cfg.Weights}
}

// start waits out the start delay, then drains the candidate list
func (s *Scheduler) start(r *run, delay time.Duration) {
	defer close(r.done)

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-r.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	s.drain(r)

	s.mu.Lock()
	if r.alive() {
		s.finishedAt = s.now()
	}
	s.mu.Unlock()
}

// drain fetches the candidates in priority order, holding at most
// MaxConcurrentFetches fetches in flight.
func (s *Scheduler) drain(r *run) {
	s.mu.Lock()
	if !r.alive() {
		s.mu.Unlock()
		return
	}
	queue := append([]model.LinkCandidate(nil), s.candidates...)
	sem := semaphore.NewWeighted(int64(s.cfg.MaxConcurrentFetches))
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range queue {
		if err := sem.Acquire(r.ctx, 1); err != nil {
			break
		}

		if !s.claim(r, c.URL) {
			sem.Release(1)
			continue
		}

		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			defer sem.Release(1)
			s.fetch(r, url)
		}(c.URL)
	}
	wg.Wait()
}

// claim marks url as in flight. It returns false, recording why, when the
// url is already cached or being fetched, or when the run has ended.
func (s *Scheduler) claim(r *run, url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !r.alive() {
		return false
	}

	if s.cache.Contains(url) {
		s.record(model.PreloadOutcome{URL: url, Status: model.OutcomeCached})
		return false
	}
	if _, busy := s.inFlight[url]; busy {
		s.record(model.PreloadOutcome{URL: url, Status: model.OutcomeInFlight})
		return false
	}

	s.inFlight[url] = struct{}{}
	s.metrics.SetInFlight(len(s.inFlight))
	return true
}

// fetch preloads one URL and stores a marker on success. Failures are
// logged and dropped.
func (s *Scheduler) fetch(r *run, url string) {
	start := time.Now()
	err := s.fetcher.Preload(r.ctx, url)
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !r.alive() {
		return
	}

	delete(s.inFlight, url)
	s.metrics.SetInFlight(len(s.inFlight))

	outcome := model.PreloadOutcome{URL: url, Duration: elapsed}
	switch {
	case err != nil:
		outcome.Status = model.OutcomeFailed
		outcome.Error = err.Error()
		s.logger.Debugf("preload: failed %s: %v", url, err)
	case s.cache.Put(url, cache.Marker{Preloaded: true, At: s.now()}, cache.MarkerSize):
		outcome.Status = model.OutcomePreloaded
		s.logger.Debugf("preload: warmed %s in %s", url, elapsed.Round(time.Millisecond))
	default:
		outcome.Status = model.OutcomeRejected
	}
	s.record(outcome)

	stats := s.cache.Stats()
	s.metrics.SetCacheUsage(stats.EntryCount, stats.TotalSize)
}

// record appends an outcome. Caller must hold s.mu.
func (s *Scheduler) record(o model.PreloadOutcome) {
	s.outcomes = append(s.outcomes, o)
	s.metrics.RecordPreload(string(o.Status), o.Duration)
}

// normalize fills zero values with the defaults
func normalize(cfg model.PreloadConfig) model.PreloadConfig {
	def := model.DefaultPreloadConfig()
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = def.MaxConcurrentFetches
	}
	if cfg.MaxCandidates == 0 {
		cfg.MaxCandidates = def.MaxCandidates
	}
	if cfg.CacheSizeLimitBytes <= 0 {
		cfg.CacheSizeLimitBytes = def.CacheSizeLimitBytes
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.SweepInterval < 0 {
		cfg.SweepInterval = 0
	}
	if cfg.StartDelay < 0 {
		cfg.StartDelay = 0
	}
	if cfg.Weights == (model.PriorityWeights{}) {
		cfg.Weights = def.Weights
	}
	return cfg
}

