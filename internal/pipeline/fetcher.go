package pipeline

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/glimpse/internal/util"
	"github.com/ppiankov/glimpse/internal/worker"
)

// ErrDisallowed is returned by Preload when robots.txt forbids the URL.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// ErrTooLarge is returned by Fetch when a page body exceeds the byte limit.
var ErrTooLarge = errors.New("page too large")

// fetchSleepFunc is swapped out by tests to skip retry backoff.
var fetchSleepFunc = time.Sleep

const fetchAttempts = 3

// Fetcher fetches pages for previews and warms URLs for the preload scheduler
type Fetcher struct {
	httpClient   *http.Client
	userAgent    string
	maxBytes     int64
	maxRedirects int
	limiter      *worker.Limiter
	robots       *util.RobotsChecker
}

// FetcherOption customises a Fetcher
type FetcherOption func(*Fetcher)

// WithLimiter applies per-host rate limiting to background preloads
func WithLimiter(l *worker.Limiter) FetcherOption {
	return func(f *Fetcher) { f.limiter = l }
}

// WithRobots makes background preloads honour robots.txt
func WithRobots(r *util.RobotsChecker) FetcherOption {
	return func(f *Fetcher) { f.robots = r }
}

// WithMaxRedirects caps the redirect chain length (default 3)
func WithMaxRedirects(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxRedirects = n
		}
	}
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, insecureTLS bool, httpProxy, httpsProxy, noProxy string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		userAgent:    userAgent,
		maxBytes:     maxBytes,
		maxRedirects: 3,
	}
	for _, opt := range opts {
		opt(f)
	}

	transport := &http.Transport{
		Proxy:               util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	f.httpClient = &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.maxRedirects {
				return fmt.Errorf("stopped after %d redirects", f.maxRedirects)
			}
			return nil
		},
	}

	return f
}

// FetchResult contains the fetched HTML and metadata
type FetchResult struct {
	HTML        string
	StatusCode  int
	ContentType string
	FinalURL    string
	FetchedAt   time.Time
}

// Fetch retrieves HTML content from the given URL. Non-2xx responses fail.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, f.maxBytes)
	}

	return &FetchResult{
		HTML:        string(body),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// FetchWithRetry calls Fetch up to three times, backing off between attempts
// on transport errors, 5xx and 429 responses.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < fetchAttempts {
			fetchSleepFunc(time.Duration(attempt) * time.Second)
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", fetchAttempts, lastErr)
}

// Preload warms rawURL with a single GET. Any completed HTTP exchange counts
// as success, whatever its status. Preloads are never retried.
func (f *Fetcher) Preload(ctx context.Context, rawURL string) error {
	var crawlDelay time.Duration
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return fmt.Errorf("check robots: %w", err)
		}
		if !allowed {
			return fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
		}
		crawlDelay = delay
	}

	if f.limiter != nil {
		if err := f.limiter.WaitWithDelay(ctx, rawURL, crawlDelay); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Sec-Purpose", "prefetch")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain so the connection can be reused
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBytes)); err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	return nil
}

// isRetryableFetchError reports whether err is a transient failure
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	if strings.HasPrefix(msg, "fetch: ") {
		return true
	}

	var code int
	if _, scanErr := fmt.Sscanf(msg, "unexpected status: %d", &code); scanErr == nil {
		return code >= 500 || code == http.StatusTooManyRequests
	}

	return false
}
