package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/glimpse/internal/model"
)

// PagePreloader preloads the links of one page
type PagePreloader interface {
	PreloadPage(ctx context.Context, pageURL string) (*model.PreloadReport, error)
}

// PreloadJob preloads one page through a PagePreloader
type PreloadJob struct {
	URL       string
	Preloader PagePreloader
	limiter   *Limiter
}

// Execute executes the preload job
func (j *PreloadJob) Execute(ctx context.Context) Result {
	if j.limiter != nil {
		if err := j.limiter.Wait(ctx, j.URL); err != nil {
			return &PageResult{URL: j.URL, Error: fmt.Errorf("rate limit: %w", err)}
		}
	}

	report, err := j.Preloader.PreloadPage(ctx, j.URL)
	if err != nil {
		return &PageResult{URL: j.URL, Error: err}
	}
	return &PageResult{URL: j.URL, Report: report}
}

// PageResult is the outcome of preloading one page
type PageResult struct {
	URL    string
	Report *model.PreloadReport
	Error  error
}

// GetError returns the error from the page result
func (r *PageResult) GetError() error {
	return r.Error
}

// BatchProcessor preloads many pages concurrently, one scheduler per page
type BatchProcessor struct {
	preloader   PagePreloader
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a batch processor. Page starts are paced per host
// at requestsPerSecond; zero disables pacing.
func NewBatchProcessor(preloader PagePreloader, concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	b := &BatchProcessor{
		preloader:   preloader,
		concurrency: concurrency,
	}
	if requestsPerSecond > 0 {
		b.limiter = NewLimiter(requestsPerSecond, burst)
	}
	return b
}

// ProcessURLs preloads every page and returns results in input order
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) []*PageResult {
	if len(urls) == 0 {
		return []*PageResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, u := range urls {
		if !pool.Submit(&PreloadJob{URL: u, Preloader: b.preloader, limiter: b.limiter}) {
			break
		}
	}

	results := pool.Wait()

	pageResults := make([]*PageResult, len(results))
	for i, result := range results {
		pageResults[i] = result.(*PageResult)
	}
	return pageResults
}

// ProcessFile reads page URLs from a file and preloads them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*PageResult, error) {
	urls, err := ReadURLsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read URLs: %w", err)
	}

	return b.ProcessURLs(ctx, urls), nil
}

// ReadURLsFromFile reads URLs from a file, one per line. Blank lines and
// lines starting with # are skipped; duplicates are dropped.
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return urls, nil
}
