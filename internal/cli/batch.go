package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cobra"

	"github.com/ppiankov/glimpse/internal/log"
	"github.com/ppiankov/glimpse/internal/model"
	"github.com/ppiankov/glimpse/internal/pipeline"
	"github.com/ppiankov/glimpse/internal/worker"
)

var (
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Preload the links of many pages in parallel",
	Long: `Batch reads page URLs from a file (one per line, # starts a comment) and
runs one preload pass per page, several pages at a time. Pages start no
faster than the configured per-host rate.

Example:
  glimpse batch pages.txt
  glimpse batch pages.txt --concurrency 8 --output-dir ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Int("concurrency", 0, "number of pages processed at once (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "write one JSON report per page to this directory")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	bindFlags(cmd.Flags(), map[string]string{"concurrency": "concurrency.workers"})
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Preload.StartDelay = 0

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()
	logger := log.FromContext(ctx)

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	p := pipeline.NewPipeline(cfg)
	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers, cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	logger.Printf("Preloading pages from %s with %d workers\n", args[0], cfg.Concurrency.Workers)
	results, err := processor.ProcessFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	var failures, preloaded int
	for _, result := range results {
		if result.Error != nil {
			failures++
			logger.Failf("%s: %v", result.URL, result.Error)
			continue
		}

		counts := result.Report.Counts()
		preloaded += counts[model.OutcomePreloaded]
		logger.Successf("%s (%d/%d preloaded)", result.URL, counts[model.OutcomePreloaded], len(result.Report.Candidates))

		if outputDir != "" {
			if err := writeReport(filepath.Join(outputDir, reportName(result.URL)), result.Report); err != nil {
				logger.Warnf("%s: %v", result.URL, err)
			}
		}
	}

	fmt.Println()
	fmt.Printf("  Pages:      %d\n", len(results))
	fmt.Printf("  Failures:   %d\n", failures)
	fmt.Printf("  Preloaded:  %d links\n", preloaded)
	if outputDir != "" {
		fmt.Printf("  Reports:    %s\n", outputDir)
	}

	if failures > 0 && failures == len(results) {
		return fmt.Errorf("all %d pages failed", failures)
	}
	return nil
}

func writeReport(path string, report *model.PreloadReport) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close report: %w", closeErr)
		}
	}()
	return writeJSON(f, report)
}

// reportName derives a readable, collision-free file name from a page URL
func reportName(pageURL string) string {
	slug := pageURL
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		slug = u.Host + u.Path
	}
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, strings.Trim(slug, "/"))
	if len(slug) > 80 {
		slug = slug[:80]
	}
	return fmt.Sprintf("%s-%08x.json", slug, uint32(xxhash.Sum64String(pageURL)))
}
