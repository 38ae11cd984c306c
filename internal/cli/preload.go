package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/glimpse/internal/log"
	"github.com/ppiankov/glimpse/internal/model"
	"github.com/ppiankov/glimpse/internal/pipeline"
)

var (
	pageURL        string
	preloadTimeout time.Duration
	jsonOutput     bool
)

// preloadCmd represents the preload command
var preloadCmd = &cobra.Command{
	Use:   "preload <url|page.html|snapshot.yaml>",
	Short: "Preload the most promising links of a page",
	Long: `Preload ranks the links of a page and fetches the top candidates in the
background with bounded concurrency, then prints what happened to each one
and the state of the preload cache.

The page can be a live URL, a saved HTML file (link boxes are estimated) or
a snapshot captured from a browser with real link boxes.

Example:
  glimpse preload https://example.com
  glimpse preload saved.html --page-url https://example.com/docs/
  glimpse preload snapshot.yaml --max-links 5 --concurrency 3 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runPreload,
}

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover <url|page.html|snapshot.yaml>",
	Short: "List the ranked link candidates of a page without fetching them",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiscover,
}

func init() {
	rootCmd.AddCommand(preloadCmd)
	rootCmd.AddCommand(discoverCmd)

	for _, cmd := range []*cobra.Command{preloadCmd, discoverCmd} {
		cmd.Flags().StringVar(&pageURL, "page-url", "", "address of a local HTML file (default: its file:// URL)")
		cmd.Flags().Int("max-links", 0, "maximum number of candidates (default from config)")
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")
		cmd.Flags().DurationVar(&preloadTimeout, "timeout", 2*time.Minute, "overall timeout")
	}

	preloadCmd.Flags().Int("concurrency", 0, "maximum fetches in flight (default from config)")
	preloadCmd.Flags().Duration("delay", 0, "wait before the first fetch")
	preloadCmd.Flags().Bool("no-robots", false, "ignore robots.txt")
}

func runPreload(cmd *cobra.Command, args []string) error {
	bindFlags(cmd.Flags(), map[string]string{
		"max-links":   "preload.max_candidates",
		"concurrency": "preload.max_concurrent_fetches",
	})
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// The config's start delay is meant for the interactive service
	cfg.Preload.StartDelay, _ = cmd.Flags().GetDuration("delay")
	cfg.Preload.Enabled = true
	if noRobots, _ := cmd.Flags().GetBool("no-robots"); noRobots {
		cfg.Robots.Respect = false
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), preloadTimeout)
	defer cancel()
	logger := log.FromContext(ctx)

	p := pipeline.NewPipeline(cfg)

	logger.Debugf("Loading %s", args[0])
	doc, err := p.LoadDocument(ctx, args[0], pageURL)
	if err != nil {
		return fmt.Errorf("load page: %w", err)
	}

	scheduler := p.NewScheduler(logger)
	defer scheduler.Destroy()

	if err := scheduler.Initialize(ctx, cfg.Preload, doc); err != nil {
		return fmt.Errorf("start preload: %w", err)
	}
	logger.Printf("Preloading %d links from %s (%d at a time)\n",
		len(scheduler.Candidates()), doc.URL(), scheduler.Config().MaxConcurrentFetches)

	if err := scheduler.Wait(ctx); err != nil {
		return fmt.Errorf("preload: %w", err)
	}

	report := scheduler.Report()
	if jsonOutput {
		return writeJSON(os.Stdout, report)
	}
	printReport(logger, report)
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	bindFlags(cmd.Flags(), map[string]string{"max-links": "preload.max_candidates"})
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), preloadTimeout)
	defer cancel()

	candidates, err := pipeline.NewPipeline(cfg).Discover(ctx, args[0], pageURL)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(os.Stdout, candidates)
	}
	printCandidates(os.Stdout, candidates)
	return nil
}

func printCandidates(w io.Writer, candidates []model.LinkCandidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(w, "No preloadable links found")
		return
	}
	for i, c := range candidates {
		fmt.Fprintf(w, "%3d. [%2d] %s%s\n", i+1, c.Priority, c.URL, candidateFlags(c))
	}
}

func candidateFlags(c model.LinkCandidate) string {
	var flags string
	for _, f := range []struct {
		on   bool
		name string
	}{
		{c.Rendered, "rendered"},
		{c.InViewport, "viewport"},
		{c.SameOrigin, "same-origin"},
		{c.AboveFold, "above-fold"},
	} {
		if f.on {
			flags += " " + f.name
		}
	}
	if flags == "" {
		return ""
	}
	return "  (" + flags[1:] + ")"
}

func printReport(logger *log.Logger, report *model.PreloadReport) {
	printCandidates(os.Stdout, report.Candidates)
	fmt.Println()

	for _, o := range report.Outcomes {
		switch o.Status {
		case model.OutcomePreloaded:
			logger.Successf("%s (%s)", o.URL, o.Duration.Round(time.Millisecond))
		case model.OutcomeFailed:
			logger.Failf("%s: %s", o.URL, o.Error)
		default:
			logger.Printf("- %s: %s\n", o.URL, o.Status)
		}
	}

	counts := report.Counts()
	stats := report.Cache
	fmt.Println()
	fmt.Printf("  Preloaded:  %d\n", counts[model.OutcomePreloaded])
	fmt.Printf("  Failed:     %d\n", counts[model.OutcomeFailed])
	fmt.Printf("  Skipped:    %d\n", counts[model.OutcomeCached]+counts[model.OutcomeInFlight]+counts[model.OutcomeRejected])
	fmt.Printf("  Cache:      %d entries, %d/%d bytes (%.1f%%), %d evictions\n",
		stats.EntryCount, stats.TotalSize, stats.MaxSize, stats.UtilizationPercent, stats.Evictions)
	fmt.Printf("  Duration:   %s\n", report.Duration.Round(time.Millisecond))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
