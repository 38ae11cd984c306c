package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/glimpse/internal/discover"
	"github.com/ppiankov/glimpse/internal/log"
	"github.com/ppiankov/glimpse/internal/pipeline"
)

var (
	previewOut     string
	previewPage    string
	previewTimeout time.Duration
)

// previewCmd represents the preview command
var previewCmd = &cobra.Command{
	Use:   "preview <url>",
	Short: "Fetch a page the way the preview frame shows it",
	Long: `Preview fetches a page and rewrites it with a <base> element so its
relative links, styles and images resolve against the original site.

Example:
  glimpse preview https://example.com/docs/ -o docs.html`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringVarP(&previewOut, "output", "o", "", "write HTML to this file (default: stdout)")
	previewCmd.Flags().StringVar(&previewPage, "page", "", "page the link was found on; links back to it are refused")
	previewCmd.Flags().DurationVar(&previewTimeout, "timeout", time.Minute, "fetch timeout")
}

func runPreview(cmd *cobra.Command, args []string) error {
	target := args[0]
	if !discover.Valid(target, previewPage) {
		return fmt.Errorf("not a previewable link: %s", target)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), previewTimeout)
	defer cancel()
	logger := log.FromContext(ctx)

	preview, err := pipeline.NewPipeline(cfg).Previewer().Preview(ctx, target)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	if preview.FinalURL != target {
		logger.Debugf("Redirected to %s", preview.FinalURL)
	}

	if previewOut == "" {
		_, err := fmt.Fprint(os.Stdout, preview.HTML)
		return err
	}
	if err := os.WriteFile(previewOut, []byte(preview.HTML), 0644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	logger.Successf("Wrote %s (%d bytes)", previewOut, len(preview.HTML))
	return nil
}
