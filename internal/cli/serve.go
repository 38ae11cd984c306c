package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/glimpse/internal/log"
	"github.com/ppiankov/glimpse/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local preview and preload service",
	Long: `Serve runs the HTTP API used by the browser overlay: rewritten previews,
background preloading for the current page, user settings, preview
sessions and Prometheus metrics.

Example:
  glimpse serve
  glimpse serve --addr 127.0.0.1:9000 --settings ./settings.toml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	serveCmd.Flags().String("settings", "", "settings file (default: $HOME/.glimpse/settings.toml)")
}

func runServe(cmd *cobra.Command, args []string) error {
	bindFlags(cmd.Flags(), map[string]string{
		"addr":     "server.addr",
		"settings": "server.settings_file",
	})
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, server.WithLogger(log.FromContext(cmd.Context())))
	if err != nil {
		return err
	}
	return srv.Run(cmd.Context())
}
