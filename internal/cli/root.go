package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/glimpse/internal/log"
	"github.com/ppiankov/glimpse/internal/model"
)

// version is set at build time with -ldflags "-X .../internal/cli.version=..."
var version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	quiet   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "glimpse",
	Short: "Glimpse - link previews and background preloading",
	Long: `Glimpse previews links without leaving the page and warms the most
promising links of a page in the background.

It ranks the links of a page by how visible they are, preloads the top
candidates with bounded concurrency into a size-capped cache, and serves
rewritten preview pages over a local HTTP API.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := log.New(os.Stderr, viper.GetBool("output.verbose"), viper.GetBool("output.quiet"))
		cmd.SetContext(log.WithLogger(cmd.Context(), logger))
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("glimpse " + version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.glimpse/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print warnings and results")
	rootCmd.PersistentFlags().String("ua", "", "HTTP User-Agent (default: a desktop browser)")
	rootCmd.PersistentFlags().Bool("insecure", false, "skip TLS certificate verification")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("output.quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("http.user_agent", rootCmd.PersistentFlags().Lookup("ua"))
	_ = viper.BindPFlag("http.insecure_tls", rootCmd.PersistentFlags().Lookup("insecure"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".glimpse"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// GLIMPSE_PRELOAD_MAX_CANDIDATES overrides preload.max_candidates
	viper.SetEnvPrefix("GLIMPSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && viper.GetBool("output.verbose") {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Warning: read config %s: %v\n", cfgFile, err)
	}
}

// setDefaults registers every key of the default config so that environment
// variables and bound flags are seen by Unmarshal.
func setDefaults() {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	walkDefaults("", tree)
}

func walkDefaults(prefix string, tree map[string]any) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			walkDefaults(key, sub)
			continue
		}
		viper.SetDefault(key, v)
	}
}

// loadConfig resolves the effective configuration: flags, then GLIMPSE_*
// environment variables, then the config file, then the defaults.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = model.DefaultConfig().HTTP.UserAgent
	}
	return cfg, nil
}

// bindFlags maps command flags onto config keys. Binding happens when the
// command runs because several commands share flag names.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if f := flags.Lookup(name); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
