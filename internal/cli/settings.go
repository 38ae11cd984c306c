package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/glimpse/internal/log"
	"github.com/ppiankov/glimpse/internal/settings"
)

// settingsCmd represents the settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "View and change user settings",
	Long: `Settings are the preferences the overlay uses: activation key, theme,
window size and the preload options. They live in a TOML file with a
backup copy next to it; the running service picks up changes made through
its API.`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := settingsStore()
		if err != nil {
			return err
		}
		st, err := store.Load()
		if err != nil {
			log.FromContext(cmd.Context()).Warnf("load settings: %v (showing defaults)", err)
		}
		fmt.Fprintf(os.Stderr, "Settings file: %s\n\n", store.Path())
		return toml.NewEncoder(os.Stdout).Encode(st)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Set changes one setting and saves the file. Out-of-range numbers are
clamped. Run 'glimpse settings keys' for the list of keys.

Example:
  glimpse settings set theme_color '#ff8800'
  glimpse settings set preload.max_links 5`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := settingsStore()
		if err != nil {
			return err
		}
		st, err := store.Load()
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		if err := st.Set(args[0], args[1]); err != nil {
			return err
		}
		if _, err := store.Save(st); err != nil {
			return err
		}
		log.FromContext(cmd.Context()).Successf("Saved %s", store.Path())
		return nil
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := settingsStore()
		if err != nil {
			return err
		}
		if _, err := store.Reset(); err != nil {
			return err
		}
		log.FromContext(cmd.Context()).Successf("Reset %s to defaults", store.Path())
		return nil
	},
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the keys accepted by 'settings set'",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, k := range settings.Keys() {
			fmt.Println(k)
		}
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.PersistentFlags().String("file", "", "settings file (default: $HOME/.glimpse/settings.toml)")
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsResetCmd, settingsKeysCmd)
}

// settingsStore opens the settings file named by --file, the config, or the
// default location, in that order.
func settingsStore() (*settings.Store, error) {
	path, _ := settingsCmd.PersistentFlags().GetString("file")
	if path == "" {
		path = viper.GetString("server.settings_file")
	}
	if path == "" {
		p, err := settings.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return settings.NewStore(path), nil
}
