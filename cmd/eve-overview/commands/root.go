package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AreteDriver/EVE-Overview/internal/config"
	"github.com/AreteDriver/EVE-Overview/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "eve-overview",
	Short: "EVE Overview - live preview panels for desktop windows",
	Long: `EVE Overview periodically screenshots selected desktop windows and
shows them as small always-refreshing preview panels, with global
hotkeys that raise and focus the source window.

Built for multiboxing EVE Online clients on Linux, but works with any
X11 window.

Features:
  • Enumerate desktop windows via wmctrl/xdotool or native X11
  • Scaled live previews served as MJPEG streams
  • Global hotkeys to refocus source windows
  • Named profiles with per-window geometry, scale, and hotkey
  • REST API and websocket event feed`,
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().String("config-dir", "", "config directory (default is $HOME/.config/eve-overview)")
	rootCmd.PersistentFlags().Int("port", 8087, "API server port")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", true, "human-readable console logging")

	viper.BindPFlag("config_dir", rootCmd.PersistentFlags().Lookup("config-dir"))
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))
}

func initViper() {
	viper.SetEnvPrefix("EVE_OVERVIEW")
	viper.AutomaticEnv()
}

// openStore builds the profile store from the configured directory and
// initializes logging with the store's log file.
func openStore() (*config.Store, error) {
	store, err := config.NewStore(viper.GetString("config_dir"))
	if err != nil {
		return nil, fmt.Errorf("opening config store: %w", err)
	}
	logger.Init(viper.GetString("log_level"), viper.GetBool("log_pretty"), store.LogFilePath())
	return store, nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
