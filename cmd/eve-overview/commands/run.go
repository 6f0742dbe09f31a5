package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AreteDriver/EVE-Overview/internal/api"
	"github.com/AreteDriver/EVE-Overview/internal/app"
	"github.com/AreteDriver/EVE-Overview/internal/hotkey"
	"github.com/AreteDriver/EVE-Overview/internal/logger"
	"github.com/AreteDriver/EVE-Overview/internal/notify"
	"github.com/AreteDriver/EVE-Overview/internal/window"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the overview daemon",
	Long: `Run the overview daemon: loads the current profile, starts capturing
the configured windows, registers their hotkeys, and serves the panel
API.

The loaded profile is saved back on exit, preserving live panel
geometry and hotkey changes.`,
	Example: `  # Run with the current profile
  eve-overview run

  # Run a specific profile on a custom port
  eve-overview run --profile mining --port 9090

  # Run with debug logging
  eve-overview run --log-level debug`,
	RunE: runRun,
}

var runProfile string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runProfile, "profile", "", "profile to load (default is the current profile)")
}

func runRun(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer logger.Close()

	log := logger.WithComponent("main")
	log.Info().Str("config_dir", store.ConfigDir()).Msg("Starting EVE Overview")

	backend := window.Detect()
	notifier := notify.New()
	defer notifier.Close()

	ctrl := app.NewController(store, backend, hotkey.NewX11Listener(), notifier)

	if runProfile != "" {
		store.SetCurrentProfile(runProfile)
	}
	if err := ctrl.Start(); err != nil {
		return fmt.Errorf("starting controller: %w", err)
	}

	server := api.NewServer(ctrl, store)
	port := viper.GetInt("server_port")
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(port)
	}()

	log.Info().Msgf("Panel API on http://localhost:%d/api", port)
	log.Info().Msg("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("API server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API shutdown incomplete")
	}

	// Persists live panel state back into the profile.
	ctrl.Stop()
	log.Info().Msg("Stopped")
	return nil
}
