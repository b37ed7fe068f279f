package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/boardcall/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the credential HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, path, logger, err := loadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load config")
		return err
	}
	logger.Info().Str("config", path).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize app")
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting boardcall server")
	if err := application.Run(ctx); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
