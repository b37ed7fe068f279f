// Package cmd holds the boardcall command line.
package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/boardcall/internal/config"
	"github.com/vovakirdan/boardcall/internal/log"
)

var (
	configPath string
	flagAddr   string
	flagLevel  string
	flagEngine string
)

var rootCmd = &cobra.Command{
	Use:   "boardcall",
	Short: "Credential backend for the whiteboard call panel",
	Long:  `Mints per-participant call credentials. Commands: serve (default), issue, fetch, config.`,
	RunE:  runServe,

	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to config.yaml (default ./config.yaml)")
	pf.StringVar(&flagAddr, "addr", "", "HTTP listen address")
	pf.StringVar(&flagLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flagEngine, "engine", "", "credential engine: realtimekit or livekit")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves configuration with flag overrides and builds the logger.
func loadConfig() (config.Config, string, *zerolog.Logger, error) {
	bootstrap := log.New("info", "console")

	cfg, path, err := config.Load(bootstrap, configPath)
	if err != nil {
		return cfg, path, bootstrap, err
	}
	cfg.UpdateFrom(config.Config{
		Addr:     flagAddr,
		LogLevel: flagLevel,
		Engine:   flagEngine,
	})
	if err := cfg.Validate(); err != nil {
		return cfg, path, bootstrap, err
	}

	return cfg, path, log.New(cfg.LogLevel, cfg.LogFormat), nil
}
