package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/camrelay/internal/config"
	"github.com/ayusman/camrelay/internal/logging"
)

type rootOptions struct {
	ConfigFile string
	LogLevel   string
}

var rootOpts = &rootOptions{}

var rootCmd = &cobra.Command{
	Use:   "camrelay",
	Short: "Camera capture relay",
	Long: `camrelay captures frames from a local camera, converts them to BGRA at a
chosen resolution and relays them to a browser preview, a desktop tray or the
console, with a run history kept in SQLite.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&rootOpts.ConfigFile, "config", "c", "", "Config file (default: ./config.yaml, $XDG_CONFIG_HOME/camrelay/config.yaml)")
	flags.StringVar(&rootOpts.LogLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewTrayCommand())
	rootCmd.AddCommand(NewConsoleCommand())
	rootCmd.AddCommand(NewDevicesCommand())
	rootCmd.AddCommand(NewRunsCommand())
}

// setup loads configuration and builds the process logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(rootOpts.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	if rootOpts.LogLevel != "" {
		cfg.Log.Level = rootOpts.LogLevel
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	slog.SetDefault(logger)
	logging.RedirectStdLog(logger)

	if cfg.File != "" {
		logger.Debug("Loaded config", "file", cfg.File)
	}
	return cfg, logger, nil
}
