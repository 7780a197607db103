package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/a-essam23/go-vrsync/pkg/config"
	"github.com/a-essam23/go-vrsync/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	configName string
	configDir  string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configName, "config", "config", "config file name without extension")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding the config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "level", "", "logging level, overrides log.level")

	rootCmd.AddCommand(relayCmd, clientCmd, tokenCmd)
}

var rootCmd = &cobra.Command{
	Use:           "vrsync",
	Short:         "shared VR session relay and client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// setup loads the configuration and builds the process logger.
func setup() (*config.Config, *slog.Logger, error) {
	bootLogger := logging.New(logging.ParseLevel(logLevel))
	cfg, err := config.LoadFrom(bootLogger, configName, configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger := logging.New(logging.ParseLevel(level))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
