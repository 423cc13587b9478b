package main

import (
	"os"
	"time"

	"github.com/aleister1102/folderhook/internal/config"
	"github.com/aleister1102/folderhook/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"

	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "folderhook",
	Short: "Upload new images from watched folders to webhooks",
	Long: `folderhook polls a set of folders and uploads every image that appears
after monitoring starts to each configured webhook as multipart/form-data.

Files already present when a session starts are never uploaded.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to the YAML/JSON configuration file (default: $"+config.ConfigPathEnvVar+", then ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log_config.log_level")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

// bootstrapLogger is used until the configured logger exists.
func bootstrapLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// loadConfig loads the configuration and builds the application logger from it.
func loadConfig() (*config.GlobalConfig, zerolog.Logger, error) {
	boot := bootstrapLogger()

	gCfg, err := config.LoadGlobalConfig(cfgFile, boot)
	if err != nil {
		return nil, boot, err
	}
	if logLevel != "" {
		gCfg.LogConfig.LogLevel = logLevel
	}

	zLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		return nil, boot, err
	}
	return gCfg, zLogger, nil
}
