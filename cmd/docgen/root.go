package main

import (
	"fmt"

	"docgen-workers/internal/common/config"
	"docgen-workers/internal/common/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "docgen",
	Short: "Real-estate document generation service",
	Long: `docgen classifies agent requests, picks a document template and the
matching instruction bundles, and asks a completion provider to fill it in.

It runs as an HTTP API with optional Zeebe job workers (serve) and ships
maintenance commands for the template catalogue and the database schema.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file (default: configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(templatesCmd)
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLoggers(cfg *config.Config) (*zap.Logger, logger.Logger) {
	zapLog := logger.NewWithOptions(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	return zapLog, logger.NewZapAdapter(zapLog)
}
