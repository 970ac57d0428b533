package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinedex/internal/config"
	logpkg "github.com/kailas-cloud/cinedex/internal/logger"
	"github.com/kailas-cloud/cinedex/internal/version"
)

var (
	globalConfig config.Config
	globalLogger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cinedex-loader",
	Short: "Embed a movie dataset and load it into a cinedex backend",
	Long: `cinedex-loader reads a movie metadata parquet file, embeds each
record, and writes the result into a configured backend: either the
artifact files of a local index or a RediSearch vector index.

Configuration is read from config/<ENV>.yaml, same as the API server.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		env := config.GetEnv()
		cfg, err := config.Load(env)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		globalConfig = cfg

		logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		globalLogger = logger

		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if globalLogger != nil {
			_ = globalLogger.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
