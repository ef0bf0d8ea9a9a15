package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobmatch/internal/config"
	logpkg "github.com/kailas-cloud/jobmatch/internal/logger"
	"github.com/kailas-cloud/jobmatch/internal/version"
)

const appName = "jobmatch"

type rootFlags struct {
	env      string
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "jobmatch matches résumés against job postings and keeps the job index in sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.env, "env", "", "config environment (default: $ENV or local)")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "optional dotenv file loaded before config")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override logging.level: debug, info, warn, error")

	cmd.AddCommand(
		newServeCmd(flags),
		newSyncCmd(flags),
		newRepairCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

// bootstrap loads .env, the config for the selected env and the logger.
func bootstrap(flags *rootFlags) (config.Config, string, *zap.Logger, error) {
	if flags.envFile != "" {
		if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, "", nil, fmt.Errorf("load %s: %w", flags.envFile, err)
		}
	}

	env := flags.env
	if env == "" {
		env = config.GetEnv()
	}

	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, "", nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	logger, err := logpkg.NewLogger(env, level, zap.String("version", version.Version))
	if err != nil {
		return config.Config{}, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, env, logger, nil
}

// withApp runs fn against a fully wired app and tears it down afterwards.
func withApp(ctx context.Context, flags *rootFlags, fn func(ctx context.Context, a *app) error) error {
	cfg, env, logger, err := bootstrap(flags)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting jobmatch",
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("vector_index", cfg.VectorIndex.Driver),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.String("generation", cfg.Generation.Provider),
	)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed", zap.Error(err))
		return err
	}
	defer a.close()

	return fn(ctx, a)
}
