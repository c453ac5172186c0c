package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-harvester/internal/app"
	"github.com/JakeFAU/catalog-harvester/internal/config"
	"github.com/JakeFAU/catalog-harvester/internal/logging"
)

// appFactory builds the application services. Tests replace it to inject
// fakes for the network and storage.
type appFactory func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error)

func defaultAppFactory(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger, app.Options{})
}

// cli carries the state shared between the root command hooks and the
// subcommands.
type cli struct {
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
	app     *app.App
	newApp  appFactory
}

func newRootCmd(factory appFactory) *cobra.Command {
	c := &cli{newApp: factory}
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Resumable harvester for an ID-addressed content catalog.",
		Long: `harvester walks a catalog's numeric ID space one detail page at a time,
turns each page into a structured record, and checkpoints the results in
fixed-size chunks so that any run can be stopped and resumed.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", os.Getenv("HARVESTER_CONFIG"), "config file (yaml, json or toml)")

	cmd.AddCommand(
		newCrawlCmd(c),
		newStatsCmd(c),
		newExportCmd(c),
	)
	return cmd
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	// A .env file in the working directory may supply HARVESTER_* variables;
	// variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level, logging.WithFile(logging.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	appInstance, err := c.newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	c.cfg, c.logger, c.app = cfg, logger, appInstance
	return nil
}

// run adapts fn into a cobra RunE that always closes the application, even
// when fn fails. Cobra skips post-run hooks after an error.
func (c *cli) run(fn func(cmd *cobra.Command, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if c.app == nil {
			return errors.New("application services not initialized")
		}
		runErr := fn(cmd, c.app)
		return errors.Join(runErr, c.teardown(cmd.Context()))
	}
}

func (c *cli) teardown(ctx context.Context) error {
	// Shutdown runs after a signal has cancelled the command context.
	err := c.app.Close(context.WithoutCancel(ctx))
	c.app = nil
	if syncErr := c.logger.Sync(); syncErr != nil && !errors.Is(syncErr, os.ErrInvalid) {
		c.logger.Debug("logger sync failed", zap.Error(syncErr))
	}
	return err
}
