package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-harvester/internal/app"
)

func newCrawlCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Harvest catalog IDs until interrupted",
		Long: `Walks catalog IDs upwards from crawl.floor, skipping IDs that are already
checkpointed. Runs until SIGINT/SIGTERM, until crawl.stop_after is passed, or
until the checkpoint backend fails.`,
		Args: cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, appInstance *app.App) error {
			if err := appInstance.Crawl(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run crawler: %w", err)
			}
			c.logger.Info("crawl command finished", zap.Bool("interrupted", cmd.Context().Err() != nil))
			return nil
		}),
	}
}
