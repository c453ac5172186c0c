package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-harvester/internal/app"
	"github.com/JakeFAU/catalog-harvester/internal/storage/postgres"
)

func newExportCmd(c *cli) *cobra.Command {
	var dsn, table string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy every recorded ID into Postgres",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, appInstance *app.App) error {
			cfg := postgres.ItemStoreConfig{DSN: c.cfg.Export.DSN, Table: c.cfg.Export.Table}
			if dsn != "" {
				cfg.DSN = dsn
			}
			if table != "" {
				cfg.Table = table
			}
			store, err := postgres.NewItemStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			written, err := appInstance.Export(cmd.Context(), store)
			if err != nil {
				return err
			}
			c.logger.Info("export finished", zap.Int("records", written), zap.String("table", cfg.Table))
			return nil
		}),
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (overrides export.dsn)")
	cmd.Flags().StringVar(&table, "table", "", "destination table (overrides export.table)")
	return cmd
}
