package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/catalog-harvester/internal/app"
)

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the checkpoint",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, appInstance *app.App) error {
			st, err := appInstance.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "items:       %d\n", st.Items)
			fmt.Fprintf(out, "tombstones:  %d\n", st.Tombstones)
			fmt.Fprintf(out, "highest id:  %d\n", st.Highest)
			fmt.Fprintf(out, "next id:     %d\n", st.NextID)
			if total := c.cfg.Catalog.TotalItems; total > 0 {
				fmt.Fprintf(out, "coverage:    %.2f%%\n", float64(st.NextID-1)/float64(total)*100)
			}
			return nil
		}),
	}
}
