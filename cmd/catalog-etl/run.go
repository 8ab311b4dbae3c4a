package main

import (
	"github.com/spf13/cobra"
)

func newRunCmd(c *cli) *cobra.Command {
	var (
		chain   string
		limit   int
		workers int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("chain") {
				c.cfg.API.Chain = chain
			}
			if cmd.Flags().Changed("limit") {
				c.cfg.API.PageSize = limit
			}
			if cmd.Flags().Changed("workers") {
				c.cfg.API.Workers = workers
			}
			if err := c.cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			serveMetrics(ctx, c.cfg, a.logger)

			summary, err := a.run(ctx)
			if err != nil {
				return err
			}
			return renderSummary(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVar(&chain, "chain", "ethereum", "chain to list collections for")
	cmd.Flags().IntVar(&limit, "limit", 50, "collections per page")
	cmd.Flags().IntVar(&workers, "workers", 5, "pages fetched concurrently")

	return cmd
}
