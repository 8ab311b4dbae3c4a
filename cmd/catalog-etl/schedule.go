package main

import (
	"context"

	"github.com/Sternrassler/nft-catalog-etl/pkg/logging"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newScheduleCmd(c *cli) *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline repeatedly on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("cron") {
				c.cfg.Schedule = spec
			}
			if err := c.cfg.Validate(); err != nil {
				return err
			}
			if err := c.cfg.ValidateSchedule(); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			serveMetrics(ctx, c.cfg, a.logger)
			return runSchedule(ctx, c.cfg.Schedule, a.scheduledRun(cmd))
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "cron spec (overrides SCHEDULE)")
	return cmd
}

// scheduledRun returns the job executed on every tick.
func (a *app) scheduledRun(cmd *cobra.Command) func(ctx context.Context) {
	return func(ctx context.Context) {
		summary, err := a.run(ctx)
		if err != nil {
			a.logger.Error().Err(err).Msg("Scheduled run failed")
			return
		}
		if err := renderSummary(cmd.OutOrStdout(), summary); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to render run summary")
		}
	}
}

// runSchedule runs job on spec until ctx is cancelled. A tick that fires
// while the previous run is still going is skipped.
func runSchedule(ctx context.Context, spec string, job func(ctx context.Context)) error {
	logger := logging.NewLogger("scheduler")
	cl := cronLogger{logger: logger}

	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(spec, func() { job(ctx) }); err != nil {
		return err
	}

	logger.Info().Str("schedule", spec).Msg("Scheduler started")
	c.Start()

	<-ctx.Done()
	logger.Info().Msg("Scheduler stopping - waiting for running job")
	<-c.Stop().Done()
	logger.Info().Msg("Scheduler stopped")
	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Err(err).Fields(keysAndValues).Msg(msg)
}
