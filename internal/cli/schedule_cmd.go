package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/metrics"
	"github.com/timmy/transitdw/internal/pipeline"
)

func newScheduleCmd(a *app) *cobra.Command {
	var (
		cronSpec string
		source   string
		lookback int
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on a cron schedule until interrupted",
		Long: "Run the pipeline every time the cron expression fires, covering the trailing " +
			"--lookback days up to yesterday. Overlapping ticks are skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := a.cfg.Schedule
			if cmd.Flags().Changed("cron") {
				sc.Cron = cronSpec
			}
			if cmd.Flags().Changed("source") {
				sc.Source = source
			}
			if cmd.Flags().Changed("lookback") {
				sc.LookbackDays = lookback
			}
			if sc.LookbackDays < 1 {
				return &domain.InvalidParameterError{Name: "lookback", Value: sc.LookbackDays, Reason: "must be at least 1 day"}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logger.SetComponent(ctx, "schedule")

			gw, closeDB, err := a.openGateway(a.cfg.Database)
			if err != nil {
				return err
			}
			defer closeDB()

			orch := pipeline.NewOrchestrator(a.cfg, gw, pipeline.WithMetrics(metrics.New()))
			sched := pipeline.NewScheduler(orch, sc)

			if once {
				res, err := sched.RunOnce(ctx)
				if res == nil {
					return err
				}
				if perr := a.printResult(res); perr != nil {
					return perr
				}
				if res.Status == domain.JobStatusFailed {
					return fmt.Errorf("%w: %s", errRunFailed, res.Error)
				}
				return nil
			}

			if err := sched.Start(ctx); err != nil {
				return err
			}
			logger.CtxInfo(ctx, "Next run at %s", sched.Next().Format("2006-01-02 15:04:05 MST"))
			<-ctx.Done()
			logger.CtxInfo(ctx, "Received shutdown signal, waiting for the current run...")
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&cronSpec, "cron", "", "Cron expression, UTC (default schedule.cron)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Data source (default schedule.source)")
	cmd.Flags().IntVar(&lookback, "lookback", 0, "Days covered by each run (default schedule.lookback_days)")
	cmd.Flags().BoolVar(&once, "once", false, "Run the current window once and exit")

	return cmd
}
