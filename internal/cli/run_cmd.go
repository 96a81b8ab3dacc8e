package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/metrics"
	"github.com/timmy/transitdw/internal/pipeline"
	"github.com/timmy/transitdw/internal/storage"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		source    string
		start     string
		end       string
		records   int
		seed      uint64
		jobName   string
		doExport  bool
		exportDir string
		upload    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract, clean and load one batch of data into the warehouse",
		Long: "Run the pipeline once. The command exits non-zero only when the run fails " +
			"outright; a partially successful run exits 0 and reports its rejects.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := domain.ParseDataSource(source)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("start") {
				start = a.cfg.Generator.StartDate
			}
			if !cmd.Flags().Changed("end") {
				end = a.cfg.Generator.EndDate
			}
			if !cmd.Flags().Changed("export-dir") {
				exportDir = a.cfg.Export.Dir
			}
			from, to, err := config.ParseRange(start, end)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logger.SetComponent(ctx, "run")

			var store storage.ObjectStorage
			if upload {
				if store, err = a.objectStorage(ctx); err != nil {
					return err
				}
			}

			gw, closeDB, err := a.openGateway(a.cfg.Database)
			if err != nil {
				return err
			}
			defer closeDB()

			orch := pipeline.NewOrchestrator(a.cfg, gw, pipeline.WithMetrics(metrics.New()))
			res, runErr := orch.Run(ctx, pipeline.RunRequest{
				Source:        src,
				Start:         from,
				End:           to,
				TargetRecords: records,
				Seed:          seed,
				JobName:       jobName,
			})
			if res == nil {
				return runErr
			}
			if err := a.printResult(res); err != nil {
				return err
			}
			if res.Status == domain.JobStatusFailed {
				if runErr != nil {
					return fmt.Errorf("%w: %w", errRunFailed, runErr)
				}
				return fmt.Errorf("%w: %s", errRunFailed, res.Error)
			}

			if doExport || upload {
				m, err := a.exportTo(ctx, gw, store, exportDir, res.RunID)
				if err != nil {
					return fmt.Errorf("export after run %s: %w", res.RunID, err)
				}
				return a.printManifest(m)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "synthetic", "Data source (synthetic, api)")
	cmd.Flags().StringVar(&start, "start", "", "First day, YYYY-MM-DD (default generator.start_date)")
	cmd.Flags().StringVar(&end, "end", "", "Last day, YYYY-MM-DD (default generator.end_date)")
	cmd.Flags().IntVarP(&records, "records", "n", 0, "Target synthetic record count (default generator.target_records)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Synthetic seed (default generator.seed)")
	cmd.Flags().StringVar(&jobName, "job-name", "", "Job name recorded in etl_log (default pipeline.job_name)")
	cmd.Flags().BoolVar(&doExport, "export", false, "Export tables and views to CSV after a successful run")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "Export directory (default export.dir)")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the export to object storage (implies --export)")

	return cmd
}
