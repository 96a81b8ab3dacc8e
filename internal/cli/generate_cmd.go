package cli

import (
	"github.com/spf13/cobra"

	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/export"
	"github.com/timmy/transitdw/internal/generator"
	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/registry"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		records  int
		start    string
		end      string
		out      string
		seed     uint64
		stations int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic lines, stations and facts to CSV files",
		Long: "Generate a deterministic synthetic dataset without touching the database. " +
			"The same seed and range always produce byte-identical files.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g := a.cfg.Generator
			flags := cmd.Flags()
			if !flags.Changed("records") {
				records = g.TargetRecords
			}
			if !flags.Changed("start") {
				start = g.StartDate
			}
			if !flags.Changed("end") {
				end = g.EndDate
			}
			if !flags.Changed("out") {
				out = g.OutputDir
			}
			if !flags.Changed("seed") {
				seed = g.Seed
			}
			if !flags.Changed("stations") {
				stations = g.Stations
			}

			from, to, err := config.ParseRange(start, end)
			if err != nil {
				return err
			}
			if records < 1 {
				return &domain.InvalidParameterError{Name: "records", Value: records, Reason: "must be positive"}
			}

			reg, err := registry.New(registry.Options{Start: from, End: to, Stations: stations, Seed: seed})
			if err != nil {
				return err
			}
			gen, err := generator.New(reg, generator.Params{Start: from, End: to, TargetRecords: records, Seed: seed})
			if err != nil {
				return err
			}

			ctx := logger.SetComponent(cmd.Context(), "generate")
			logger.With(logger.Fields{
				"start": start,
				"end":   end,
				"seed":  seed,
				"out":   out,
			}).WithCount(records).Info(ctx, "Generating synthetic dataset")

			m, err := export.WriteGenerated(out, reg, gen.Records())
			if err != nil {
				return err
			}
			return a.printManifest(m)
		},
	}

	cmd.Flags().IntVarP(&records, "records", "n", 0, "Target number of ridership records (default generator.target_records)")
	cmd.Flags().StringVar(&start, "start", "", "First day, YYYY-MM-DD (default generator.start_date)")
	cmd.Flags().StringVar(&end, "end", "", "Last day, YYYY-MM-DD (default generator.end_date)")
	cmd.Flags().StringVar(&out, "out", "", "Output directory (default generator.output_dir)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (default generator.seed)")
	cmd.Flags().IntVar(&stations, "stations", 0, "Number of stations (default generator.stations)")

	return cmd
}
